// Package config loads and validates Panel Core configuration.
//
// Configuration is layered: hardcoded defaults, then the YAML file, then
// PANELCORE_* environment variable overrides. Validate() runs after all
// layers are applied so a misconfigured gateway fails at startup rather
// than mid-session.
package config
