// Package panel serves the wall panel web UI.
//
// The UI is a single-page application; unknown paths fall back to
// index.html so client-side routing works on hard reloads.
package panel
