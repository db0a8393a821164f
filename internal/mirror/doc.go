// Package mirror republishes view state snapshots onto a local MQTT broker
// and accepts control commands back from it.
//
// The mirror is optional: when enabled it gives site integrations (wall
// tablets, Node-RED, voice bridges) a local copy of every entity state the
// gateway is watching, as retained messages under panelcore/state/<entity>.
// Commands published to panelcore/command/<view-slug> are decoded and
// forwarded through the same view-scoped control path the REST API uses, so
// the broker gains no authority beyond the session's granted views.
//
// Connection management follows the broker's lifecycle: auto-reconnect with
// exponential backoff, Last Will and Testament for crash detection, and
// subscription restoration after reconnect.
package mirror
