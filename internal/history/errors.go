package history

import "errors"

// Sentinel errors for recorder operations. Check with errors.Is.
var (
	// ErrNotConnected indicates the recorder has no InfluxDB connection.
	ErrNotConnected = errors.New("history: not connected")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("history: connection failed")

	// ErrDisabled indicates state history is disabled in configuration.
	ErrDisabled = errors.New("history: disabled in configuration")
)
