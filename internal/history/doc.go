// Package history records entity state transitions to InfluxDB.
//
// The recorder is optional: when enabled it receives the same view state
// snapshots the panels do and writes a point whenever an entity's state
// changes, tagged by entity, domain, and view. Numeric states (sensor
// readings) additionally get a float field so they can be graphed directly.
//
// Writes are batched and non-blocking; a slow or absent InfluxDB never
// stalls the polling loop. Async write failures are logged, not surfaced.
package history
