// Package database manages the gateway's local SQLite store.
//
// The store holds the durable access token and access-audit rows. Schema
// changes are applied through embedded migrations registered by the
// migrations package, each running in its own transaction.
package database
