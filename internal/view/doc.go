// Package view drives curated control surfaces for wall panels.
//
// A Controller mediates every read and command for a view: it records
// first-open access, keeps the view's widget scope, and refuses commands
// for entities outside it. A Watcher polls a view's entity states on a
// fixed cadence and fans updates out to sinks until stopped.
package view
