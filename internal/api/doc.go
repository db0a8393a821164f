// Package api provides the HTTP and WebSocket server that wall panels on
// the local network talk to.
//
// It exposes the session lifecycle (login, step-up verification, logout),
// the granted control surfaces, and a push channel for live entity states.
// Panels never see the upstream backend directly; every call goes through
// the session core and the view controller.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
