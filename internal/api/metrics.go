package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete gateway metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Session       SessionMetrics `json:"session"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// SessionMetrics contains session and watcher statistics. It exposes no
// identity details, only whether a session exists.
type SessionMetrics struct {
	Loading       bool `json:"loading"`
	Authenticated bool `json:"authenticated"`
	ViewWatchers  int  `json:"view_watchers"`
}

// handleMetrics returns gateway metrics for local monitoring.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: clients,
		},
		Session: SessionMetrics{
			Loading:       s.manager.Loading(),
			Authenticated: s.manager.Current() != nil,
			ViewWatchers:  s.watchers.count(),
		},
	}

	writeJSON(w, http.StatusOK, metrics)
}
