// Panel Core - HomeMatrix panel gateway
//
// This is the main entry point for the Panel Core daemon. Panel Core runs
// on site hardware and maintains a single authenticated session against the
// HomeMatrix backend, exposing granted control views to local wall panels
// over REST and WebSocket. Optional integrations mirror entity states to a
// local MQTT broker and record state history to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/homematrix/panel-core/migrations"

	"github.com/homematrix/panel-core/internal/api"
	"github.com/homematrix/panel-core/internal/audit"
	"github.com/homematrix/panel-core/internal/history"
	"github.com/homematrix/panel-core/internal/infrastructure/config"
	"github.com/homematrix/panel-core/internal/infrastructure/database"
	"github.com/homematrix/panel-core/internal/infrastructure/logging"
	"github.com/homematrix/panel-core/internal/mirror"
	"github.com/homematrix/panel-core/internal/session"
	"github.com/homematrix/panel-core/internal/upstream"
	"github.com/homematrix/panel-core/internal/view"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Panel Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open the local database and migrate. It holds the durable access
	// token and the gateway audit rows.
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Session plumbing: the gate refreshes the access token transparently,
	// the upstream client carries every backend call through it.
	store := session.NewSQLiteStore(db.DB)
	gate := session.NewGate(store, nil, log)

	up, err := upstream.New(cfg.Upstream.BaseURL, gate, log)
	if err != nil {
		return fmt.Errorf("creating upstream client: %w", err)
	}
	log.Info("upstream client ready", "base_url", cfg.Upstream.BaseURL)

	manager := session.NewManager(store, up, log)
	auth := session.NewAuthenticator(up, manager)
	views := view.NewController(up, log)

	// Local access trail mirrors the upstream view access log, so the
	// site keeps a record even through backend outages.
	trail := audit.NewSQLiteRepository(db.DB)
	views.SetTrail(trail, func() string {
		if u := manager.Current(); u != nil {
			return u.ID
		}
		return ""
	})

	// Optional MQTT state mirror
	var sinks []view.Sink
	var mirrorClient *mirror.Mirror
	if cfg.Mirror.Enabled {
		mirrorClient, err = mirror.Connect(cfg.Mirror, log)
		if err != nil {
			return fmt.Errorf("connecting mirror broker: %w", err)
		}
		defer func() {
			log.Info("disconnecting mirror broker")
			if closeErr := mirrorClient.Close(); closeErr != nil {
				log.Error("error closing mirror", "error", closeErr)
			}
		}()
		log.Info("mirror connected",
			"broker", fmt.Sprintf("%s:%d", cfg.Mirror.Broker.Host, cfg.Mirror.Broker.Port),
			"client_id", cfg.Mirror.Broker.ClientID,
		)

		if bindErr := mirrorClient.BindCommands(views); bindErr != nil {
			return fmt.Errorf("subscribing mirror commands: %w", bindErr)
		}
		sinks = append(sinks, mirrorClient.StateSink())
	} else {
		log.Info("mirror disabled")
	}

	// Optional InfluxDB state history
	var recorder *history.Recorder
	if cfg.History.Enabled {
		recorder, err = history.Connect(cfg.History, log)
		if err != nil {
			return fmt.Errorf("connecting history store: %w", err)
		}
		defer func() {
			log.Info("closing history store")
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing history", "error", closeErr)
			}
		}()
		log.Info("history connected",
			"url", cfg.History.URL,
			"org", cfg.History.Org,
			"bucket", cfg.History.Bucket,
		)

		sinks = append(sinks, recorder.Sink())
	} else {
		log.Info("history disabled")
	}

	// Panel-facing HTTP server
	srv, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Manager:    manager,
		Auth:       auth,
		Views:      views,
		Upstream:   up,
		StateSinks: sinks,
		Trail:      trail,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := srv.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// A failed token refresh ends the session everywhere at once: the
	// snapshot drops, the auth flow resets, and connected panels are told.
	gate.OnSessionExpired(func() {
		manager.Invalidate()
		auth.Invalidate()
		srv.SessionExpired()
	})

	// Silent resume runs in the background; the server answers 503 with
	// Retry-After until it settles, so panels can connect immediately.
	go func() {
		if resumeErr := manager.Resume(ctx); resumeErr != nil {
			log.Warn("session resume failed", "error", resumeErr)
		}
	}()

	if err := healthCheck(ctx, db, mirrorClient, recorder); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stops watchers, closes WebSockets)
	// 2. History (if enabled)
	// 3. Mirror (if enabled)
	// 4. Database

	log.Info("Panel Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses PANELCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("PANELCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the local infrastructure connections are healthy.
// The upstream session is deliberately excluded: the gateway must come up
// and serve panels even when the backend is unreachable.
func healthCheck(ctx context.Context, db *database.DB, mirrorClient *mirror.Mirror, recorder *history.Recorder) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mirrorClient != nil {
		if err := mirrorClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mirror: %w", err)
		}
	}

	if recorder != nil {
		if err := recorder.HealthCheck(ctx); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}

	return nil
}
