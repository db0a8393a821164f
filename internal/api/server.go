package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/homematrix/panel-core/internal/audit"
	"github.com/homematrix/panel-core/internal/infrastructure/config"
	"github.com/homematrix/panel-core/internal/infrastructure/logging"
	"github.com/homematrix/panel-core/internal/session"
	"github.com/homematrix/panel-core/internal/upstream"
	"github.com/homematrix/panel-core/internal/view"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Logger       *logging.Logger
	Manager      *session.Manager
	Auth         *session.Authenticator
	Views        *view.Controller
	Upstream     *upstream.Client
	PollInterval time.Duration // state poll cadence; zero means the default

	// StateSinks receive every view snapshot the watchers fetch, alongside
	// the WebSocket broadcast. The MQTT mirror and the history recorder
	// hook in here.
	StateSinks []view.Sink

	// Trail is the local view access log, exposed to administrators.
	// Optional; the trail route reports not-found when absent.
	Trail audit.Repository

	Version string
}

// Server is the panel-facing HTTP server.
//
// It manages the HTTP listener, routes, middleware, the WebSocket hub, and
// the per-view state watchers. The server is created with New() and
// started with Start().
type Server struct {
	cfg          config.APIConfig
	wsCfg        config.WebSocketConfig
	logger       *logging.Logger
	manager      *session.Manager
	auth         *session.Authenticator
	views        *view.Controller
	upstream     *upstream.Client
	pollInterval time.Duration
	stateSinks   []view.Sink
	trail        audit.Repository
	version      string

	server    *http.Server
	hub       *Hub
	tickets   *ticketStore
	startTime time.Time

	cancel context.CancelFunc
	srvCtx context.Context

	watchers *watcherSet
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Manager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("authenticator is required")
	}
	if deps.Views == nil {
		return nil, fmt.Errorf("view controller is required")
	}
	if deps.Upstream == nil {
		return nil, fmt.Errorf("upstream client is required")
	}

	return &Server{
		cfg:          deps.Config,
		wsCfg:        deps.WS,
		logger:       deps.Logger.With("component", "api"),
		manager:      deps.Manager,
		auth:         deps.Auth,
		views:        deps.Views,
		upstream:     deps.Upstream,
		pollInterval: deps.PollInterval,
		stateSinks:   deps.StateSinks,
		trail:        deps.Trail,
		version:      deps.Version,
		tickets:      newTicketStore(),
		watchers:     newWatcherSet(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and ticket cleanup, builds the router, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	router := s.startCore(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startCore starts the hub, ticket cleanup, and the internal context, and
// builds the router. Split from Start so the listener is the only part it
// does not own.
func (s *Server) startCore(ctx context.Context) http.Handler {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	s.srvCtx, s.cancel = context.WithCancel(ctx)
	s.startTime = time.Now()

	s.hub = NewHub(s.wsCfg, s.logger)
	s.hub.onSubscribe = s.onChannelSubscribed
	go s.hub.Run(s.srvCtx)
	go s.cleanTicketsLoop(s.srvCtx)

	return s.buildRouter()
}

// Close gracefully shuts down the API server.
//
// It stops the view watchers, waits up to 10 seconds for in-flight
// requests to complete, then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	s.watchers.stopAll()

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// SessionExpired broadcasts the forced fall-back to the anonymous entry
// point and halts view polling. Wired to the refresh gate's expiry
// callback.
func (s *Server) SessionExpired() {
	s.watchers.stopAll()
	if s.hub != nil {
		s.hub.Broadcast(ChannelSession, map[string]string{"event": "expired"})
	}
}

// onChannelSubscribed starts a view watcher the first time any panel
// subscribes to a view channel. Watchers run until logout, session expiry,
// or shutdown.
func (s *Server) onChannelSubscribed(channel string) {
	slug, ok := viewSlugFromChannel(channel)
	if !ok {
		return
	}
	if s.manager.Current() == nil {
		return
	}
	s.ensureWatcher(slug)
}

func (s *Server) ensureWatcher(slug string) {
	s.watchers.ensure(slug, func() *view.Watcher {
		s.logger.Debug("starting view watcher", "slug", slug)
		w := view.NewWatcher(s.views, slug, s.pollInterval, func(vs upstream.ViewStates) {
			s.hub.Broadcast(ViewChannel(slug), vs)
			for _, sink := range s.stateSinks {
				sink(vs)
			}
		}, s.logger)
		w.Start(s.srvCtx)
		return w
	})
}
