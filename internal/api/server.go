// Package api serves the HTTP API and the WebSocket state stream.
//
//	srv, err := api.New(deps)
//	srv.Start(ctx)
//	defer srv.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lightrig/internal/config"
	"lightrig/internal/logger"
	"lightrig/internal/show"
	"lightrig/internal/state"
)

// gracefulShutdownTimeout bounds the wait for in-flight requests on Close.
const gracefulShutdownTimeout = 5 * time.Second

// HealthChecker reports whether a backing service is usable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds what the server needs.
type Deps struct {
	Config  config.HTTPConf
	Logger  logger.Logger
	Show    *show.Controller
	State   *state.Holder
	Health  HealthChecker // optional
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.HTTPConf
	log     *logger.Log
	show    *show.Controller
	state   *state.Holder
	health  HealthChecker
	version string
	hub     *Hub
	server  *http.Server
	cancel  context.CancelFunc
}

// New returns a server that is not yet listening. Every state change is
// broadcast to the WebSocket clients from here on.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, errors.New("api: logger is required")
	}
	if deps.Show == nil || deps.State == nil {
		return nil, errors.New("api: show controller and state are required")
	}
	s := &Server{
		cfg:     deps.Config,
		log:     deps.Logger.Module("api"),
		show:    deps.Show,
		state:   deps.State,
		health:  deps.Health,
		version: deps.Version,
	}
	s.hub = NewHub(s.log)
	s.state.OnChange(func(st state.State) {
		s.hub.Broadcast(EventState, st)
	})
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start listens in the background.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.ReadTimeout.Duration,
		ReadHeaderTimeout: s.cfg.ReadTimeout.Duration,
		WriteTimeout:      s.cfg.WriteTimeout.Duration,
	}
	go func() {
		s.log.Infof("API listening on %s", s.cfg.Listen)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("API server: %v", err)
		}
	}()
	return nil
}

// Close shuts the server down, waiting for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	s.log.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
