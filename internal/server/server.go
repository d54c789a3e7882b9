// Package server exposes the relay over HTTP: the websocket endpoint plus a
// few read-only endpoints for dashboards and operators.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"realtime-relay/internal/relay"
)

// HealthCheck is a named dependency check run by /health.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options wires the server to the relay core.
type Options struct {
	Addr         string
	Dispatcher   relay.Dispatcher
	Registry     *relay.Registry
	Cache        *relay.Cache
	Client       relay.ClientConfig
	Log          logrus.FieldLogger
	Metrics      http.Handler
	HealthChecks []HealthCheck
}

type Server struct {
	echo         *echo.Echo
	addr         string
	dispatcher   relay.Dispatcher
	registry     *relay.Registry
	cache        *relay.Cache
	clientCfg    relay.ClientConfig
	log          logrus.FieldLogger
	metrics      http.Handler
	healthChecks []HealthCheck
	upgrader     websocket.Upgrader
	startTime    time.Time
}

func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		echo:         e,
		addr:         opts.Addr,
		dispatcher:   opts.Dispatcher,
		registry:     opts.Registry,
		cache:        opts.Cache,
		clientCfg:    opts.Client,
		log:          log,
		metrics:      opts.Metrics,
		healthChecks: opts.HealthChecks,
		upgrader: websocket.Upgrader{
			// Any origin may connect; the relay has no notion of users.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) Start() error {
	s.log.WithField("addr", s.addr).Info("relay listening")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
