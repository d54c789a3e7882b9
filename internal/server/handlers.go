package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"realtime-relay/internal/relay"
)

const (
	framingHeader      = "X-Relay-Framing"
	healthCheckTimeout = 2 * time.Second
)

// handleIndex upgrades websocket requests on "/" so clients can connect to
// the bare host, and describes the endpoints to everyone else.
func (s *Server) handleIndex(c echo.Context) error {
	if websocket.IsWebSocketUpgrade(c.Request()) {
		return s.handleWebSocket(c)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":   "relay is running",
		"websocket": "/ws",
		"latest":    "/api/latest",
		"health":    "/health",
		"metrics":   "/metrics",
	})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written an HTTP error.
		s.log.WithError(err).Warn("websocket upgrade failed")
		return nil
	}

	client := relay.NewClient(conn, s.clientCfg, s.log)
	if err := client.Serve(s.dispatcher); err != nil {
		s.log.WithError(err).WithField("client_id", client.ID()).Warn("could not register client")
	}
	return nil
}

// handleLatest returns the cached packet for clients that poll instead of
// holding a websocket open.
func (s *Server) handleLatest(c echo.Context) error {
	p, ok := s.cache.Latest()
	if !ok {
		return c.NoContent(http.StatusNoContent)
	}

	contentType := echo.MIMETextPlainCharsetUTF8
	if p.Framing == relay.FramingBinary {
		contentType = echo.MIMEOctetStream
	}
	c.Response().Header().Set(framingHeader, p.Framing.String())
	if !p.ReceivedAt.IsZero() {
		c.Response().Header().Set(echo.HeaderLastModified, p.ReceivedAt.UTC().Format(http.TimeFormat))
	}
	return c.Blob(http.StatusOK, contentType, p.Data)
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
	defer cancel()

	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			if err := c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": hc.Name,
				"error":        err.Error(),
			}); err != nil {
				return fmt.Errorf("failed to send JSON response: %w", err)
			}
			return nil
		}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.registry.Len(),
		"uptime":      time.Since(s.startTime).Seconds(),
	})
}
