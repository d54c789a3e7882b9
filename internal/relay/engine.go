package relay

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"realtime-relay/internal/metrics"
)

// Scope decides whether a packet is echoed back to its sender.
type Scope int

const (
	ExcludeSender Scope = iota
	IncludeSender
)

// ParseScope accepts "exclude-sender" (also the empty string) and "include-sender".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "exclude-sender":
		return ExcludeSender, nil
	case "include-sender":
		return IncludeSender, nil
	default:
		return 0, fmt.Errorf("unknown broadcast scope %q", s)
	}
}

func (s Scope) String() string {
	if s == IncludeSender {
		return "include-sender"
	}
	return "exclude-sender"
}

// PacketWriter receives every inbound packet after fan-out. Implementations
// must return immediately.
type PacketWriter interface {
	Write(p Packet)
}

// Engine fans inbound packets out to the registry and keeps the cache current.
type Engine struct {
	registry *Registry
	cache    *Cache
	scope    Scope
	log      logrus.FieldLogger
	metrics  *metrics.Relay
	writer   PacketWriter
}

type EngineOption func(*Engine)

func WithLogger(log logrus.FieldLogger) EngineOption {
	return func(e *Engine) { e.log = log }
}

func WithMetrics(m *metrics.Relay) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithPacketWriter attaches a best-effort side-write.
func WithPacketWriter(w PacketWriter) EngineOption {
	return func(e *Engine) { e.writer = w }
}

func NewEngine(registry *Registry, cache *Cache, scope Scope, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		cache:    cache,
		scope:    scope,
		log:      discardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Scope() Scope { return e.scope }

// OnPacket caches p and submits it to every open connection other than src
// (or including src under IncludeSender). It returns the number of sends
// attempted. A failing target is logged and skipped; the error never reaches
// src and the target stays registered until its transport reports the close.
func (e *Engine) OnPacket(src Conn, p Packet) int {
	e.metrics.PacketReceived()
	e.cache.Update(p)

	attempted := 0
	e.registry.ForEachOpen(func(c Conn) {
		if c == src && e.scope == ExcludeSender {
			return
		}
		attempted++
		if err := c.Send(p); err != nil {
			e.metrics.SendFailed()
			e.log.WithFields(logrus.Fields{
				"client_id": c.ID(),
				"framing":   p.Framing.String(),
			}).WithError(err).Warn("relay send failed")
		}
	})
	e.metrics.Relayed(attempted)

	if e.writer != nil {
		e.writer.Write(p)
	}

	if src != nil {
		e.log.WithFields(logrus.Fields{
			"client_id": src.ID(),
			"framing":   p.Framing.String(),
			"bytes":     len(p.Data),
			"targets":   attempted,
		}).Debug("packet relayed")
	}
	return attempted
}

// Replay brings a freshly registered connection up to date with the cache.
func (e *Engine) Replay(c Conn) {
	replayed, err := e.cache.ReplayTo(c)
	if !replayed {
		return
	}
	if err != nil {
		e.metrics.SendFailed()
		e.log.WithField("client_id", c.ID()).WithError(err).Warn("replay of last packet failed")
		return
	}
	e.metrics.Replayed()
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
