package relay

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"realtime-relay/internal/metrics"
)

type membership struct {
	conn Conn
	done chan struct{}
}

type inbound struct {
	src    Conn
	packet Packet
}

// Manager is the relay's dispatch loop. Connection events and heartbeat
// ticks are handled one at a time on the goroutine running Run, so a handler
// never interleaves with another.
type Manager struct {
	registry  *Registry
	engine    *Engine
	heartbeat *Heartbeat
	clock     clockwork.Clock
	log       logrus.FieldLogger
	metrics   *metrics.Relay

	register   chan membership
	unregister chan membership
	inbound    chan inbound
	done       chan struct{}
}

func NewManager(registry *Registry, engine *Engine, heartbeat *Heartbeat, clock clockwork.Clock, log logrus.FieldLogger, m *metrics.Relay) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = discardLogger()
	}
	return &Manager{
		registry:   registry,
		engine:     engine,
		heartbeat:  heartbeat,
		clock:      clock,
		log:        log,
		metrics:    m,
		register:   make(chan membership),
		unregister: make(chan membership),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
	}
}

// Run services events until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.heartbeat.Interval())
	defer ticker.Stop()
	defer close(m.done)

	m.log.WithFields(logrus.Fields{
		"scope":              m.engine.Scope(),
		"heartbeat_interval": m.heartbeat.Interval(),
	}).Info("relay manager started")

	for {
		select {
		case <-ctx.Done():
			m.log.WithField("connections", m.registry.Len()).Info("relay manager stopped")
			return
		case ev := <-m.register:
			m.handleRegister(ev.conn)
			close(ev.done)
		case ev := <-m.unregister:
			m.handleUnregister(ev.conn)
			close(ev.done)
		case ev := <-m.inbound:
			m.engine.OnPacket(ev.src, ev.packet)
		case <-ticker.Chan():
			m.heartbeat.Probe()
		}
	}
}

// Done is closed once Run has returned.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Register tracks c and replays the cached packet to it. It returns once both
// have happened, so nothing can be broadcast to c ahead of the replay.
func (m *Manager) Register(c Conn) error {
	return m.submit(m.register, c)
}

// Unregister stops tracking c. Calling it more than once is harmless.
func (m *Manager) Unregister(c Conn) error {
	return m.submit(m.unregister, c)
}

// Receive hands an inbound packet from src to the broadcast engine.
func (m *Manager) Receive(src Conn, p Packet) error {
	select {
	case m.inbound <- inbound{src: src, packet: p}:
		return nil
	case <-m.done:
		return ErrManagerStopped
	}
}

func (m *Manager) submit(ch chan membership, c Conn) error {
	ev := membership{conn: c, done: make(chan struct{})}
	select {
	case ch <- ev:
	case <-m.done:
		return ErrManagerStopped
	}
	<-ev.done
	return nil
}

func (m *Manager) handleRegister(c Conn) {
	if !m.registry.Register(c) {
		return
	}
	m.metrics.SetConnections(m.registry.Len())
	m.log.WithFields(logrus.Fields{
		"client_id":   c.ID(),
		"connections": m.registry.Len(),
	}).Info("client connected")
	m.engine.Replay(c)
}

func (m *Manager) handleUnregister(c Conn) {
	if !m.registry.Unregister(c) {
		return
	}
	m.metrics.SetConnections(m.registry.Len())
	m.log.WithFields(logrus.Fields{
		"client_id":   c.ID(),
		"connections": m.registry.Len(),
	}).Info("client disconnected")
}
