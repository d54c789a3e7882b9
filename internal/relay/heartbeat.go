package relay

import (
	"time"

	"github.com/sirupsen/logrus"

	"realtime-relay/internal/metrics"
)

// DefaultHeartbeatInterval keeps idle links below common proxy idle timeouts.
const DefaultHeartbeatInterval = 30 * time.Second

// Heartbeat sends transport-level pings to every open connection. Probes are
// fire-and-forget: there is no pong tracking, and a failed probe is left for
// the transport's own close signal.
type Heartbeat struct {
	registry *Registry
	interval time.Duration
	log      logrus.FieldLogger
	metrics  *metrics.Relay
}

func NewHeartbeat(registry *Registry, interval time.Duration, log logrus.FieldLogger, m *metrics.Relay) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	if log == nil {
		log = discardLogger()
	}
	return &Heartbeat{registry: registry, interval: interval, log: log, metrics: m}
}

func (h *Heartbeat) Interval() time.Duration { return h.interval }

// Probe runs one heartbeat round and returns the number of probes attempted.
func (h *Heartbeat) Probe() int {
	n := h.registry.ForEachOpen(func(c Conn) {
		if err := c.Ping(); err != nil {
			h.metrics.ProbeFailed()
			h.log.WithField("client_id", c.ID()).WithError(err).Warn("heartbeat probe failed")
		}
	})
	h.metrics.HeartbeatRound()
	h.log.WithField("probes", n).Debug("heartbeat round")
	return n
}
