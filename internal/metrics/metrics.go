// Package metrics exposes Prometheus collectors for the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Relay holds the fan-out, cache and heartbeat collectors.
// A nil *Relay is valid and records nothing.
type Relay struct {
	ActiveConnections prometheus.Gauge
	PacketsReceived   prometheus.Counter
	PacketsRelayed    prometheus.Counter
	SendFailures      prometheus.Counter
	Replays           prometheus.Counter
	HeartbeatRounds   prometheus.Counter
	ProbeFailures     prometheus.Counter
}

// NewRelay creates and registers relay metrics on the given registry.
func NewRelay(reg prometheus.Registerer) *Relay {
	m := &Relay{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of connections currently tracked by the registry.",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total number of packets received from clients.",
		}),
		PacketsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_relayed_total",
			Help:      "Total number of packet sends submitted to target connections.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Total number of packet sends rejected by a target connection.",
		}),
		Replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replays_total",
			Help:      "Total number of cached packets replayed to new connections.",
		}),
		HeartbeatRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "rounds_total",
			Help:      "Total number of heartbeat rounds run.",
		}),
		ProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "heartbeat",
			Name:      "probe_failures_total",
			Help:      "Total number of liveness probes that could not be submitted.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.PacketsReceived,
		m.PacketsRelayed,
		m.SendFailures,
		m.Replays,
		m.HeartbeatRounds,
		m.ProbeFailures,
	)
	return m
}

func (m *Relay) SetConnections(n int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Set(float64(n))
}

func (m *Relay) PacketReceived() {
	if m == nil {
		return
	}
	m.PacketsReceived.Inc()
}

func (m *Relay) Relayed(n int) {
	if m == nil {
		return
	}
	m.PacketsRelayed.Add(float64(n))
}

func (m *Relay) SendFailed() {
	if m == nil {
		return
	}
	m.SendFailures.Inc()
}

func (m *Relay) Replayed() {
	if m == nil {
		return
	}
	m.Replays.Inc()
}

func (m *Relay) HeartbeatRound() {
	if m == nil {
		return
	}
	m.HeartbeatRounds.Inc()
}

func (m *Relay) ProbeFailed() {
	if m == nil {
		return
	}
	m.ProbeFailures.Inc()
}

// SideWrite holds collectors for the asynchronous packet side-write.
type SideWrite struct {
	Dropped  prometheus.Counter
	Failures prometheus.Counter
}

// NewSideWrite creates and registers side-write metrics on the given registry.
func NewSideWrite(reg prometheus.Registerer) *SideWrite {
	m := &SideWrite{
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sidewrite",
			Name:      "dropped_total",
			Help:      "Total number of packets dropped because the side-write queue was full.",
		}),
		Failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sidewrite",
			Name:      "failures_total",
			Help:      "Total number of side-write store errors.",
		}),
	}
	reg.MustRegister(m.Dropped, m.Failures)
	return m
}

func (m *SideWrite) Drop() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *SideWrite) Fail() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}
