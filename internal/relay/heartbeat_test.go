package relay

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-relay/internal/metrics"
)

func TestHeartbeat_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultHeartbeatInterval, NewHeartbeat(NewRegistry(), 0, nil, nil).Interval())
}

func TestHeartbeat_ProbesEveryOpenConnection(t *testing.T) {
	r := NewRegistry()
	a, b, closing := newFakeConn("a"), newFakeConn("b"), newFakeConn("closing")
	closing.ready.Store(false)
	for _, c := range []*fakeConn{a, b, closing} {
		r.Register(c)
	}
	h := NewHeartbeat(r, DefaultHeartbeatInterval, nil, nil)

	assert.Equal(t, 2, h.Probe())
	assert.Equal(t, 1, a.pingCount())
	assert.Equal(t, 1, b.pingCount())
	assert.Equal(t, 0, closing.pingCount())
	assert.Empty(t, a.packets(), "probes are not application data")
}

func TestHeartbeat_FailedProbeIsLoggedAndKept(t *testing.T) {
	r := NewRegistry()
	ok, broken := newFakeConn("ok"), newFakeConn("broken")
	broken.pingErr = ErrSendBufferFull
	r.Register(ok)
	r.Register(broken)

	log, hook := logtest.NewNullLogger()
	m := metrics.NewRelay(prometheus.NewRegistry())
	h := NewHeartbeat(r, DefaultHeartbeatInterval, log, m)

	assert.Equal(t, 2, h.Probe())
	assert.Equal(t, 1, ok.pingCount())
	assert.True(t, r.Contains(broken))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProbeFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HeartbeatRounds))
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "broken", hook.LastEntry().Data["client_id"])
}
