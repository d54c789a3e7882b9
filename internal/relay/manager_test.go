package relay

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realtime-relay/internal/metrics"
)

const testInterval = 30 * time.Second

type managerFixture struct {
	manager  *Manager
	registry *Registry
	cache    *Cache
	clock    *clockwork.FakeClock
	metrics  *metrics.Relay
	cancel   context.CancelFunc
}

func startManager(t *testing.T, scope Scope) *managerFixture {
	t.Helper()

	reg := NewRegistry()
	cache := NewCache()
	m := metrics.NewRelay(prometheus.NewRegistry())
	clock := clockwork.NewFakeClock()
	engine := NewEngine(reg, cache, scope, WithMetrics(m))
	hb := NewHeartbeat(reg, testInterval, nil, m)
	mgr := NewManager(reg, engine, hb, clock, nil, m)

	ctx, cancel := context.WithCancel(context.Background())
	go mgr.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-mgr.Done()
	})

	waitCtx, waitCancel := context.WithTimeout(ctx, time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1), "heartbeat ticker not started")

	return &managerFixture{manager: mgr, registry: reg, cache: cache, clock: clock, metrics: m, cancel: cancel}
}

func (f *managerFixture) register(t *testing.T, ids ...string) []*fakeConn {
	t.Helper()
	out := make([]*fakeConn, len(ids))
	for i, id := range ids {
		out[i] = newFakeConn(id)
		require.NoError(t, f.manager.Register(out[i]))
	}
	return out
}

func TestManager_RegisterTracksConnection(t *testing.T) {
	f := startManager(t, ExcludeSender)
	conns := f.register(t, "a", "b")

	assert.Equal(t, 2, f.registry.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ActiveConnections))
	assert.Empty(t, conns[0].packets(), "nothing to replay before the first packet")
}

func TestManager_RelaysExcludingSender(t *testing.T) {
	f := startManager(t, ExcludeSender)
	conns := f.register(t, "src", "b", "c")
	src, b, c := conns[0], conns[1], conns[2]

	require.NoError(t, f.manager.Receive(src, NewPacket(FramingText, []byte("ping"), time.Now())))

	assert.Eventually(t, func() bool {
		return len(b.packets()) == 1 && len(c.packets()) == 1
	}, time.Second, time.Millisecond)
	assert.Empty(t, src.packets())
}

func TestManager_LateJoinerGetsLatestFirst(t *testing.T) {
	f := startManager(t, ExcludeSender)
	src := f.register(t, "src")[0]

	require.NoError(t, f.manager.Receive(src, NewPacket(FramingText, []byte("old"), time.Now())))
	require.NoError(t, f.manager.Receive(src, NewPacket(FramingText, []byte("latest"), time.Now())))

	late := f.register(t, "late")[0]
	require.NoError(t, f.manager.Receive(src, NewPacket(FramingText, []byte("next"), time.Now())))

	assert.Eventually(t, func() bool { return len(late.packets()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"latest", "next"}, payloads(late.packets()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Replays))
}

func TestManager_UnregisterIsIdempotent(t *testing.T) {
	f := startManager(t, ExcludeSender)
	conns := f.register(t, "a", "b")

	require.NoError(t, f.manager.Unregister(conns[0]))
	require.NoError(t, f.manager.Unregister(conns[0]))

	assert.Equal(t, 1, f.registry.Len())
	assert.True(t, f.registry.Contains(conns[1]))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveConnections))
}

func TestManager_UnregisteredConnectionGetsNothing(t *testing.T) {
	f := startManager(t, ExcludeSender)
	conns := f.register(t, "src", "gone", "stays")
	require.NoError(t, f.manager.Unregister(conns[1]))

	require.NoError(t, f.manager.Receive(conns[0], NewPacket(FramingText, []byte("x"), time.Now())))
	assert.Eventually(t, func() bool { return len(conns[2].packets()) == 1 }, time.Second, time.Millisecond)

	f.clock.Advance(testInterval)
	assert.Eventually(t, func() bool { return conns[2].pingCount() == 1 }, time.Second, time.Millisecond)

	assert.Empty(t, conns[1].packets())
	assert.Zero(t, conns[1].pingCount())
}

func TestManager_HeartbeatEveryInterval(t *testing.T) {
	f := startManager(t, ExcludeSender)
	conns := f.register(t, "a", "b")

	for round := 1; round <= 3; round++ {
		if round == 2 {
			// Application traffic between ticks must not reset the schedule.
			require.NoError(t, f.manager.Receive(conns[0], NewPacket(FramingText, []byte("chatter"), time.Now())))
		}
		f.clock.Advance(testInterval)
		assert.Eventually(t, func() bool {
			return conns[0].pingCount() == round && conns[1].pingCount() == round
		}, time.Second, time.Millisecond, "round %d", round)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.HeartbeatRounds))
}

func TestManager_NoHeartbeatBeforeInterval(t *testing.T) {
	f := startManager(t, ExcludeSender)
	a := f.register(t, "a")[0]

	f.clock.Advance(testInterval - time.Second)
	// Round-trip an event through the loop so any pending tick would have run.
	require.NoError(t, f.manager.Register(newFakeConn("sync")))

	assert.Zero(t, a.pingCount())
}

func TestManager_StoppedManagerRejectsEvents(t *testing.T) {
	f := startManager(t, ExcludeSender)
	c := f.register(t, "a")[0]

	f.cancel()
	<-f.manager.Done()

	assert.ErrorIs(t, f.manager.Register(newFakeConn("b")), ErrManagerStopped)
	assert.ErrorIs(t, f.manager.Unregister(c), ErrManagerStopped)
	assert.ErrorIs(t, f.manager.Receive(c, NewPacket(FramingText, nil, time.Now())), ErrManagerStopped)
}
