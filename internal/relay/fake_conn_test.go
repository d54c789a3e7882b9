package relay

import (
	"sync"
	"sync/atomic"
)

type fakeConn struct {
	id      string
	ready   atomic.Bool
	sendErr error
	pingErr error

	mu    sync.Mutex
	sent  []Packet
	pings int
}

func newFakeConn(id string) *fakeConn {
	c := &fakeConn{id: id}
	c.ready.Store(true)
	return c
}

func (c *fakeConn) ID() string  { return c.id }
func (c *fakeConn) Ready() bool { return c.ready.Load() }

func (c *fakeConn) Send(p Packet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, p)
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pingErr != nil {
		return c.pingErr
	}
	c.pings++
	return nil
}

func (c *fakeConn) packets() []Packet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Packet, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *fakeConn) pingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pings
}

func payloads(ps []Packet) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p.Data)
	}
	return out
}
