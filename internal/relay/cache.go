package relay

import "sync"

// Cache holds the most recently received packet for the whole relay so late
// joiners start from current state. It is never cleared.
type Cache struct {
	mu     sync.RWMutex
	packet Packet
	ok     bool
}

func NewCache() *Cache {
	return &Cache{}
}

// Update overwrites the slot with a private copy of p.
func (c *Cache) Update(p Packet) {
	p = p.Clone()
	c.mu.Lock()
	c.packet = p
	c.ok = true
	c.mu.Unlock()
}

// Latest returns the cached packet, if any. The payload must not be modified.
func (c *Cache) Latest() (Packet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.packet, c.ok
}

// ReplayTo sends the cached packet to conn. It reports whether a packet was
// cached; an empty cache is a no-op.
func (c *Cache) ReplayTo(conn Conn) (bool, error) {
	p, ok := c.Latest()
	if !ok {
		return false, nil
	}
	return true, conn.Send(p)
}
