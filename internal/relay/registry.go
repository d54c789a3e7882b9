package relay

import "sync"

// Registry tracks the currently open connections. It does not own them: the
// transport decides when a connection dies and tells the registry through
// Unregister.
type Registry struct {
	mu    sync.Mutex
	conns map[Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[Conn]struct{})}
}

// Register adds c and reports whether it was new.
func (r *Registry) Register(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; ok {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

// Unregister removes c and reports whether it was present.
func (r *Registry) Unregister(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[c]; !ok {
		return false
	}
	delete(r.conns, c)
	return true
}

// ForEachOpen calls visit for every tracked connection that reports itself
// ready, and returns how many were visited. Membership is snapshotted first so
// visit runs without the lock and may race with Register/Unregister safely.
// Connections that are not ready are skipped, not removed.
func (r *Registry) ForEachOpen(visit func(Conn)) int {
	visited := 0
	for _, c := range r.snapshot() {
		if !c.Ready() {
			continue
		}
		visit(c)
		visited++
	}
	return visited
}

func (r *Registry) Contains(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[c]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Registry) snapshot() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Conn, 0, len(r.conns))
	for c := range r.conns {
		out = append(out, c)
	}
	return out
}
