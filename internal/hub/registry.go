package hub

import "sync"

// connRegistry maps a user identity to its set of open connections. A
// user appears in byUser only while it has at least one connection; the
// empty set is removed under the same lock as the removal, so presence
// transitions are decided atomically per user.
type connRegistry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client
	byConn map[string]*Client
}

func newConnRegistry() *connRegistry {
	return &connRegistry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]*Client),
	}
}

// add registers the connection and reports whether it is the user's
// first, i.e. the 0 -> 1 presence transition.
func (r *connRegistry) add(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[c.UserID]
	if !ok {
		conns = make(map[string]*Client)
		r.byUser[c.UserID] = conns
	}
	conns[c.ID] = c
	r.byConn[c.ID] = c

	return len(conns) == 1
}

// remove unregisters the connection. The first return reports whether
// the connection was present at all (guards double-unregister), the
// second whether it was the user's last, i.e. the 1 -> 0 transition.
func (r *connRegistry) remove(c *Client) (removed, last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.byUser[c.UserID]
	if !ok {
		return false, false
	}
	if _, ok := conns[c.ID]; !ok {
		return false, false
	}

	delete(conns, c.ID)
	delete(r.byConn, c.ID)

	if len(conns) == 0 {
		delete(r.byUser, c.UserID)
		return true, true
	}
	return true, false
}

// connectionsFor snapshots the user's open connections; possibly empty.
func (r *connRegistry) connectionsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.byUser[userID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

// find resolves a connection identifier; nil when it no longer exists.
func (r *connRegistry) find(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// snapshot returns every open connection, for global broadcasts.
func (r *connRegistry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}

func (r *connRegistry) hasUser(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[userID]
	return ok
}

func (r *connRegistry) countFor(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}
