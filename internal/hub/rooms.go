package hub

import "sync"

// departure records one room a disconnecting connection was removed
// from, with the members left behind to notify.
type departure struct {
	roomID    string
	remaining []*Client
	deleted   bool
}

// roomRegistry maps an opaque room key to the connections joined to it
// for call signaling. A room exists only while it has members; the empty
// room is deleted under the same lock as the last leave. No two-party
// structure is assumed, room keys are opaque.
type roomRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Client
	byConn map[string]map[string]struct{}
}

func newRoomRegistry() *roomRegistry {
	return &roomRegistry{
		rooms:  make(map[string]map[string]*Client),
		byConn: make(map[string]map[string]struct{}),
	}
}

// join adds the connection to the room, creating it if absent, and
// returns the members that were already there.
func (r *roomRegistry) join(roomID string, c *Client) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		r.rooms[roomID] = members
	}

	others := make([]*Client, 0, len(members))
	for id, m := range members {
		if id != c.ID {
			others = append(others, m)
		}
	}

	members[c.ID] = c

	roomsOf, ok := r.byConn[c.ID]
	if !ok {
		roomsOf = make(map[string]struct{})
		r.byConn[c.ID] = roomsOf
	}
	roomsOf[roomID] = struct{}{}

	return others
}

// leave removes the connection from one room and returns the remaining
// members plus whether the now-empty room was deleted.
func (r *roomRegistry) leave(roomID, connID string) (remaining []*Client, deleted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(roomID, connID)
}

// leaveAll removes the connection from every room it joined; used for
// ungraceful disconnect cleanup.
func (r *roomRegistry) leaveAll(connID string) []departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomsOf := r.byConn[connID]
	out := make([]departure, 0, len(roomsOf))
	for roomID := range roomsOf {
		remaining, deleted := r.leaveLocked(roomID, connID)
		out = append(out, departure{roomID: roomID, remaining: remaining, deleted: deleted})
	}
	return out
}

func (r *roomRegistry) leaveLocked(roomID, connID string) (remaining []*Client, deleted bool) {
	members, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	if _, ok := members[connID]; !ok {
		return nil, false
	}

	delete(members, connID)
	if roomsOf, ok := r.byConn[connID]; ok {
		delete(roomsOf, roomID)
		if len(roomsOf) == 0 {
			delete(r.byConn, connID)
		}
	}

	if len(members) == 0 {
		delete(r.rooms, roomID)
		return nil, true
	}

	remaining = make([]*Client, 0, len(members))
	for _, m := range members {
		remaining = append(remaining, m)
	}
	return remaining, false
}

// drop removes an entire room, returning the members it held.
func (r *roomRegistry) drop(roomID string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := r.rooms[roomID]
	out := make([]*Client, 0, len(members))
	for _, m := range members {
		out = append(out, m)
		if roomsOf, ok := r.byConn[m.ID]; ok {
			delete(roomsOf, roomID)
			if len(roomsOf) == 0 {
				delete(r.byConn, m.ID)
			}
		}
	}
	delete(r.rooms, roomID)
	return out
}

func (r *roomRegistry) members(roomID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[roomID]
	out := make([]*Client, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out
}

func (r *roomRegistry) contains(roomID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[roomID]
	return ok
}

func (r *roomRegistry) memberCount(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}
