package rooms

import (
	"hash/fnv"
	"sync"

	"ridelink/internal/realtime/presence"
)

const shardCount = 32

type shard struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*presence.Session // room name -> connID -> session
}

// Manager tracks which sessions belong to which rooms. Membership is a
// derived, in-memory index over live sessions: every disconnect must pass
// through LeaveAll so the index never outlives the connections it points at.
// The index is sharded by room name; each session additionally tracks its own
// joined set, which is what LeaveAll drains.
type Manager struct {
	shards [shardCount]*shard
}

// NewManager creates an empty membership index.
func NewManager() *Manager {
	m := &Manager{}
	for i := range m.shards {
		m.shards[i] = &shard{rooms: make(map[string]map[string]*presence.Session)}
	}
	return m
}

func (m *Manager) shardFor(name string) *shard {
	h := fnv.New32a()
	h.Write([]byte(name))
	return m.shards[h.Sum32()%shardCount]
}

// Join adds the session to the room, creating the room as needed. Joining
// twice is a no-op. Returns false when the session is already torn down, in
// which case no membership is recorded.
func (m *Manager) Join(room Room, session *presence.Session) bool {
	name := room.Name()
	sh := m.shardFor(name)

	sh.mu.Lock()
	members, ok := sh.rooms[name]
	if !ok {
		members = make(map[string]*presence.Session)
		sh.rooms[name] = members
	}
	members[session.ConnID] = session
	sh.mu.Unlock()

	if !session.TrackRoom(name) {
		// the session was closed between our insert and the tracking call;
		// undo the insert so the index stays consistent
		m.remove(name, session.ConnID)
		return false
	}
	return true
}

// Leave removes the session from the room. Leaving a room the session never
// joined, or a room that does not exist, is a no-op.
func (m *Manager) Leave(room Room, session *presence.Session) {
	name := room.Name()
	session.UntrackRoom(name)
	m.remove(name, session.ConnID)
}

// LeaveAll removes the session from every room it belongs to and blocks
// further joins on it. Used on disconnect and supersession.
func (m *Manager) LeaveAll(session *presence.Session) {
	for _, name := range session.TakeRooms() {
		m.remove(name, session.ConnID)
	}
}

// Members returns a point-in-time snapshot of the room's sessions. An empty
// or absent room yields an empty slice, never an error.
func (m *Manager) Members(room Room) []*presence.Session {
	name := room.Name()
	sh := m.shardFor(name)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	members := sh.rooms[name]
	out := make([]*presence.Session, 0, len(members))
	for _, s := range members {
		out = append(out, s)
	}
	return out
}

// Contains reports whether the session is currently a member of the room.
func (m *Manager) Contains(room Room, session *presence.Session) bool {
	name := room.Name()
	sh := m.shardFor(name)

	sh.mu.RLock()
	defer sh.mu.RUnlock()

	_, ok := sh.rooms[name][session.ConnID]
	return ok
}

// remove deletes one membership entry and prunes the room when it empties.
func (m *Manager) remove(name, connID string) {
	sh := m.shardFor(name)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	members, ok := sh.rooms[name]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(sh.rooms, name)
	}
}
