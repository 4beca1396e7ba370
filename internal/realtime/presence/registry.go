package presence

import (
	"hash/fnv"
	"sync"

	"ridelink/internal/domain/user"
)

const shardCount = 16

// Stats is a point-in-time census of connected sessions, computed by
// scanning the registry rather than by keeping counters that could drift.
type Stats struct {
	Total  int               `json:"total"`
	ByRole map[user.Role]int `json:"by_role"`
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Registry is the process-wide mapping from identity to its one live
// session. It is sharded by identity hash so connects and disconnects of
// unrelated identities never contend, while operations on the same identity
// are strictly serialized by its shard.
type Registry struct {
	shards [shardCount]*shard
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return r
}

func (r *Registry) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return r.shards[h.Sum32()%shardCount]
}

// RecordConnected inserts the session for its identity. If a session already
// exists for that identity it is superseded, not merged: the prior session is
// returned so the caller can vacate its rooms and close its connection before
// any event is delivered to the new one.
func (r *Registry) RecordConnected(session *Session) (prior *Session) {
	sh := r.shardFor(session.Identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	prior = sh.sessions[session.Identity]
	sh.sessions[session.Identity] = session
	return prior
}

// RecordDisconnected removes the identity's session, but only when it still
// refers to the given connection. A disconnect of a superseded connection
// arriving late must not evict the replacement. Idempotent.
func (r *Registry) RecordDisconnected(identity, connID string) bool {
	sh := r.shardFor(identity)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	current, ok := sh.sessions[identity]
	if !ok || current.ConnID != connID {
		return false
	}
	delete(sh.sessions, identity)
	return true
}

// Get returns the live session for an identity, if any.
func (r *Registry) Get(identity string) (*Session, bool) {
	sh := r.shardFor(identity)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	s, ok := sh.sessions[identity]
	return s, ok
}

// IsOnline reports whether the identity currently holds an open connection.
func (r *Registry) IsOnline(identity string) bool {
	_, ok := r.Get(identity)
	return ok
}

// SessionsByRole returns a snapshot of every session with the given role.
func (r *Registry) SessionsByRole(role user.Role) []*Session {
	var out []*Session
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			if s.Role == role {
				out = append(out, s)
			}
		}
		sh.mu.RUnlock()
	}
	return out
}

// Stats counts current sessions by scanning every shard.
func (r *Registry) Stats() Stats {
	stats := Stats{ByRole: make(map[user.Role]int)}
	for _, sh := range r.shards {
		sh.mu.RLock()
		for _, s := range sh.sessions {
			stats.Total++
			stats.ByRole[s.Role]++
		}
		sh.mu.RUnlock()
	}
	return stats
}
