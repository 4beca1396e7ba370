package presence

import (
	"sync"
	"time"

	"ridelink/internal/domain/user"

	"github.com/google/uuid"
)

// Conn is the write side of one live transport connection. The WebSocket
// layer provides the real implementation; tests substitute fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Session is the live binding between an authenticated identity and one open
// connection. The ConnID disambiguates connections when an identity
// reconnects: teardown of a superseded connection must never touch the
// session that replaced it.
type Session struct {
	Identity    string
	Role        user.Role
	ConnID      string
	Conn        Conn
	ConnectedAt time.Time

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool
}

// NewSession binds an authenticated identity to a connection.
func NewSession(identity string, role user.Role, conn Conn) *Session {
	return &Session{
		Identity:    identity,
		Role:        role,
		ConnID:      uuid.NewString(),
		Conn:        conn,
		ConnectedAt: time.Now().UTC(),
	}
}

// TrackRoom records a joined room on the session. It refuses once the
// session is closed so a join racing a disconnect cannot resurrect
// membership. Only the rooms manager calls this.
func (s *Session) TrackRoom(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if s.rooms == nil {
		s.rooms = make(map[string]struct{})
	}
	s.rooms[name] = struct{}{}
	return true
}

// UntrackRoom forgets one joined room. Only the rooms manager calls this.
func (s *Session) UntrackRoom(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, name)
}

// TakeRooms closes the session for further joins and returns every room it
// belonged to up to that point. Only the rooms manager calls this.
func (s *Session) TakeRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	s.rooms = nil
	return names
}

// RoomNames returns a snapshot of the rooms this session currently belongs to.
func (s *Session) RoomNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.rooms))
	for name := range s.rooms {
		names = append(names, name)
	}
	return names
}
