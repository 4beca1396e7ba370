package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"ridelink/internal/domain/user"
	"ridelink/internal/general/contracts"
	"ridelink/internal/general/logger"
	"ridelink/internal/realtime/presence"
	"ridelink/internal/realtime/rooms"

	"github.com/stretchr/testify/require"
)

// recordConn captures every frame written to it.
type recordConn struct {
	mu     sync.Mutex
	frames []contracts.ServerEvent
	closed bool
}

func (c *recordConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v.(contracts.ServerEvent))
	return nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordConn) events(typ string) []contracts.ServerEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []contracts.ServerEvent
	for _, f := range c.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

func (c *recordConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newDispatcher() *Dispatcher {
	return New(presence.NewRegistry(), rooms.NewManager(), logger.New("dispatch-test"))
}

func TestConnectAutoJoinsIdentityRoom(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	conn := &recordConn{}
	session := d.Connect(ctx, "driver-1", user.RoleDriver, conn)

	require.True(t, d.Registry().IsOnline("driver-1"))

	n := d.SendToRoom(ctx, rooms.Identity(user.RoleDriver, "driver-1"), "booking_accepted", nil)
	require.Equal(t, 1, n)
	require.Len(t, conn.events("booking_accepted"), 1)
	require.NotNil(t, session)
}

func TestSupersession(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	first := &recordConn{}
	s1 := d.Connect(ctx, "driver-1", user.RoleDriver, first)
	require.NoError(t, d.HandleDriverAvailable(ctx, s1))
	require.NoError(t, d.HandleJoinRide(ctx, s1, json.RawMessage(`{"ride_id":"42"}`)))

	second := &recordConn{}
	s2 := d.Connect(ctx, "driver-1", user.RoleDriver, second)

	// the old connection is force-closed and vacated from every room
	require.True(t, first.isClosed())
	require.Empty(t, s1.RoomNames())
	require.True(t, d.Registry().IsOnline("driver-1"))

	// deliveries reach only the new connection
	d.SendToSession(ctx, "driver-1", "ping_check", nil)
	require.Empty(t, first.events("ping_check"))
	require.Len(t, second.events("ping_check"), 1)

	// the old connection's delayed teardown must not disturb the new session
	d.Disconnect(ctx, s1)
	require.True(t, d.Registry().IsOnline("driver-1"))
	require.NotNil(t, s2)
}

func TestDisconnectClearsEverything(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	conn := &recordConn{}
	s := d.Connect(ctx, "driver-1", user.RoleDriver, conn)
	require.NoError(t, d.HandleDriverAvailable(ctx, s))
	for _, ride := range []string{"1", "2", "3"} {
		require.NoError(t, d.HandleJoinRide(ctx, s, json.RawMessage(`{"ride_id":"`+ride+`"}`)))
	}

	d.Disconnect(ctx, s)

	require.False(t, d.Registry().IsOnline("driver-1"))
	require.Empty(t, s.RoomNames())
	require.Zero(t, d.SendToRoom(ctx, rooms.AvailableDrivers(), "x", nil))
	for _, ride := range []string{"1", "2", "3"} {
		require.Zero(t, d.SendToRoom(ctx, rooms.Ride(ride), "x", nil))
	}
}

func TestSendToSession(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	t.Run("delivers to the online identity", func(t *testing.T) {
		conn := &recordConn{}
		d.Connect(ctx, "rider-1", user.RoleRider, conn)

		require.True(t, d.SendToSession(ctx, "rider-1", "booking_accepted", map[string]string{"ride_id": "42"}))
		require.Len(t, conn.events("booking_accepted"), 1)
	})

	t.Run("silently drops for offline identities", func(t *testing.T) {
		require.False(t, d.SendToSession(ctx, "rider-unknown", "booking_accepted", nil))
	})
}

func TestSendToRoomExclusion(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	sender := &recordConn{}
	other := &recordConn{}
	s1 := d.Connect(ctx, "driver-1", user.RoleDriver, sender)
	s2 := d.Connect(ctx, "rider-1", user.RoleRider, other)

	room := rooms.Ride("42")
	require.NoError(t, d.HandleJoinRide(ctx, s1, json.RawMessage(`{"ride_id":"42"}`)))
	require.NoError(t, d.HandleJoinRide(ctx, s2, json.RawMessage(`{"ride_id":"42"}`)))

	n := d.SendToRoom(ctx, room, "status", nil, s1)
	require.Equal(t, 1, n)
	require.Empty(t, sender.events("status"))
	require.Len(t, other.events("status"), 1)
}

func TestBroadcastToRole(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	d1 := &recordConn{}
	d2 := &recordConn{}
	r1 := &recordConn{}
	d.Connect(ctx, "driver-1", user.RoleDriver, d1)
	d.Connect(ctx, "driver-2", user.RoleDriver, d2)
	d.Connect(ctx, "rider-1", user.RoleRider, r1)

	n := d.BroadcastToRole(ctx, user.RoleDriver, "surge_notice", nil)
	require.Equal(t, 2, n)
	require.Len(t, d1.events("surge_notice"), 1)
	require.Len(t, d2.events("surge_notice"), 1)
	require.Empty(t, r1.events("surge_notice"))
}
