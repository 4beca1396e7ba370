package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ridelink/internal/domain/user"
	"ridelink/internal/general/contracts"
	"ridelink/internal/realtime/rooms"

	"github.com/stretchr/testify/require"
)

type fanoutRecorder struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (f *fanoutRecorder) Publish(exchange, routingKey string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies = append(f.bodies, body)
	return nil
}

func (f *fanoutRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.bodies)
}

type archiveRecorder struct {
	mu   sync.Mutex
	recs []contracts.ArchivedLocation
}

func (a *archiveRecorder) Archive(rec contracts.ArchivedLocation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, rec)
}

func TestAvailabilityPool(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	driver := d.Connect(ctx, "driver-1", user.RoleDriver, &recordConn{})
	rider := d.Connect(ctx, "rider-1", user.RoleRider, &recordConn{})

	t.Run("driver toggles in and out", func(t *testing.T) {
		require.NoError(t, d.HandleDriverAvailable(ctx, driver))
		require.Equal(t, 1, d.SendToRoom(ctx, rooms.AvailableDrivers(), "x", nil))

		require.NoError(t, d.HandleDriverUnavailable(ctx, driver))
		require.Zero(t, d.SendToRoom(ctx, rooms.AvailableDrivers(), "x", nil))
	})

	t.Run("riders cannot toggle availability", func(t *testing.T) {
		require.ErrorIs(t, d.HandleDriverAvailable(ctx, rider), ErrRoleNotAllowed)
		require.ErrorIs(t, d.HandleDriverUnavailable(ctx, rider), ErrRoleNotAllowed)
	})
}

func TestLocationTrackingScenario(t *testing.T) {
	d := newDispatcher()
	fanout := &fanoutRecorder{}
	archive := &archiveRecorder{}
	d.WithPublisher(fanout).WithArchiver(archive)
	ctx := context.Background()

	driverConn := &recordConn{}
	trackerConn := &recordConn{}
	bystanderConn := &recordConn{}

	driver := d.Connect(ctx, "driver-D", user.RoleDriver, driverConn)
	tracker := d.Connect(ctx, "rider-R", user.RoleRider, trackerConn)
	d.Connect(ctx, "rider-B", user.RoleRider, bystanderConn)

	require.NoError(t, d.HandleDriverAvailable(ctx, driver))
	require.NoError(t, d.HandleTrackDriver(ctx, tracker, json.RawMessage(`{"driver_id":"driver-D"}`)))

	var lastAt time.Time
	err := d.HandleLocationUpdate(ctx, driver, json.RawMessage(`{"latitude":48.85,"longitude":2.35}`), &lastAt)
	require.NoError(t, err)

	// only the tracking rider receives it, via the subscription room
	got := trackerConn.events(contracts.EventDriverLocation)
	require.Len(t, got, 1)
	raw, _ := json.Marshal(got[0].Payload)
	var loc contracts.DriverLocation
	require.NoError(t, json.Unmarshal(raw, &loc))
	require.Equal(t, "driver-D", loc.DriverID)
	require.Equal(t, 48.85, loc.Latitude)
	require.Equal(t, 2.35, loc.Longitude)
	require.False(t, loc.Timestamp.IsZero(), "server must stamp a timestamp when the client omits one")

	require.Empty(t, driverConn.events(contracts.EventDriverLocation), "sender must be excluded")
	require.Empty(t, bystanderConn.events(contracts.EventDriverLocation))

	// the update also reached the fanout exchange and the archive
	require.Eventually(t, func() bool { return fanout.count() == 1 }, time.Second, 10*time.Millisecond)
	require.Len(t, archive.recs, 1)
	require.Equal(t, "driver-D", archive.recs[0].DriverID)

	t.Run("stop_tracking ends delivery", func(t *testing.T) {
		require.NoError(t, d.HandleStopTracking(ctx, tracker, json.RawMessage(`{"driver_id":"driver-D"}`)))

		lastAt = time.Time{}
		require.NoError(t, d.HandleLocationUpdate(ctx, driver, json.RawMessage(`{"latitude":48.86,"longitude":2.36}`), &lastAt))
		require.Len(t, trackerConn.events(contracts.EventDriverLocation), 1, "no further updates after stop_tracking")
	})
}

type stalledPublisher struct {
	release chan struct{}
}

func (p *stalledPublisher) Publish(exchange, routingKey string, body []byte) error {
	<-p.release
	return nil
}

// A broker that is slow to confirm must never stall the sender's read path;
// location bodies queue behind the fanout worker instead.
func TestLocationUpdatePublishIsAsync(t *testing.T) {
	d := newDispatcher()
	pub := &stalledPublisher{release: make(chan struct{})}
	d.WithPublisher(pub)
	defer close(pub.release)
	ctx := context.Background()

	driver := d.Connect(ctx, "driver-1", user.RoleDriver, &recordConn{})

	for i := 0; i < 5; i++ {
		var lastAt time.Time
		done := make(chan error, 1)
		go func() {
			done <- d.HandleLocationUpdate(ctx, driver, json.RawMessage(`{"latitude":1,"longitude":2}`), &lastAt)
		}()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("location update blocked behind a slow publish")
		}
	}
}

func TestLocationUpdateValidation(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()
	driver := d.Connect(ctx, "driver-1", user.RoleDriver, &recordConn{})
	rider := d.Connect(ctx, "rider-1", user.RoleRider, &recordConn{})

	var lastAt time.Time
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing latitude", payload: `{"longitude":2.35}`},
		{name: "missing longitude", payload: `{"latitude":48.85}`},
		{name: "not json", payload: `latitude=48.85`},
		{name: "latitude out of range", payload: `{"latitude":95,"longitude":0}`},
		{name: "longitude out of range", payload: `{"latitude":0,"longitude":190}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.HandleLocationUpdate(ctx, driver, json.RawMessage(tt.payload), &lastAt)
			require.ErrorIs(t, err, ErrMalformedEvent)
		})
	}

	t.Run("riders cannot publish locations", func(t *testing.T) {
		err := d.HandleLocationUpdate(ctx, rider, json.RawMessage(`{"latitude":1,"longitude":1}`), &lastAt)
		require.ErrorIs(t, err, ErrRoleNotAllowed)
	})

	t.Run("flooded updates are throttled without error", func(t *testing.T) {
		sub := d.Connect(ctx, "rider-S", user.RoleRider, &recordConn{})
		require.NoError(t, d.HandleTrackDriver(ctx, sub, json.RawMessage(`{"driver_id":"driver-1"}`)))
		subConn := sub.Conn.(*recordConn)

		var at time.Time
		require.NoError(t, d.HandleLocationUpdate(ctx, driver, json.RawMessage(`{"latitude":1,"longitude":1}`), &at))
		require.NoError(t, d.HandleLocationUpdate(ctx, driver, json.RawMessage(`{"latitude":2,"longitude":2}`), &at))
		require.Len(t, subConn.events(contracts.EventDriverLocation), 1, "second update inside the interval is dropped")
	})
}

func TestRideMessageScenario(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()

	driverConn := &recordConn{}
	riderConn := &recordConn{}
	driver := d.Connect(ctx, "driver-1", user.RoleDriver, driverConn)
	rider := d.Connect(ctx, "rider-1", user.RoleRider, riderConn)

	require.NoError(t, d.HandleJoinRide(ctx, driver, json.RawMessage(`{"ride_id":"42"}`)))
	require.NoError(t, d.HandleJoinRide(ctx, rider, json.RawMessage(`{"ride_id":"42"}`)))

	payload, _ := json.Marshal(contracts.RideMessage{RideID: "42", Message: "on my way", Type: "text"})
	require.NoError(t, d.HandleRideMessage(ctx, driver, payload))

	// both participants receive it, the sender included
	for name, conn := range map[string]*recordConn{"driver": driverConn, "rider": riderConn} {
		got := conn.events(contracts.EventNewMessage)
		require.Len(t, got, 1, "%s should receive the message", name)

		raw, _ := json.Marshal(got[0].Payload)
		var msg contracts.NewMessage
		require.NoError(t, json.Unmarshal(raw, &msg))
		require.Equal(t, "42", msg.RideID)
		require.Equal(t, "on my way", msg.Message)
		require.Equal(t, "driver-1", msg.SenderID)
		require.Equal(t, "driver", msg.SenderRole)
		require.WithinDuration(t, time.Now(), msg.Timestamp, 5*time.Second)
	}

	t.Run("malformed messages propagate to no one", func(t *testing.T) {
		require.ErrorIs(t, d.HandleRideMessage(ctx, driver, json.RawMessage(`{"ride_id":"42"}`)), ErrMalformedEvent)
		require.ErrorIs(t, d.HandleRideMessage(ctx, driver, json.RawMessage(`{"message":"hi"}`)), ErrMalformedEvent)
		require.Len(t, riderConn.events(contracts.EventNewMessage), 1)
	})

	t.Run("leave_ride ends delivery", func(t *testing.T) {
		require.NoError(t, d.HandleLeaveRide(ctx, rider, json.RawMessage(`{"ride_id":"42"}`)))
		require.NoError(t, d.HandleRideMessage(ctx, driver, payload))
		require.Len(t, riderConn.events(contracts.EventNewMessage), 1)
		require.Len(t, driverConn.events(contracts.EventNewMessage), 2)
	})
}

func TestTrackDriverValidation(t *testing.T) {
	d := newDispatcher()
	ctx := context.Background()
	rider := d.Connect(ctx, "rider-1", user.RoleRider, &recordConn{})
	driver := d.Connect(ctx, "driver-1", user.RoleDriver, &recordConn{})

	require.ErrorIs(t, d.HandleTrackDriver(ctx, rider, json.RawMessage(`{}`)), ErrMalformedEvent)
	require.ErrorIs(t, d.HandleTrackDriver(ctx, rider, json.RawMessage(`not json`)), ErrMalformedEvent)
	require.ErrorIs(t, d.HandleTrackDriver(ctx, driver, json.RawMessage(`{"driver_id":"x"}`)), ErrRoleNotAllowed)
	require.ErrorIs(t, d.HandleJoinRide(ctx, rider, json.RawMessage(`{}`)), ErrMalformedEvent)
}
