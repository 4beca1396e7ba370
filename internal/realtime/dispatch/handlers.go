package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ridelink/internal/domain/geo"
	"ridelink/internal/general/contracts"
	"ridelink/internal/realtime/presence"
	"ridelink/internal/realtime/rooms"
)

var (
	// ErrMalformedEvent: a single event payload failed validation. The event
	// is dropped and logged; the connection stays open.
	ErrMalformedEvent = errors.New("malformed event payload")
	// ErrRoleNotAllowed: the event is not valid for the sender's role.
	ErrRoleNotAllowed = errors.New("event not allowed for role")
)

// locationMinInterval caps how often one driver connection may publish a
// position; updates arriving faster are dropped without error.
const locationMinInterval = time.Second

// HandleDriverAvailable joins a driver session to the availability pool.
func (d *Dispatcher) HandleDriverAvailable(ctx context.Context, session *presence.Session) error {
	if !session.Role.IsDriver() {
		return fmt.Errorf("%w: driver_available from %s", ErrRoleNotAllowed, session.Role)
	}
	d.rooms.Join(rooms.AvailableDrivers(), session)
	d.logger.Info(ctx, "driver_available", "Driver joined the availability pool",
		map[string]any{"driver_id": session.Identity})
	return nil
}

// HandleDriverUnavailable removes a driver session from the availability pool.
func (d *Dispatcher) HandleDriverUnavailable(ctx context.Context, session *presence.Session) error {
	if !session.Role.IsDriver() {
		return fmt.Errorf("%w: driver_unavailable from %s", ErrRoleNotAllowed, session.Role)
	}
	d.rooms.Leave(rooms.AvailableDrivers(), session)
	d.logger.Info(ctx, "driver_unavailable", "Driver left the availability pool",
		map[string]any{"driver_id": session.Identity})
	return nil
}

// HandleLocationUpdate validates a driver position and republishes it into
// the driver's location-subscription room, excluding the sender. lastAt is
// the per-connection throttle marker owned by the read loop.
func (d *Dispatcher) HandleLocationUpdate(ctx context.Context, session *presence.Session, data json.RawMessage, lastAt *time.Time) error {
	if !session.Role.IsDriver() {
		return fmt.Errorf("%w: location_update from %s", ErrRoleNotAllowed, session.Role)
	}

	// required fields are pointers so "missing" and "zero" stay distinct
	var payload struct {
		Latitude       *float64  `json:"latitude"`
		Longitude      *float64  `json:"longitude"`
		AccuracyMeters float64   `json:"accuracy_meters"`
		Timestamp      time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if payload.Latitude == nil || payload.Longitude == nil {
		return fmt.Errorf("%w: latitude and longitude are required", ErrMalformedEvent)
	}

	point := geo.Point{
		Latitude:       *payload.Latitude,
		Longitude:      *payload.Longitude,
		AccuracyMeters: payload.AccuracyMeters,
	}
	if err := point.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	now := time.Now()
	if !lastAt.IsZero() && now.Sub(*lastAt) < locationMinInterval {
		// silently drop floods; the next full-interval update wins
		return nil
	}
	*lastAt = now

	ts := payload.Timestamp
	if ts.IsZero() {
		ts = now.UTC()
	}

	loc := contracts.DriverLocation{
		DriverID:       session.Identity,
		Latitude:       point.Latitude,
		Longitude:      point.Longitude,
		AccuracyMeters: point.AccuracyMeters,
		Timestamp:      ts,
	}

	d.SendToRoom(ctx, rooms.DriverLocation(session.Identity), contracts.EventDriverLocation, loc, session)
	d.publishLocation(ctx, session, loc)
	return nil
}

// HandleTrackDriver subscribes a rider to a driver's live position.
func (d *Dispatcher) HandleTrackDriver(ctx context.Context, session *presence.Session, data json.RawMessage) error {
	if !session.Role.IsRider() {
		return fmt.Errorf("%w: track_driver from %s", ErrRoleNotAllowed, session.Role)
	}
	driverID, err := requireID(data, "driver_id")
	if err != nil {
		return err
	}
	d.rooms.Join(rooms.DriverLocation(driverID), session)
	d.logger.Debug(ctx, "track_driver", "Rider subscribed to driver location",
		map[string]any{"rider_id": session.Identity, "driver_id": driverID})
	return nil
}

// HandleStopTracking unsubscribes a rider from a driver's live position.
func (d *Dispatcher) HandleStopTracking(ctx context.Context, session *presence.Session, data json.RawMessage) error {
	if !session.Role.IsRider() {
		return fmt.Errorf("%w: stop_tracking from %s", ErrRoleNotAllowed, session.Role)
	}
	driverID, err := requireID(data, "driver_id")
	if err != nil {
		return err
	}
	d.rooms.Leave(rooms.DriverLocation(driverID), session)
	return nil
}

// HandleJoinRide joins the session to a ride room. Ride existence is the
// booking layer's concern; a requested ride id is trusted here.
func (d *Dispatcher) HandleJoinRide(ctx context.Context, session *presence.Session, data json.RawMessage) error {
	rideID, err := requireID(data, "ride_id")
	if err != nil {
		return err
	}
	d.rooms.Join(rooms.Ride(rideID), session)
	d.logger.Debug(ctx, "join_ride", "Session joined ride room",
		map[string]any{"identity_id": session.Identity, "ride_id": rideID})
	return nil
}

// HandleLeaveRide removes the session from a ride room.
func (d *Dispatcher) HandleLeaveRide(ctx context.Context, session *presence.Session, data json.RawMessage) error {
	rideID, err := requireID(data, "ride_id")
	if err != nil {
		return err
	}
	d.rooms.Leave(rooms.Ride(rideID), session)
	return nil
}

// HandleRideMessage stamps the sender's identity, role, and a server
// timestamp onto a chat message and fans it out to the full ride room,
// sender included.
func (d *Dispatcher) HandleRideMessage(ctx context.Context, session *presence.Session, data json.RawMessage) error {
	var payload contracts.RideMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(payload.RideID) == "" {
		return fmt.Errorf("%w: ride_id is required", ErrMalformedEvent)
	}
	if strings.TrimSpace(payload.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrMalformedEvent)
	}

	msg := contracts.NewMessage{
		RideID:     payload.RideID,
		Message:    payload.Message,
		Type:       payload.Type,
		SenderID:   session.Identity,
		SenderRole: session.Role.String(),
		Timestamp:  time.Now().UTC(),
	}

	d.SendToRoom(ctx, rooms.Ride(payload.RideID), contracts.EventNewMessage, msg)
	return nil
}

// requireID extracts one non-empty string field from a payload.
func requireID(data json.RawMessage, field string) (string, error) {
	var payload map[string]string
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	id := strings.TrimSpace(payload[field])
	if id == "" {
		return "", fmt.Errorf("%w: %s is required", ErrMalformedEvent, field)
	}
	return id, nil
}
