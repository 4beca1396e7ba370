package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"ridelink/internal/domain/user"
	"ridelink/internal/general/contracts"
	"ridelink/internal/general/logger"
	"ridelink/internal/general/metrics"
	"ridelink/internal/realtime/presence"
	"ridelink/internal/realtime/rooms"
)

// Publisher mirrors the AMQP publish side. Location updates are republished
// to the fanout exchange for out-of-process consumers; failures there are
// logged and never surfaced to the sending connection.
type Publisher interface {
	Publish(exchange, routingKey string, body []byte) error
}

// Archiver is the best-effort location-history sink. Implementations must
// not block the caller.
type Archiver interface {
	Archive(rec contracts.ArchivedLocation)
}

// Dispatcher owns delivery: to a single session, to a room snapshot, or to a
// role-filtered broadcast group. It also owns the connect/disconnect
// lifecycle so presence and room state can never disagree about who is
// reachable.
type Dispatcher struct {
	registry *presence.Registry
	rooms    *rooms.Manager
	logger   *logger.Logger

	// optional collaborators; nil disables the feature
	publisher Publisher
	archiver  Archiver
	locFanout chan []byte
}

// locationFanoutBuffer bounds queued location bodies awaiting a broker
// confirm. Full buffer means drop, never a stalled read loop.
const locationFanoutBuffer = 256

// New creates a Dispatcher over the given registry and room index.
func New(registry *presence.Registry, roomIndex *rooms.Manager, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		rooms:    roomIndex,
		logger:   log,
	}
}

// WithPublisher attaches the AMQP fanout for location updates. Publishing
// waits for broker confirms, so it runs on its own worker behind a bounded
// buffer instead of on the connection read path.
func (d *Dispatcher) WithPublisher(p Publisher) *Dispatcher {
	d.publisher = p
	d.locFanout = make(chan []byte, locationFanoutBuffer)
	go d.runLocationFanout()
	return d
}

func (d *Dispatcher) runLocationFanout() {
	ctx := context.Background()
	for body := range d.locFanout {
		if err := d.publisher.Publish(contracts.ExchangeLocationFanout, "", body); err != nil {
			d.logger.Warn(ctx, "location_fanout_failed", "Failed to republish location update",
				map[string]any{"error": err.Error()})
		}
	}
}

// WithArchiver attaches the location-history sink.
func (d *Dispatcher) WithArchiver(a Archiver) *Dispatcher {
	d.archiver = a
	return d
}

// Registry exposes the presence registry for read-only callers (stats).
func (d *Dispatcher) Registry() *presence.Registry {
	return d.registry
}

// Connect admits an authenticated connection: it records presence,
// supersedes any prior session for the same identity (vacating its rooms and
// force-closing its connection before the new session can receive anything),
// and auto-joins the identity room.
func (d *Dispatcher) Connect(ctx context.Context, identity string, role user.Role, conn presence.Conn) *presence.Session {
	session := presence.NewSession(identity, role, conn)

	prior := d.registry.RecordConnected(session)
	if prior != nil {
		d.rooms.LeaveAll(prior)
		_ = prior.Conn.Close()
		d.logger.Info(ctx, "session_superseded", "New connection replaced an existing session",
			map[string]any{"identity_id": identity, "old_conn": prior.ConnID, "new_conn": session.ConnID})
	}

	d.rooms.Join(rooms.Identity(role, identity), session)
	metrics.ConnectionsActive.WithLabelValues(role.String()).Inc()

	d.logger.Info(ctx, "session_connected", "Session admitted",
		map[string]any{"identity_id": identity, "role": role.String(), "conn_id": session.ConnID})

	return session
}

// Disconnect tears a session down: every room membership is removed and the
// presence entry cleared before the connection's resources are released.
// Safe to call for superseded sessions, whose registry entry is already gone.
func (d *Dispatcher) Disconnect(ctx context.Context, session *presence.Session) {
	d.rooms.LeaveAll(session)
	d.registry.RecordDisconnected(session.Identity, session.ConnID)
	metrics.ConnectionsActive.WithLabelValues(session.Role.String()).Dec()

	d.logger.Info(ctx, "session_disconnected", "Session torn down",
		map[string]any{"identity_id": session.Identity, "conn_id": session.ConnID})
}

// SendToSession delivers one event to the identity's live connection.
// Best effort, at most once: if the identity is offline the event is dropped
// silently (debug-logged), never queued.
func (d *Dispatcher) SendToSession(ctx context.Context, identity, event string, payload any) bool {
	session, ok := d.registry.Get(identity)
	if !ok {
		metrics.DeliveriesDropped.WithLabelValues("offline").Inc()
		d.logger.Debug(ctx, "delivery_dropped", "Target identity offline",
			map[string]any{"identity_id": identity, "event": event})
		return false
	}
	return d.write(ctx, session, event, payload)
}

// SendToRoom delivers one event to every member of the room at dispatch
// time. Membership is read as a point-in-time snapshot: joins after the
// snapshot miss this event, leaves before it are excluded.
func (d *Dispatcher) SendToRoom(ctx context.Context, room rooms.Room, event string, payload any, exclude ...*presence.Session) int {
	excluded := make(map[string]struct{}, len(exclude))
	for _, s := range exclude {
		if s != nil {
			excluded[s.ConnID] = struct{}{}
		}
	}

	delivered := 0
	for _, member := range d.rooms.Members(room) {
		if _, skip := excluded[member.ConnID]; skip {
			continue
		}
		if d.write(ctx, member, event, payload) {
			delivered++
		}
	}
	return delivered
}

// BroadcastToRole delivers one event to every session with the given role.
func (d *Dispatcher) BroadcastToRole(ctx context.Context, role user.Role, event string, payload any) int {
	delivered := 0
	for _, session := range d.registry.SessionsByRole(role) {
		if d.write(ctx, session, event, payload) {
			delivered++
		}
	}
	return delivered
}

// write pushes one frame onto a session's connection. A write failure is the
// transport's problem; delivery stays best-effort and the failure never
// propagates to other sessions.
func (d *Dispatcher) write(ctx context.Context, session *presence.Session, event string, payload any) bool {
	if err := session.Conn.WriteJSON(contracts.ServerEvent{Type: event, Payload: payload}); err != nil {
		metrics.DeliveriesDropped.WithLabelValues("write_failed").Inc()
		d.logger.Warn(ctx, "delivery_write_failed", "Failed to write event to connection",
			map[string]any{"identity_id": session.Identity, "event": event, "error": err.Error()})
		return false
	}
	return true
}

// publishLocation republishes one location update to the fanout exchange and
// hands it to the history archiver. Both are optional and best-effort.
func (d *Dispatcher) publishLocation(ctx context.Context, session *presence.Session, loc contracts.DriverLocation) {
	rec := contracts.ArchivedLocation{
		DriverID:       loc.DriverID,
		Latitude:       loc.Latitude,
		Longitude:      loc.Longitude,
		AccuracyMeters: loc.AccuracyMeters,
		RecordedAt:     loc.Timestamp,
		Envelope: contracts.Envelope{
			Producer: "realtime-service",
			SentAt:   time.Now().UTC(),
		},
	}

	if d.archiver != nil {
		d.archiver.Archive(rec)
	}

	if d.publisher != nil {
		body, err := json.Marshal(rec)
		if err != nil {
			d.logger.Warn(ctx, "location_fanout_failed", "Failed to encode location update",
				map[string]any{"driver_id": loc.DriverID, "error": err.Error()})
			return
		}
		select {
		case d.locFanout <- body:
		default:
			metrics.DeliveriesDropped.WithLabelValues("fanout_backlog").Inc()
			d.logger.Warn(ctx, "location_fanout_backlog", "Fanout buffer full, dropping location update",
				map[string]any{"driver_id": loc.DriverID})
		}
	}
}
