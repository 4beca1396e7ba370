package contracts

import (
	"encoding/json"
	"time"
)

// Envelope adds cross-cutting headers all messages may carry.
type Envelope struct {
	CorrelationID string    `json:"correlation_id,omitempty"` // correlation for tracing across services
	Producer      string    `json:"producer,omitempty"`       // producer service name
	SentAt        time.Time `json:"sent_at,omitempty"`        // ISO-8601 send time (UTC)
}

// ClientEvent is the minimal inbound envelope read off a WebSocket.
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ServerEvent is the outbound frame written to a WebSocket.
type ServerEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// LocationUpdate is the "location_update" payload a driver sends.
type LocationUpdate struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
}

// DriverLocation is the "driver_location" payload republished to the
// driver's location-subscription room.
type DriverLocation struct {
	DriverID       string    `json:"driver_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// TrackDriver is the "track_driver" / "stop_tracking" payload.
type TrackDriver struct {
	DriverID string `json:"driver_id"`
}

// RideRef is the "join_ride" / "leave_ride" payload.
type RideRef struct {
	RideID string `json:"ride_id"`
}

// RideMessage is the "ride_message" payload a participant sends.
type RideMessage struct {
	RideID  string `json:"ride_id"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"` // e.g. "text", "system"
}

// NewMessage is the "new_message" payload fanned out to the full ride room.
// Sender identity, role, and timestamp are stamped by the server.
type NewMessage struct {
	RideID     string    `json:"ride_id"`
	Message    string    `json:"message"`
	Type       string    `json:"type,omitempty"`
	SenderID   string    `json:"sender_id"`
	SenderRole string    `json:"sender_role"`
	Timestamp  time.Time `json:"timestamp"`
}

// Notification is consumed from the realtime_notifications queue: a
// server-initiated event the CRUD layer wants pushed to live connections.
// Exactly one of IdentityID, Room, or Role selects the audience.
type Notification struct {
	IdentityID string          `json:"identity_id,omitempty"`
	Room       string          `json:"room,omitempty"`
	Role       string          `json:"role,omitempty"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Envelope
}

// ArchivedLocation is published to the location fanout exchange for
// out-of-process consumers (analytics, trip replay).
type ArchivedLocation struct {
	DriverID       string    `json:"driver_id"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	RecordedAt     time.Time `json:"recorded_at"`
	Envelope
}
