package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ridelink/internal/general/contracts"
	"ridelink/internal/general/jwt"
	"ridelink/internal/general/logger"
	"ridelink/internal/general/metrics"
	"ridelink/internal/realtime/dispatch"

	"github.com/gorilla/websocket"
)

const (
	authWindow   = 10 * time.Second
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler terminates WebSocket connections with JWT auth and feeds the
// decoded events into the dispatcher.
type Handler struct {
	logger     *logger.Logger
	jwtMgr     *jwt.Manager
	dispatcher *dispatch.Dispatcher
}

func NewHandler(log *logger.Logger, jwtMgr *jwt.Manager, d *dispatch.Dispatcher) *Handler {
	return &Handler{logger: log, jwtMgr: jwtMgr, dispatcher: d}
}

// Connect upgrades the request and runs the connection lifecycle:
// first-frame auth, presence registration, ping loop, read loop.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	conn := newWSConn(raw)
	// Teardown order (LIFO on return): close the socket last.
	defer conn.Close()

	raw.SetReadLimit(1 << 20) // 1 MiB
	if err := raw.SetReadDeadline(time.Now().Add(authWindow)); err != nil {
		h.logger.Error(r.Context(), "ws_set_deadline_failed", "Failed to set initial read deadline", err, nil)
		h.sendAuthError(conn, "internal server error")
		return
	}

	mt, firstFrame, err := raw.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			h.logger.Error(r.Context(), "ws_auth_timeout", "Client disconnected before authentication", err, nil)
		} else {
			h.logger.Error(r.Context(), "ws_auth_read_failed", "Failed to read auth message", err, nil)
		}
		h.sendAuthError(conn, "authentication timeout: please send auth message within 10 seconds")
		return
	}
	if mt != websocket.TextMessage {
		h.logger.Error(r.Context(), "ws_auth_invalid_format", "Auth message must be text format", nil, nil)
		h.sendAuthError(conn, "auth message must be in text format")
		return
	}

	res, err := jwt.ValidateAuthFrame(firstFrame, h.jwtMgr)
	if err != nil {
		h.logger.Error(r.Context(), "ws_auth_failed", "Invalid auth message or token", err, nil)
		if errors.Is(err, jwt.ErrCredentialMissing) {
			h.sendAuthError(conn, "authentication failed: credential missing")
		} else {
			h.sendAuthError(conn, "authentication failed: invalid token")
		}
		return
	}
	identityID := res.Claims.Subject
	role := res.Claims.Role

	if err := h.sendAuthSuccess(conn, identityID, role.String()); err != nil {
		h.logger.Error(r.Context(), "ws_auth_success_failed", "Failed to send auth success message", err, nil)
		return
	}

	ctx := h.logger.WithIdentity(r.Context(), identityID)
	h.logger.Info(ctx, "ws_connected", "WebSocket connected",
		map[string]any{"identity_id": identityID, "role": role.String()})

	_ = raw.SetReadDeadline(time.Now().Add(readDeadline))
	raw.SetPongHandler(func(_ string) error {
		return raw.SetReadDeadline(time.Now().Add(readDeadline))
	})

	// Ping loop shares the per-connection writer lock with the dispatcher.
	// done releases it when the read loop returns; a stopped ticker alone
	// would leave the goroutine parked on its channel.
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.ping(); err != nil {
					// Close socket to unblock reader; goroutine exits.
					_ = conn.Close()
					h.logger.Error(ctx, "ws_ping_failed", "Failed to send ping", err,
						map[string]any{"identity_id": identityID})
					return
				}
			}
		}
	}()

	session := h.dispatcher.Connect(ctx, identityID, role, conn)
	defer h.dispatcher.Disconnect(ctx, session)

	// Per-connection throttle marker for location updates.
	var lastLocAt time.Time

	for {
		_ = raw.SetReadDeadline(time.Now().Add(readDeadline))
		_, payload, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error(ctx, "ws_unexpected_close", "Connection closed unexpectedly", err,
					map[string]any{"identity_id": identityID})
				conn.writeClose(websocket.CloseInternalServerErr, "internal error")
			} else {
				h.logger.Info(ctx, "ws_connection_closed", "Connection closed normally",
					map[string]any{"identity_id": identityID})
				conn.writeClose(websocket.CloseNormalClosure, "bye")
			}
			return
		}

		var msg contracts.ClientEvent
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.sendError(conn, "bad json")
			continue
		}

		switch msg.Type {
		case contracts.EventPing:
			metrics.EventsTotal.WithLabelValues(msg.Type, "ok").Inc()
			_ = conn.WriteJSON(contracts.ServerEvent{Type: contracts.EventPong})

		case contracts.EventDriverAvailable:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleDriverAvailable(ctx, session))

		case contracts.EventDriverUnavailable:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleDriverUnavailable(ctx, session))

		case contracts.EventLocationUpdate:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleLocationUpdate(ctx, session, msg.Data, &lastLocAt))

		case contracts.EventTrackDriver:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleTrackDriver(ctx, session, msg.Data))

		case contracts.EventStopTracking:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleStopTracking(ctx, session, msg.Data))

		case contracts.EventJoinRide:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleJoinRide(ctx, session, msg.Data))

		case contracts.EventLeaveRide:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleLeaveRide(ctx, session, msg.Data))

		case contracts.EventRideMessage:
			h.route(ctx, conn, msg.Type, h.dispatcher.HandleRideMessage(ctx, session, msg.Data))

		default:
			h.sendError(conn, "unknown message type")
		}
	}
}

// route counts the event and reports a handler error back to the client;
// malformed events and role violations keep the connection open.
func (h *Handler) route(ctx context.Context, conn *wsConn, event string, err error) {
	if err == nil {
		metrics.EventsTotal.WithLabelValues(event, "ok").Inc()
		return
	}
	switch {
	case errors.Is(err, dispatch.ErrMalformedEvent):
		metrics.EventsTotal.WithLabelValues(event, "malformed").Inc()
		h.sendError(conn, "bad "+event+" payload")
	case errors.Is(err, dispatch.ErrRoleNotAllowed):
		metrics.EventsTotal.WithLabelValues(event, "forbidden").Inc()
		h.sendError(conn, event+" not allowed for role")
	default:
		metrics.EventsTotal.WithLabelValues(event, "error").Inc()
		h.logger.Error(ctx, "ws_event_failed", "Event handling failed", err,
			map[string]any{"event": event})
		h.sendError(conn, "failed to handle "+event)
	}
}

func (h *Handler) sendError(conn *wsConn, message string) {
	_ = conn.WriteJSON(contracts.ServerEvent{
		Type:    contracts.EventError,
		Payload: map[string]any{"error": message},
	})
}

func (h *Handler) sendAuthError(conn *wsConn, message string) error {
	return conn.WriteJSON(map[string]any{
		"type":    contracts.EventAuthError,
		"error":   message,
		"success": false,
	})
}

func (h *Handler) sendAuthSuccess(conn *wsConn, identityID, role string) error {
	return conn.WriteJSON(map[string]any{
		"type":        contracts.EventAuthSuccess,
		"message":     "Authentication successful",
		"success":     true,
		"identity_id": identityID,
		"role":        role,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
