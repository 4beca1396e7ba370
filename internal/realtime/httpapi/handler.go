package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ridelink/internal/domain/geo"
	"ridelink/internal/domain/user"
	"ridelink/internal/general/jwt"
	"ridelink/internal/general/logger"
	"ridelink/internal/location"
	"ridelink/internal/realtime/presence"
	"ridelink/internal/realtime/websocket"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves the realtime service's HTTP surface: the WebSocket
// endpoint, health/stats, the geo API, and Prometheus metrics.
type Handler struct {
	logger    *logger.Logger
	auth      *jwt.Manager
	registry  *presence.Registry
	locations *location.Service
	ws        *websocket.Handler
}

func NewHandler(log *logger.Logger, auth *jwt.Manager, registry *presence.Registry, locations *location.Service, ws *websocket.Handler) *Handler {
	return &Handler{logger: log, auth: auth, registry: registry, locations: locations, ws: ws}
}

// RegisterRoutes mounts all endpoints on the provided mux.
func (handler *Handler) RegisterRoutes(mux *http.ServeMux) {
	// WebSocket does its own first-frame authentication
	mux.HandleFunc("GET /ws", handler.ws.Connect)

	mux.HandleFunc("GET /healthz", handler.handleHealth)
	mux.HandleFunc("GET /stats", handler.handleStats)

	authAny := jwt.AuthMiddlewareFunc(handler.auth, user.RoleRider, user.RoleDriver)
	mux.HandleFunc("GET /directions", authAny(handler.handleDirections))
	mux.HandleFunc("GET /geocode", authAny(handler.handleGeocode))
	mux.HandleFunc("GET /reverse_geocode", authAny(handler.handleReverseGeocode))

	mux.Handle("GET /metrics", promhttp.Handler())
}

func (handler *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (handler *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)
	stats := handler.registry.Stats()
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"connections": stats.Total,
		"by_role":     stats.ByRole,
	})
}

// --- Handler: GET /directions?origin=lat,lng&destination=lat,lng&waypoint=... ---

func (handler *Handler) handleDirections(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	origin, err := parsePointParam(r, "origin")
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}
	destination, err := parsePointParam(r, "destination")
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	var waypoints []geo.Point
	for _, raw := range r.URL.Query()["waypoint"] {
		wp, err := parsePoint(raw)
		if err != nil {
			handler.httpError(ctx, w, http.StatusBadRequest, "invalid waypoint: "+err.Error(), err)
			return
		}
		waypoints = append(waypoints, wp)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	route := handler.locations.Route(ctxWithTimeout, origin, destination, waypoints...)
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"source":           route.Source,
		"points":           route.Points,
		"distance_meters":  route.DistanceMeters,
		"duration_seconds": route.DurationSeconds,
		"steps":            route.Steps,
	})
}

func (handler *Handler) handleGeocode(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "q is required", errors.New("missing q"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	results := handler.locations.Geocode(ctxWithTimeout, query)
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"results": results})
}

func (handler *Handler) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	point, err := parsePointParam(r, "latlng")
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	address := handler.locations.ReverseGeocode(ctxWithTimeout, point)
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{"address": address})
}

// ----- general helpers -----

func parsePointParam(r *http.Request, name string) (geo.Point, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return geo.Point{}, fmt.Errorf("%s is required", name)
	}
	p, err := parsePoint(raw)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return p, nil
}

// parsePoint parses "lat,lng" into a validated point.
func parsePoint(raw string) (geo.Point, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("expected lat,lng, got %q", raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad longitude: %w", err)
	}
	return geo.NewPoint(lat, lng)
}

// jsonResponse encodes to a buffer first so we can control status on failure.
func (handler *Handler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	var buf []byte
	var err error

	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	} else {
		buf = []byte("{}")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *Handler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	if status >= 500 {
		action = "http_internal_error"
	} else if status == http.StatusBadRequest {
		action = "validation_failed"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *Handler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
