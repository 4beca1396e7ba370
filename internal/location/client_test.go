package location

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ridelink/internal/general/logger"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "test-key", time.Second, nil, logger.New("test"))
	t.Cleanup(c.Close)
	return c
}

func TestClientDirectionsDecodesPolyline(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/directions", r.URL.Path)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		require.NotEmpty(t, r.URL.Query().Get("origin"))
		require.NotEmpty(t, r.URL.Query().Get("destination"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"routes": []map[string]any{{
				"overview_polyline": "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
				"distance_meters":   1048000.0,
				"duration_seconds":  43000.0,
				"steps": []map[string]any{{
					"instruction":      "Head north",
					"distance_meters":  1048000.0,
					"duration_seconds": 43000.0,
				}},
			}},
		})
	})

	origin := mustPoint(t, 38.5, -120.2)
	dest := mustPoint(t, 43.252, -126.453)

	got, err := c.Directions(context.Background(), origin, dest)
	require.NoError(t, err)
	require.Len(t, got.Points, 3)
	require.InDelta(t, 38.5, got.Points[0].Latitude, 1e-9)
	require.InDelta(t, -120.2, got.Points[0].Longitude, 1e-9)
	require.InDelta(t, 43.252, got.Points[2].Latitude, 1e-9)
	require.Len(t, got.Steps, 1)
	require.Equal(t, "Head north", got.Steps[0].Instruction)
}

func TestClientDirectionsRejectsBadStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Directions(context.Background(), mustPoint(t, 0, 0), mustPoint(t, 1, 1))
	require.Error(t, err)
}

func TestClientDirectionsRejectsEmptyRoutes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ZERO_RESULTS", "routes": []any{}})
	})

	_, err := c.Directions(context.Background(), mustPoint(t, 0, 0), mustPoint(t, 1, 1))
	require.Error(t, err)
}

func TestClientWithoutAPIKeyIsDisabled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("disabled client must not reach the provider")
	})
	c.apiKey = ""

	_, err := c.Directions(context.Background(), mustPoint(t, 0, 0), mustPoint(t, 1, 1))
	require.ErrorIs(t, err, ErrProviderDisabled)

	_, err = c.Geocode(context.Background(), "Paris")
	require.ErrorIs(t, err, ErrProviderDisabled)

	_, err = c.ReverseGeocode(context.Background(), mustPoint(t, 0, 0))
	require.ErrorIs(t, err, ErrProviderDisabled)
}

func TestClientGeocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/geocode", r.URL.Path)
		require.Equal(t, "Paris", r.URL.Query().Get("q"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{
				{"latitude": 48.8566, "longitude": 2.3522, "formatted_address": "Paris, France"},
				{"latitude": 200.0, "longitude": 0.0, "formatted_address": "bogus"},
			},
		})
	})

	got, err := c.Geocode(context.Background(), "Paris")
	require.NoError(t, err)
	// Out-of-range candidates are dropped.
	require.Len(t, got, 1)
	require.Equal(t, "Paris, France", got[0].Address)
}

func TestClientReverseGeocode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reverse_geocode", r.URL.Path)
		require.NotEmpty(t, r.URL.Query().Get("latlng"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{
				{"latitude": 48.8566, "longitude": 2.3522, "formatted_address": "Paris, France"},
			},
		})
	})

	got, err := c.ReverseGeocode(context.Background(), mustPoint(t, 48.8566, 2.3522))
	require.NoError(t, err)
	require.Equal(t, "Paris, France", got)
}
