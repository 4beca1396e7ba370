package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"ridelink/internal/domain/geo"
	"ridelink/internal/general/logger"
	"ridelink/internal/general/metrics"
)

const (
	minRequestInterval = 200 * time.Millisecond
	dailyRequestLimit  = 5000
)

// Client talks to the external directions/geocoding API over HTTP.
// Responses are cached read-through when a Cache is attached.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *Cache
	logger     *logger.Logger

	rateLimiter *time.Ticker
	mu          sync.Mutex
	requests    int
	resetAt     time.Time
}

func NewClient(baseURL, apiKey string, timeout time.Duration, cache *Cache, log *logger.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: timeout},
		cache:       cache,
		logger:      log,
		rateLimiter: time.NewTicker(minRequestInterval),
		resetAt:     time.Now().Add(24 * time.Hour),
	}
}

func (c *Client) Close() {
	c.rateLimiter.Stop()
	if c.cache != nil {
		_ = c.cache.Close()
	}
}

// checkRateLimit enforces the daily request quota and paces requests.
func (c *Client) checkRateLimit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Now().After(c.resetAt) {
		c.requests = 0
		c.resetAt = time.Now().Add(24 * time.Hour)
	}
	if c.requests >= dailyRequestLimit {
		return fmt.Errorf("daily provider request limit reached (%d)", dailyRequestLimit)
	}
	<-c.rateLimiter.C
	c.requests++
	return nil
}

type directionsResponse struct {
	Status string `json:"status"`
	Routes []struct {
		OverviewPolyline string  `json:"overview_polyline"`
		DistanceMeters   float64 `json:"distance_meters"`
		DurationSeconds  float64 `json:"duration_seconds"`
		Steps            []struct {
			Instruction     string  `json:"instruction"`
			DistanceMeters  float64 `json:"distance_meters"`
			DurationSeconds float64 `json:"duration_seconds"`
		} `json:"steps"`
	} `json:"routes"`
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Latitude         float64 `json:"latitude"`
		Longitude        float64 `json:"longitude"`
		FormattedAddress string  `json:"formatted_address"`
	} `json:"results"`
}

// Directions fetches a driving route. The route geometry arrives as an
// encoded polyline and is decoded into absolute points.
func (c *Client) Directions(ctx context.Context, origin, destination geo.Point, waypoints ...geo.Point) (geo.DirectionsResult, error) {
	key := routeKey(origin, destination)

	var cached geo.DirectionsResult
	if found, err := c.cache.Get(ctx, key, &cached); err != nil {
		c.logger.Warn(ctx, "provider_cache_read_failed", "Route cache read failed", map[string]any{"error": err.Error()})
	} else if found {
		metrics.ProviderRequestsTotal.WithLabelValues("directions", "cache_hit").Inc()
		return cached, nil
	}

	params := url.Values{}
	params.Add("key", c.apiKey)
	params.Add("origin", formatPoint(origin))
	params.Add("destination", formatPoint(destination))
	for _, wp := range waypoints {
		params.Add("waypoint", formatPoint(wp))
	}
	params.Add("mode", "driving")

	var resp directionsResponse
	if err := c.getJSON(ctx, "directions", params, &resp); err != nil {
		return geo.DirectionsResult{}, err
	}
	if resp.Status != "OK" || len(resp.Routes) == 0 {
		metrics.ProviderRequestsTotal.WithLabelValues("directions", "empty").Inc()
		return geo.DirectionsResult{}, fmt.Errorf("provider returned status %q with %d routes", resp.Status, len(resp.Routes))
	}

	route := resp.Routes[0]
	points, err := geo.DecodePolyline(route.OverviewPolyline)
	if err != nil {
		return geo.DirectionsResult{}, fmt.Errorf("decode route polyline: %w", err)
	}

	result := geo.DirectionsResult{
		Points:          points,
		DistanceMeters:  route.DistanceMeters,
		DurationSeconds: route.DurationSeconds,
	}
	for _, s := range route.Steps {
		result.Steps = append(result.Steps, geo.Step{
			Instruction:     s.Instruction,
			DistanceMeters:  s.DistanceMeters,
			DurationSeconds: s.DurationSeconds,
		})
	}

	if err := c.cache.Set(ctx, key, result); err != nil {
		c.logger.Warn(ctx, "provider_cache_write_failed", "Route cache write failed", map[string]any{"error": err.Error()})
	}
	return result, nil
}

// Geocode resolves a free-form address query to candidate points.
func (c *Client) Geocode(ctx context.Context, query string) ([]geo.Point, error) {
	key := geocodeKey(query)

	var cached []geo.Point
	if found, err := c.cache.Get(ctx, key, &cached); err != nil {
		c.logger.Warn(ctx, "provider_cache_read_failed", "Geocode cache read failed", map[string]any{"error": err.Error()})
	} else if found {
		metrics.ProviderRequestsTotal.WithLabelValues("geocode", "cache_hit").Inc()
		return cached, nil
	}

	params := url.Values{}
	params.Add("key", c.apiKey)
	params.Add("q", query)

	var resp geocodeResponse
	if err := c.getJSON(ctx, "geocode", params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "OK" {
		return nil, fmt.Errorf("provider returned status %q", resp.Status)
	}

	points := make([]geo.Point, 0, len(resp.Results))
	for _, r := range resp.Results {
		p, err := geo.NewPoint(r.Latitude, r.Longitude)
		if err != nil {
			continue
		}
		p.Address = r.FormattedAddress
		points = append(points, p)
	}

	if err := c.cache.Set(ctx, key, points); err != nil {
		c.logger.Warn(ctx, "provider_cache_write_failed", "Geocode cache write failed", map[string]any{"error": err.Error()})
	}
	return points, nil
}

// ReverseGeocode resolves a point to a human-readable address.
func (c *Client) ReverseGeocode(ctx context.Context, point geo.Point) (string, error) {
	key := reverseKey(point)

	var cached string
	if found, err := c.cache.Get(ctx, key, &cached); err != nil {
		c.logger.Warn(ctx, "provider_cache_read_failed", "Reverse geocode cache read failed", map[string]any{"error": err.Error()})
	} else if found {
		metrics.ProviderRequestsTotal.WithLabelValues("reverse_geocode", "cache_hit").Inc()
		return cached, nil
	}

	params := url.Values{}
	params.Add("key", c.apiKey)
	params.Add("latlng", formatPoint(point))

	var resp geocodeResponse
	if err := c.getJSON(ctx, "reverse_geocode", params, &resp); err != nil {
		return "", err
	}
	if resp.Status != "OK" || len(resp.Results) == 0 {
		return "", fmt.Errorf("provider returned status %q with %d results", resp.Status, len(resp.Results))
	}
	address := resp.Results[0].FormattedAddress

	if err := c.cache.Set(ctx, key, address); err != nil {
		c.logger.Warn(ctx, "provider_cache_write_failed", "Reverse geocode cache write failed", map[string]any{"error": err.Error()})
	}
	return address, nil
}

// getJSON issues one GET against the provider and decodes the response.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrProviderDisabled
	}
	if err := c.checkRateLimit(); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
		return err
	}

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("provider %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "bad_status").Inc()
		return fmt.Errorf("provider %s returned status %d", endpoint, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func formatPoint(p geo.Point) string {
	return fmt.Sprintf("%f,%f", p.Latitude, p.Longitude)
}
