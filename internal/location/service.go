package location

import (
	"context"
	"time"

	"ridelink/internal/domain/geo"
	"ridelink/internal/general/logger"
	"ridelink/internal/general/metrics"
)

// Service is the positioning facade. Provider calls run under a bounded
// timeout; a failed or missing provider degrades to local computation,
// never to a hard failure.
type Service struct {
	provider Provider
	logger   *logger.Logger
	timeout  time.Duration
}

// NewService wires the facade. provider may be nil, in which case every
// route is the straight-line approximation.
func NewService(provider Provider, timeout time.Duration, log *logger.Logger) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{provider: provider, logger: log, timeout: timeout}
}

// Route computes directions from origin to destination. The Source field
// of the result tells the caller whether the provider answered or the
// local approximation was used.
func (s *Service) Route(ctx context.Context, origin, destination geo.Point, waypoints ...geo.Point) RouteResult {
	if s.provider == nil {
		metrics.RouteFallbacksTotal.Inc()
		return RouteResult{
			DirectionsResult: geo.ApproximateRoute(origin, destination, waypoints...),
			Source:           SourceApproximate,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.provider.Directions(callCtx, origin, destination, waypoints...)
	if err != nil {
		s.logger.Warn(ctx, "directions_fallback", "Provider directions failed, using approximation",
			map[string]any{"error": err.Error()})
		metrics.RouteFallbacksTotal.Inc()
		return RouteResult{
			DirectionsResult: geo.ApproximateRoute(origin, destination, waypoints...),
			Source:           SourceApproximate,
		}
	}
	return RouteResult{DirectionsResult: result, Source: SourceProvider}
}

// Geocode resolves an address query. Provider failure yields an empty
// result set, not an error.
func (s *Service) Geocode(ctx context.Context, query string) []geo.Point {
	if s.provider == nil {
		return []geo.Point{}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	points, err := s.provider.Geocode(callCtx, query)
	if err != nil {
		s.logger.Warn(ctx, "geocode_failed", "Provider geocode failed, returning empty set",
			map[string]any{"query": query, "error": err.Error()})
		return []geo.Point{}
	}
	if points == nil {
		points = []geo.Point{}
	}
	return points
}

// ReverseGeocode resolves a point to an address. Provider failure falls
// back to the formatted coordinate string.
func (s *Service) ReverseGeocode(ctx context.Context, point geo.Point) string {
	if s.provider == nil {
		return point.String()
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	address, err := s.provider.ReverseGeocode(callCtx, point)
	if err != nil || address == "" {
		if err != nil {
			s.logger.Warn(ctx, "reverse_geocode_failed", "Provider reverse geocode failed, using coordinates",
				map[string]any{"error": err.Error()})
		}
		return point.String()
	}
	return address
}
