package location

import (
	"context"

	"ridelink/internal/domain/geo"
)

// RouteSource tells the caller whether a route came from the external
// provider or from the local straight-line approximation.
type RouteSource string

const (
	SourceProvider    RouteSource = "provider"
	SourceApproximate RouteSource = "approximate"
)

// RouteResult is a directions result annotated with its origin, so a
// real route and a fallback approximation are distinguishable.
type RouteResult struct {
	geo.DirectionsResult
	Source RouteSource
}

// Provider is an external directions and geocoding backend.
type Provider interface {
	Directions(ctx context.Context, origin, destination geo.Point, waypoints ...geo.Point) (geo.DirectionsResult, error)
	Geocode(ctx context.Context, query string) ([]geo.Point, error)
	ReverseGeocode(ctx context.Context, point geo.Point) (string, error)
}
