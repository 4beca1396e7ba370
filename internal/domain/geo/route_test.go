package geo

import (
	"math"
	"testing"
)

func TestApproximateRoute(t *testing.T) {
	t.Run("100 km at 50 km/h takes two hours", func(t *testing.T) {
		origin := Point{Latitude: 0, Longitude: 0}
		destination := Point{Latitude: 0, Longitude: 0.899322} // ~100 km at the equator

		route := ApproximateRoute(origin, destination)

		if math.Abs(route.DistanceMeters-100000) > 100 {
			t.Errorf("Expected ~100000 m, got %f", route.DistanceMeters)
		}
		if math.Abs(route.DurationSeconds-7200) > 10 {
			t.Errorf("Expected ~7200 s, got %f", route.DurationSeconds)
		}
	})

	t.Run("waypoints are visited in order", func(t *testing.T) {
		origin := Point{Latitude: 0, Longitude: 0}
		wp1 := Point{Latitude: 1, Longitude: 0}
		wp2 := Point{Latitude: 1, Longitude: 1}
		destination := Point{Latitude: 0, Longitude: 1}

		route := ApproximateRoute(origin, destination, wp1, wp2)

		if len(route.Points) != 4 {
			t.Fatalf("Expected 4 points, got %d", len(route.Points))
		}
		if route.Points[1] != wp1 || route.Points[2] != wp2 {
			t.Error("Waypoints out of order in route polyline")
		}
		if len(route.Steps) != 3 {
			t.Errorf("Expected 3 steps, got %d", len(route.Steps))
		}
	})

	t.Run("totals equal the sum of legs", func(t *testing.T) {
		route := ApproximateRoute(
			Point{Latitude: 48.85, Longitude: 2.35},
			Point{Latitude: 48.87, Longitude: 2.30},
			Point{Latitude: 48.86, Longitude: 2.33},
		)

		var dist, dur float64
		for _, s := range route.Steps {
			dist += s.DistanceMeters
			dur += s.DurationSeconds
		}
		if math.Abs(dist-route.DistanceMeters) > 1e-6 {
			t.Errorf("Step distances sum to %f, total is %f", dist, route.DistanceMeters)
		}
		if math.Abs(dur-route.DurationSeconds) > 1e-6 {
			t.Errorf("Step durations sum to %f, total is %f", dur, route.DurationSeconds)
		}
	})

	t.Run("zero-length route", func(t *testing.T) {
		p := Point{Latitude: 48.85, Longitude: 2.35}
		route := ApproximateRoute(p, p)
		if route.DistanceMeters != 0 || route.DurationSeconds != 0 {
			t.Errorf("Expected zero totals, got %f m / %f s", route.DistanceMeters, route.DurationSeconds)
		}
		if len(route.Points) != 2 {
			t.Errorf("Expected 2 points, got %d", len(route.Points))
		}
	})
}

func TestPointValidate(t *testing.T) {
	tests := []struct {
		name    string
		point   Point
		wantErr error
	}{
		{name: "valid", point: Point{Latitude: 48.85, Longitude: 2.35}},
		{name: "latitude too high", point: Point{Latitude: 90.1}, wantErr: ErrInvalidLatitude},
		{name: "latitude too low", point: Point{Latitude: -90.1}, wantErr: ErrInvalidLatitude},
		{name: "longitude too high", point: Point{Longitude: 180.1}, wantErr: ErrInvalidLongitude},
		{name: "longitude too low", point: Point{Longitude: -180.1}, wantErr: ErrInvalidLongitude},
		{name: "negative accuracy", point: Point{AccuracyMeters: -1}, wantErr: ErrNegativeAccuracy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
			if tt.wantErr != nil && err != tt.wantErr {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
