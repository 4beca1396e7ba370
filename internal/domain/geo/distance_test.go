package geo

import (
	"math"
	"testing"
)

func TestDistance(t *testing.T) {
	paris := Point{Latitude: 48.8566, Longitude: 2.3522}
	london := Point{Latitude: 51.5074, Longitude: -0.1278}

	t.Run("identical points are zero meters apart", func(t *testing.T) {
		if d := Distance(paris, paris); d != 0 {
			t.Errorf("Expected 0, got %f", d)
		}
	})

	t.Run("distance is symmetric", func(t *testing.T) {
		ab := Distance(paris, london)
		ba := Distance(london, paris)
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("Expected symmetric distance, got %f and %f", ab, ba)
		}
	})

	t.Run("known distances", func(t *testing.T) {
		tests := []struct {
			name      string
			a, b      Point
			expected  float64 // meters
			tolerance float64
		}{
			{
				name:      "Paris to London",
				a:         paris,
				b:         london,
				expected:  343500,
				tolerance: 2000,
			},
			{
				name:      "one degree of longitude at the equator",
				a:         Point{Latitude: 0, Longitude: 0},
				b:         Point{Latitude: 0, Longitude: 1},
				expected:  111195,
				tolerance: 10,
			},
			{
				name:      "quarter of the globe",
				a:         Point{Latitude: 0, Longitude: 0},
				b:         Point{Latitude: 0, Longitude: 90},
				expected:  earthRadiusMeters * math.Pi / 2,
				tolerance: 1,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := Distance(tt.a, tt.b)
				if math.Abs(got-tt.expected) > tt.tolerance {
					t.Errorf("Expected %.0f m (±%.0f), got %.0f m", tt.expected, tt.tolerance, got)
				}
			})
		}
	})

	t.Run("monotonic in angular separation", func(t *testing.T) {
		origin := Point{Latitude: 0, Longitude: 0}
		prev := -1.0
		for lng := 1.0; lng <= 10; lng++ {
			d := Distance(origin, Point{Latitude: 0, Longitude: lng})
			if d <= prev {
				t.Fatalf("Distance not increasing at lng=%f: %f <= %f", lng, d, prev)
			}
			prev = d
		}
	})
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name      string
		start     Point
		end       Point
		expected  float64
		tolerance float64
	}{
		{
			name:     "due north",
			start:    Point{Latitude: 0, Longitude: 0},
			end:      Point{Latitude: 10, Longitude: 0},
			expected: 0,
		},
		{
			name:     "due east along the equator",
			start:    Point{Latitude: 0, Longitude: 0},
			end:      Point{Latitude: 0, Longitude: 10},
			expected: 90,
		},
		{
			name:     "due south",
			start:    Point{Latitude: 10, Longitude: 0},
			end:      Point{Latitude: 0, Longitude: 0},
			expected: 180,
		},
		{
			name:     "due west along the equator",
			start:    Point{Latitude: 0, Longitude: 10},
			end:      Point{Latitude: 0, Longitude: 0},
			expected: 270,
		},
		{
			name:      "Baghdad to Osaka",
			start:     Point{Latitude: 35, Longitude: 45},
			end:       Point{Latitude: 35, Longitude: 135},
			expected:  60.16,
			tolerance: 0.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.start, tt.end)
			if got < 0 || got >= 360 {
				t.Fatalf("Bearing %f outside [0, 360)", got)
			}
			tol := tt.tolerance
			if tol == 0 {
				tol = 1e-6
			}
			if math.Abs(got-tt.expected) > tol {
				t.Errorf("Expected bearing %.2f, got %.2f", tt.expected, got)
			}
		})
	}
}

func TestMidpoint(t *testing.T) {
	t.Run("midpoint on the equator", func(t *testing.T) {
		mid := Midpoint(Point{Latitude: 0, Longitude: 0}, Point{Latitude: 0, Longitude: 10})
		if math.Abs(mid.Latitude) > 1e-9 || math.Abs(mid.Longitude-5) > 1e-9 {
			t.Errorf("Expected (0, 5), got (%f, %f)", mid.Latitude, mid.Longitude)
		}
	})

	t.Run("midpoint is equidistant from both ends", func(t *testing.T) {
		a := Point{Latitude: 48.8566, Longitude: 2.3522}
		b := Point{Latitude: 51.5074, Longitude: -0.1278}
		mid := Midpoint(a, b)

		da := Distance(a, mid)
		db := Distance(b, mid)
		if math.Abs(da-db) > 1 {
			t.Errorf("Midpoint not equidistant: %f vs %f", da, db)
		}
	})

	t.Run("great-circle midpoint differs from planar average at high latitude", func(t *testing.T) {
		a := Point{Latitude: 60, Longitude: 0}
		b := Point{Latitude: 60, Longitude: 90}
		mid := Midpoint(a, b)
		// the great-circle midpoint between two points at 60N bulges north
		if mid.Latitude <= 60 {
			t.Errorf("Expected midpoint latitude above 60, got %f", mid.Latitude)
		}
	})
}

func TestIsWithinRadius(t *testing.T) {
	center := Point{Latitude: 48.8566, Longitude: 2.3522}

	t.Run("center is within any non-negative radius", func(t *testing.T) {
		for _, r := range []float64{0, 1, 500, 1e7} {
			if !IsWithinRadius(center, center, r) {
				t.Errorf("Expected center within radius %f of itself", r)
			}
		}
	})

	t.Run("point beyond the radius is excluded", func(t *testing.T) {
		far := Point{Latitude: 48.8566, Longitude: 2.4622} // ~7.3 km east
		if IsWithinRadius(center, far, 5000) {
			t.Error("Expected point outside 5 km radius")
		}
		if !IsWithinRadius(center, far, 10000) {
			t.Error("Expected point inside 10 km radius")
		}
	})
}
