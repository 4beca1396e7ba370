package geo

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidLatitude  = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude = errors.New("longitude must be between -180 and 180")
	ErrNegativeAccuracy = errors.New("accuracy_meters cannot be negative")
)

// Point is an immutable WGS-84 coordinate. Accuracy, Timestamp and Address
// are optional metadata; two points with equal Latitude/Longitude are the
// same location regardless of metadata.
type Point struct {
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyMeters float64   `json:"accuracy_meters,omitempty"`
	Timestamp      time.Time `json:"timestamp,omitempty"`
	Address        string    `json:"address,omitempty"`
}

// NewPoint constructs a Point and checks coordinate ranges.
func NewPoint(latitude, longitude float64) (Point, error) {
	p := Point{Latitude: latitude, Longitude: longitude}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate checks coordinate ranges and metadata invariants.
func (p Point) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return ErrInvalidLongitude
	}
	if p.AccuracyMeters < 0 {
		return ErrNegativeAccuracy
	}
	return nil
}

// String renders the point as "lat, lng" with 5-decimal precision, which is
// also the reverse-geocoding fallback address format.
func (p Point) String() string {
	return fmt.Sprintf("%.5f, %.5f", p.Latitude, p.Longitude)
}
