package geo

import "math"

// earthRadiusMeters is the fixed spherical Earth radius used by every
// great-circle computation in this package.
const earthRadiusMeters = 6371000.0

// Distance returns the great-circle distance between two points in meters,
// computed with the haversine formula. It is symmetric and zero for
// identical points.
func Distance(a, b Point) float64 {
	latA := radians(a.Latitude)
	latB := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Bearing returns the initial compass bearing in degrees [0, 360) to travel
// from start to end along the great circle (standard forward azimuth).
// The result for antipodal points is not defined.
func Bearing(start, end Point) float64 {
	latA := radians(start.Latitude)
	latB := radians(end.Latitude)
	dLng := radians(end.Longitude - start.Longitude)

	y := math.Sin(dLng) * math.Cos(latB)
	x := math.Cos(latA)*math.Sin(latB) - math.Sin(latA)*math.Cos(latB)*math.Cos(dLng)

	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// Midpoint returns the great-circle midpoint between a and b.
func Midpoint(a, b Point) Point {
	latA := radians(a.Latitude)
	latB := radians(b.Latitude)
	lngA := radians(a.Longitude)
	dLng := radians(b.Longitude - a.Longitude)

	bx := math.Cos(latB) * math.Cos(dLng)
	by := math.Cos(latB) * math.Sin(dLng)

	lat := math.Atan2(
		math.Sin(latA)+math.Sin(latB),
		math.Sqrt((math.Cos(latA)+bx)*(math.Cos(latA)+bx)+by*by),
	)
	lng := lngA + math.Atan2(by, math.Cos(latA)+bx)

	// normalize longitude to [-180, 180)
	lngDeg := math.Mod(degrees(lng)+540, 360) - 180

	return Point{Latitude: degrees(lat), Longitude: lngDeg}
}

// IsWithinRadius reports whether point lies within radiusMeters of center.
// The boundary is inclusive.
func IsWithinRadius(center, point Point, radiusMeters float64) bool {
	return Distance(center, point) <= radiusMeters
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
