package geo

import "fmt"

// approximateSpeedKMH is the assumed travel speed for straight-line route
// estimates when no directions provider is reachable.
const approximateSpeedKMH = 50.0

// Step is one maneuver of a route. Instructions are opaque to this layer;
// they are passed through from the provider or synthesized for estimates.
type Step struct {
	Instruction     string  `json:"instruction"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// DirectionsResult is a computed route: the polyline, its totals, and the
// maneuver steps. Results are produced fresh per request and never cached
// at this layer.
type DirectionsResult struct {
	Points          []Point `json:"points"`
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
	Steps           []Step  `json:"steps"`
}

// ApproximateRoute builds a straight-line route from origin through the given
// waypoints to destination. Distance is the sum of great-circle leg lengths
// and duration assumes a constant 50 km/h. This is a documented estimate, not
// routing; callers must prefer a real provider result whenever one exists.
func ApproximateRoute(origin, destination Point, waypoints ...Point) DirectionsResult {
	points := make([]Point, 0, len(waypoints)+2)
	points = append(points, origin)
	points = append(points, waypoints...)
	points = append(points, destination)

	metersPerSecond := approximateSpeedKMH * 1000 / 3600

	var result DirectionsResult
	result.Points = points
	result.Steps = make([]Step, 0, len(points)-1)

	for i := 0; i < len(points)-1; i++ {
		leg := Distance(points[i], points[i+1])
		duration := leg / metersPerSecond

		result.DistanceMeters += leg
		result.DurationSeconds += duration
		result.Steps = append(result.Steps, Step{
			Instruction:     fmt.Sprintf("Head %s for %.0f m", compassName(Bearing(points[i], points[i+1])), leg),
			DistanceMeters:  leg,
			DurationSeconds: duration,
		})
	}

	return result
}

// compassName maps a bearing to one of the eight compass point names.
func compassName(bearing float64) string {
	names := []string{"north", "northeast", "east", "southeast", "south", "southwest", "west", "northwest"}
	idx := int((bearing+22.5)/45) % 8
	return names[idx]
}
