package geo

import "fmt"

// DecodePolyline decodes a delta-encoded polyline string (the Google encoded
// polyline algorithm: 5-bit chunks offset by 63, zig-zag signed deltas,
// coordinates scaled by 1e5) into absolute points. Directions providers share
// this wire format, so the decoding must match it bit for bit.
func DecodePolyline(encoded string) ([]Point, error) {
	var points []Point
	var lat, lng int64

	for i := 0; i < len(encoded); {
		dLat, n, err := decodeChunk(encoded, i)
		if err != nil {
			return nil, err
		}
		i = n
		lat += dLat

		dLng, n, err := decodeChunk(encoded, i)
		if err != nil {
			return nil, err
		}
		i = n
		lng += dLng

		points = append(points, Point{
			Latitude:  float64(lat) / 1e5,
			Longitude: float64(lng) / 1e5,
		})
	}

	return points, nil
}

// decodeChunk reads one zig-zag encoded value starting at offset i and
// returns the signed delta plus the offset of the next chunk.
func decodeChunk(encoded string, i int) (int64, int, error) {
	var result int64
	var shift uint

	for {
		if i >= len(encoded) {
			return 0, i, fmt.Errorf("polyline: truncated chunk at byte %d", i)
		}
		b := int64(encoded[i]) - 63
		if b < 0 {
			return 0, i, fmt.Errorf("polyline: invalid character %q at byte %d", encoded[i], i)
		}
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}
