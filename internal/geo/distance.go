package geo

import "math"

const (
	// Earth radius in kilometers
	EarthRadiusKm = 6371.0

	// One degree of latitude is roughly 111 km; used for the cheap
	// bounding-box pre-filter before the exact pass.
	KmPerDegree = 111.0

	// DefaultRadiusKm is the search radius applied when the request does
	// not carry a usable one.
	DefaultRadiusKm = 20.0
)

// Distance returns the great-circle distance in kilometers between two
// points, via the spherical law of cosines.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	c := math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLng) +
		math.Sin(lat1Rad)*math.Sin(lat2Rad)

	// Clamp before acos: rounding can push c a hair outside [-1, 1] for
	// identical or antipodal points.
	c = math.Max(-1, math.Min(1, c))

	return EarthRadiusKm * math.Acos(c)
}

// BoundingBox returns the lat/lng interval that encloses a circle of
// radiusKm around the given point, using the flat 111 km/degree
// approximation. Candidates outside the box cannot be within the radius;
// candidates inside still need the exact Distance check.
func BoundingBox(lat, lng, radiusKm float64) (minLat, maxLat, minLng, maxLng float64) {
	delta := radiusKm / KmPerDegree
	return lat - delta, lat + delta, lng - delta, lng + delta
}
