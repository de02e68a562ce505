// Package geo holds the spherical-earth arithmetic behind proximity searches.
package geo

import "math"

// EarthRadiusKm is the mean earth radius used for all distances.
const EarthRadiusKm = 6371.0

// boxPadding widens bounding boxes by a few centimetres so that a point exactly on the search
// center survives the decimal-to-float conversion of the database.
const boxPadding = 1e-6

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// ValidLatitude reports whether lat is a finite value in [-90, 90].
func ValidLatitude(lat float64) bool {
	return !math.IsNaN(lat) && lat >= -90 && lat <= 90
}

// ValidLongitude reports whether lng is a finite value in [-180, 180].
func ValidLongitude(lng float64) bool {
	return !math.IsNaN(lng) && lng >= -180 && lng <= 180
}

// DistanceKm returns the great-circle distance between two points given in decimal degrees,
// using the Haversine formula. The intermediate term is clamped to [0, 1] so that rounding noise
// near identical or antipodal points cannot produce NaN.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lng2 - lng1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	a = math.Max(0, math.Min(1, a))

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// Box is a latitude/longitude rectangle. When AllLongitudes is set the longitude bounds are
// meaningless and every longitude is inside.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	AllLongitudes  bool
}

// BoundingBox returns a rectangle containing every point within radiusKm of the center. It is a
// cheap prefilter for an index scan; callers still have to check DistanceKm. Near the poles and
// across the antimeridian the longitude range is dropped instead of being split in two.
func BoundingBox(lat, lng, radiusKm float64) Box {
	angular := radiusKm / EarthRadiusKm
	latRad := radians(lat)

	minLat := latRad - angular
	maxLat := latRad + angular

	box := Box{}
	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 {
		box.MinLat = -90
		box.MaxLat = 90
		if minLat > -math.Pi/2 {
			box.MinLat = degrees(minLat) - boxPadding
		}
		if maxLat < math.Pi/2 {
			box.MaxLat = degrees(maxLat) + boxPadding
		}
		box.AllLongitudes = true
		return box
	}

	box.MinLat = degrees(minLat) - boxPadding
	box.MaxLat = degrees(maxLat) + boxPadding

	dLng := math.Asin(math.Min(1, math.Sin(angular)/math.Cos(latRad)))
	if angular >= math.Pi/2 || dLng >= math.Pi/2 {
		box.AllLongitudes = true
		return box
	}
	lngDeg := degrees(dLng)
	box.MinLng = lng - lngDeg - boxPadding
	box.MaxLng = lng + lngDeg + boxPadding
	if box.MinLng < -180 || box.MaxLng > 180 {
		box.AllLongitudes = true
	}
	return box
}

// Contains reports whether the point lies inside the box.
func (b Box) Contains(lat, lng float64) bool {
	if lat < b.MinLat || lat > b.MaxLat {
		return false
	}
	return b.AllLongitudes || (lng >= b.MinLng && lng <= b.MaxLng)
}
