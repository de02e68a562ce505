package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDistanceKmIdenticalPoints expects an exact zero, not NaN or rounding noise, for a point and
// itself.
func TestDistanceKmIdenticalPoints(t *testing.T) {
	points := [][2]float64{
		{33.8703, -117.9243},
		{0, 0},
		{90, 0},
		{-90, 180},
		{51.5007, -0.1246},
	}
	for _, p := range points {
		d := DistanceKm(p[0], p[1], p[0], p[1])
		assert.Equal(t, 0.0, d, "point %v", p)
	}
}

// TestDistanceKmKnownDistances compares against distances computed independently.
func TestDistanceKmKnownDistances(t *testing.T) {
	// One degree of latitude on a 6371 km sphere.
	assert.InDelta(t, 111.195, DistanceKm(0, 0, 1, 0), 0.001)
	// Quarter of the equator.
	assert.InDelta(t, math.Pi*EarthRadiusKm/2, DistanceKm(0, 0, 0, 90), 1e-9)
	// Across the antimeridian the short way round.
	assert.InDelta(t, DistanceKm(0, 179.5, 0, -179.5), DistanceKm(0, 0, 0, 1), 1e-9)
	// Downtown Fullerton to the coffee shop on Harbor Blvd.
	assert.InDelta(t, 3.5, DistanceKm(33.8703, -117.9243, 33.8821, -117.8886), 0.1)
}

// TestDistanceKmAntipodes expects half the circumference instead of NaN when the clamped term
// would exceed one.
func TestDistanceKmAntipodes(t *testing.T) {
	d := DistanceKm(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-6)

	d = DistanceKm(90, 0, -90, 0)
	assert.InDelta(t, math.Pi*EarthRadiusKm, d, 1e-6)
}

// TestBoundingBoxContainsCircle samples points on circles around several centers, including
// polar and antimeridian cases, and expects every point within the radius inside the box.
func TestBoundingBoxContainsCircle(t *testing.T) {
	centers := [][2]float64{
		{33.8703, -117.9243},
		{0, 0},
		{89.99, 10},
		{-89.5, -45},
		{10, 179.99},
		{-20, -179.99},
		{70, 0},
	}
	for _, radius := range []float64{0, 0.5, 5, 50, 500} {
		for _, c := range centers {
			box := BoundingBox(c[0], c[1], radius)
			assert.True(t, box.Contains(c[0], c[1]), "center %v radius %v", c, radius)
			for bearing := 0.0; bearing < 360; bearing += 15 {
				lat, lng := destination(c[0], c[1], bearing, radius*0.999)
				assert.True(t, box.Contains(lat, lng),
					"center %v radius %v bearing %v point %v,%v box %+v", c, radius, bearing, lat, lng, box)
			}
		}
	}
}

// TestBoundingBoxExcludesFarPoints checks that the box is a useful filter away from poles and
// the antimeridian.
func TestBoundingBoxExcludesFarPoints(t *testing.T) {
	box := BoundingBox(33.8703, -117.9243, 5)
	assert.False(t, box.AllLongitudes)
	assert.False(t, box.Contains(33.96, -117.9243))
	assert.False(t, box.Contains(33.8703, -117.80))

	polar := BoundingBox(89.99, 10, 5)
	assert.True(t, polar.AllLongitudes)
	assert.Equal(t, 90.0, polar.MaxLat)

	wrapped := BoundingBox(10, 179.99, 5)
	assert.True(t, wrapped.AllLongitudes)
}

// TestValidCoordinates checks the accepted coordinate ranges.
func TestValidCoordinates(t *testing.T) {
	assert.True(t, ValidLatitude(-90))
	assert.True(t, ValidLatitude(90))
	assert.False(t, ValidLatitude(90.0001))
	assert.False(t, ValidLatitude(math.NaN()))
	assert.True(t, ValidLongitude(-180))
	assert.True(t, ValidLongitude(180))
	assert.False(t, ValidLongitude(-180.5))
	assert.False(t, ValidLongitude(math.Inf(1)))
}

// destination returns the point reached from (lat, lng) after distanceKm along the bearing.
func destination(lat, lng, bearingDeg, distanceKm float64) (float64, float64) {
	angular := distanceKm / EarthRadiusKm
	phi1 := radians(lat)
	lambda1 := radians(lng)
	theta := radians(bearingDeg)

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(angular) + math.Cos(phi1)*math.Sin(angular)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(angular)*math.Cos(phi1),
		math.Cos(angular)-math.Sin(phi1)*math.Sin(phi2),
	)
	lng2 := math.Mod(degrees(lambda2)+540, 360) - 180
	return degrees(phi2), lng2
}
