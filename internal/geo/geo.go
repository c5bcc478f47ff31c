// Package geo provides the spatial primitives fusion needs: H3 cell
// bucketing at a configurable resolution and haversine great-circle
// distance on the WGS-84 sphere.
package geo

import (
	"log"
	"math"

	"github.com/uber/h3-go/v4"
)

// EarthRadiusMeters is the WGS-84 mean radius used for haversine distance.
const EarthRadiusMeters = 6_371_000.0

// ClampResolution keeps an H3 resolution within its legal [0,15] range.
func ClampResolution(r int) int {
	if r < 0 {
		return 0
	}
	if r > 15 {
		return 15
	}
	return r
}

// CellIndex returns the H3 cell index containing (lat, lon) at resolution
// res, and whether the computation succeeded. A failed computation (e.g.
// NaN coordinates or an invalid resulting cell) should be skipped by the
// caller with a warning, per the fusion bucketing rule.
func CellIndex(lat, lon float64, res int) (uint64, bool) {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return 0, false
	}
	cell := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, ClampResolution(res))
	if !cell.IsValid() {
		log.Printf("[geo] h3 produced an invalid cell for (%v,%v) at res %d", lat, lon, res)
		return 0, false
	}
	return uint64(cell), true
}

// HaversineMeters returns the great-circle distance between two points in
// meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}
