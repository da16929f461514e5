// Package geo holds the single distance metric shared by every geo query.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	// EarthRadius is the sphere radius used by Distance (orb.EarthRadius, meters).
	EarthRadius = orb.EarthRadius

	// KmPerDegree is the legacy planar scale factor.
	KmPerDegree = 111.32

	MilesPerKm = 0.621371
)

// Distance returns the great-circle (haversine) distance in meters between two
// (lng, lat) points.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// PlanarDistanceKm treats degrees as flat Cartesian units scaled by KmPerDegree.
//
// Deprecated: it ignores the longitude contraction with latitude and overstates
// east-west separations away from the equator. Use Distance.
func PlanarDistanceKm(a, b orb.Point) float64 {
	return math.Hypot(a.Lon()-b.Lon(), a.Lat()-b.Lat()) * KmPerDegree
}

// SearchBound returns a lng/lat box that contains every point within meters of
// center, padded so the inclusive radius boundary is never clipped. ok is false
// when the box wraps the antimeridian and cannot be used as a plain filter.
func SearchBound(center orb.Point, meters float64) (b orb.Bound, ok bool) {
	b = geo.NewBoundAroundPoint(center, meters*1.01+1)
	for _, v := range []float64{b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat()} {
		if math.IsNaN(v) {
			return b, false
		}
	}
	if b.Min.Lon() > b.Max.Lon() || b.Min.Lon() < -180 || b.Max.Lon() > 180 {
		return b, false
	}
	return b, true
}

// RoundTo rounds v to n decimal places, halves away from zero.
func RoundTo(v float64, n int) float64 {
	p := math.Pow(10, float64(n))
	return math.Round(v*p) / p
}

func MetersToKm(m float64) float64 { return m / 1000 }
