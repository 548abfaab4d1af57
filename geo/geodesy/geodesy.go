// Package geodesy provides the surface-distance capability the trip pipeline
// depends on. Callers hold a Distancer and never compute distances themselves.
package geodesy

import (
	"fmt"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/tidwall/geodesic"
	"strings"
)

// Distancer returns the surface distance in meters between two lat/lng pairs (degrees).
type Distancer interface {
	Distance(lat1, lng1, lat2, lng2 float64) float64
}

// DistancerFunc adapts a plain function to the Distancer interface.
type DistancerFunc func(lat1, lng1, lat2, lng2 float64) float64

func (fn DistancerFunc) Distance(lat1, lng1, lat2, lng2 float64) float64 {
	return fn(lat1, lng1, lat2, lng2)
}

const (
	MethodGeodesic  = "geodesic"
	MethodHaversine = "haversine"
	MethodS2        = "s2"

	// MethodVincenty is accepted for older configs and selects Geodesic.
	MethodVincenty = "vincenty"
)

// ForMethod returns the Distancer registered under name.
// The empty name yields the default, Geodesic.
func ForMethod(name string) (Distancer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MethodGeodesic, MethodVincenty:
		return Geodesic{}, nil
	case MethodHaversine:
		return Haversine{}, nil
	case MethodS2:
		return S2{}, nil
	}
	return nil, fmt.Errorf("unknown geodesy method %q", name)
}

// Haversine is a spherical distance on the orb earth radius.
type Haversine struct{}

func (Haversine) Distance(lat1, lng1, lat2, lng2 float64) float64 {
	return geo.DistanceHaversine(orb.Point{lng1, lat1}, orb.Point{lng2, lat2})
}

// S2 measures the great-circle angle between the points with the s2 library
// and scales it by the orb earth radius.
type S2 struct{}

func (S2) Distance(lat1, lng1, lat2, lng2 float64) float64 {
	angle := s2.LatLngFromDegrees(lat1, lng1).Distance(s2.LatLngFromDegrees(lat2, lng2))
	return angle.Radians() * orb.EarthRadius
}

// Geodesic is the ellipsoidal (WGS-84) geodesic distance, solved with Karney's algorithm.
// It converges for all point pairs, antipodal ones included.
type Geodesic struct{}

func (Geodesic) Distance(lat1, lng1, lat2, lng2 float64) float64 {
	if lat1 == lat2 && lng1 == lng2 {
		return 0
	}
	var meters float64
	geodesic.WGS84.Inverse(lat1, lng1, lat2, lng2, &meters, nil, nil)
	return meters
}
