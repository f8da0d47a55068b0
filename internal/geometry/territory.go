package geometry

import (
	"github.com/TomiHiltunen/geohash-golang"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// cellPrecision is the geohash length used to bucket positions (~20km cells)
const cellPrecision = 4

// Territory is the lat/lng box positions are expected in
type Territory struct {
	rect s2.Rect
}

// NewTerritory builds the box from degrees. minLng > maxLng means the box
// crosses the antimeridian.
func NewTerritory(minLat, maxLat, minLng, maxLng float64) Territory {
	lat := r1.Interval{
		Lo: (s1.Angle(minLat) * s1.Degree).Radians(),
		Hi: (s1.Angle(maxLat) * s1.Degree).Radians(),
	}
	lng := s1.IntervalFromEndpoints(
		(s1.Angle(minLng) * s1.Degree).Radians(),
		(s1.Angle(maxLng) * s1.Degree).Radians(),
	)
	return Territory{rect: s2.Rect{Lat: lat, Lng: lng}}
}

// Contains reports whether the GeoJSON position [lng, lat] is a valid
// coordinate inside the territory
func (t Territory) Contains(lng, lat float64) bool {
	ll := s2.LatLngFromDegrees(lat, lng)
	return ll.IsValid() && t.rect.ContainsLatLng(ll)
}

// Cell returns the geohash bucket of a position
func Cell(lng, lat float64) string {
	hash := geohash.Encode(lat, lng)
	if len(hash) > cellPrecision {
		return hash[:cellPrecision]
	}
	return hash
}
