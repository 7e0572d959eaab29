package geo

import "math"

// LatLng is a map position
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Bounds is a geographic bounding box. The zero value is empty and grows
// with Extend.
type Bounds struct {
	SouthWest LatLng `json:"south_west"`
	NorthEast LatLng `json:"north_east"`
	set       bool
}

// NewBounds returns bounds covering the given points. Invalid points are skipped.
func NewBounds(points ...LatLng) Bounds {
	var b Bounds
	for _, p := range points {
		b.Extend(p)
	}
	return b
}

// Extend grows the box to include p. Invalid coordinates are ignored.
func (b *Bounds) Extend(p LatLng) {
	if !ValidCoordinate(p.Lat, p.Lng) {
		return
	}
	if !b.set {
		b.SouthWest, b.NorthEast, b.set = p, p, true
		return
	}
	b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
	b.SouthWest.Lng = math.Min(b.SouthWest.Lng, p.Lng)
	b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
	b.NorthEast.Lng = math.Max(b.NorthEast.Lng, p.Lng)
}

// Union grows the box to include o
func (b *Bounds) Union(o Bounds) {
	if !o.set {
		return
	}
	b.Extend(o.SouthWest)
	b.Extend(o.NorthEast)
}

// Valid reports whether at least one point was added
func (b Bounds) Valid() bool {
	return b.set
}

// Center returns the middle of the box
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lng: (b.SouthWest.Lng + b.NorthEast.Lng) / 2,
	}
}

// CircleBounds returns the box enclosing a circle of radiusKm around center.
// Latitude is clamped to the poles.
func CircleBounds(center LatLng, radiusKm float64) Bounds {
	if !ValidCoordinate(center.Lat, center.Lng) || math.IsNaN(radiusKm) || radiusKm < 0 {
		return Bounds{}
	}
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi
	cosLat := math.Cos(center.Lat * math.Pi / 180)
	dLng := 180.0
	if cosLat > 1e-12 {
		dLng = math.Min(180, dLat/cosLat)
	}
	return NewBounds(
		LatLng{Lat: math.Max(-90, center.Lat-dLat), Lng: math.Max(-180, center.Lng-dLng)},
		LatLng{Lat: math.Min(90, center.Lat+dLat), Lng: math.Min(180, center.Lng+dLng)},
	)
}
