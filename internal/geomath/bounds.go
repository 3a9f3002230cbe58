package geomath

// Bounds is a lat/lon rectangle. The zero value is empty; Extend grows it.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
	set   bool
}

// BoundsOf returns the smallest Bounds containing every point.
func BoundsOf(pts ...Point) Bounds {
	var b Bounds
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// Extend returns b grown to contain p.
func (b Bounds) Extend(p Point) Bounds {
	if !b.set {
		return Bounds{South: p.Lat, West: p.Lon, North: p.Lat, East: p.Lon, set: true}
	}
	if p.Lat < b.South {
		b.South = p.Lat
	}
	if p.Lat > b.North {
		b.North = p.Lat
	}
	if p.Lon < b.West {
		b.West = p.Lon
	}
	if p.Lon > b.East {
		b.East = p.Lon
	}
	return b
}

// Empty reports whether no point was ever added.
func (b Bounds) Empty() bool { return !b.set }

// Pad enlarges each side by ratio times the current span, the same way
// Leaflet's LatLngBounds.pad does.
func (b Bounds) Pad(ratio float64) Bounds {
	if !b.set {
		return b
	}
	dLat := (b.North - b.South) * ratio
	dLon := (b.East - b.West) * ratio
	b.South -= dLat
	b.North += dLat
	b.West -= dLon
	b.East += dLon
	return b
}

// Center returns the middle of the rectangle.
func (b Bounds) Center() Point {
	return Point{Lat: (b.South + b.North) / 2, Lon: (b.West + b.East) / 2}
}
