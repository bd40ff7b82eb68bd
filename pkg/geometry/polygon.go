// Package geometry provides 2D polygon sets and the boolean/offset
// operations used to reconcile layer cross-sections.
//
// A PolygonSet is a list of polygons, each an exterior ring with optional
// holes. Rings are implicitly closed: the last point connects back to the
// first and is not repeated.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Point is a 2D coordinate in length units (millimetres).
type Point struct {
	X, Y float64
}

// Ring is a closed sequence of points.
type Ring []Point

// Polygon is an exterior ring with zero or more holes.
type Polygon struct {
	Exterior Ring
	Holes    []Ring
}

// PolygonSet is a collection of polygons treated as one region.
type PolygonSet []Polygon

// Rect is an axis-aligned bounding box.
type Rect struct {
	Min, Max Point
}

// SignedArea returns the shoelace area of the ring; positive for
// counter-clockwise rings.
func (r Ring) SignedArea() float64 {
	n := len(r)
	if n < 3 {
		return 0
	}
	var a float64
	j := n - 1
	for i := 0; i < n; i++ {
		a += (r[j].X + r[i].X) * (r[j].Y - r[i].Y)
		j = i
	}
	return -a * 0.5
}

// Area returns the unsigned area of the ring.
func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// Reversed returns a copy of the ring with opposite winding.
func (r Ring) Reversed() Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[len(r)-1-i] = p
	}
	return out
}

// contains reports whether p lies inside the ring using the even-odd rule.
func (r Ring) contains(p Point) bool {
	inside := false
	j := len(r) - 1
	for i := range r {
		a, b := r[i], r[j]
		if (a.Y > p.Y) != (b.Y > p.Y) &&
			p.X < (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y)+a.X {
			inside = !inside
		}
		j = i
	}
	return inside
}

// Area returns the exterior area minus the hole areas.
func (p Polygon) Area() float64 {
	a := p.Exterior.Area()
	for _, h := range p.Holes {
		a -= h.Area()
	}
	return a
}

// Contains reports whether pt is inside the exterior and outside every hole.
func (p Polygon) Contains(pt Point) bool {
	if !p.Exterior.contains(pt) {
		return false
	}
	for _, h := range p.Holes {
		if h.contains(pt) {
			return false
		}
	}
	return true
}

// Area returns the unsigned area covered by the set.
func (s PolygonSet) Area() float64 {
	if len(s) == 0 {
		return 0
	}
	areas := make([]float64, len(s))
	for i, p := range s {
		areas[i] = p.Area()
	}
	return math.Abs(floats.Sum(areas))
}

// IsEmpty reports whether the set has no polygons.
func (s PolygonSet) IsEmpty() bool {
	return len(s) == 0
}

// Contains reports whether pt lies inside any polygon of the set.
func (s PolygonSet) Contains(pt Point) bool {
	for _, p := range s {
		if p.Contains(pt) {
			return true
		}
	}
	return false
}

// Bounds returns the bounding box of all exterior rings. The zero Rect is
// returned for an empty set.
func (s PolygonSet) Bounds() Rect {
	first := true
	var r Rect
	for _, p := range s {
		for _, pt := range p.Exterior {
			if first {
				r = Rect{Min: pt, Max: pt}
				first = false
				continue
			}
			r.Min.X = math.Min(r.Min.X, pt.X)
			r.Min.Y = math.Min(r.Min.Y, pt.Y)
			r.Max.X = math.Max(r.Max.X, pt.X)
			r.Max.Y = math.Max(r.Max.Y, pt.Y)
		}
	}
	return r
}

// Clone returns a deep copy of the set.
func (s PolygonSet) Clone() PolygonSet {
	if s == nil {
		return nil
	}
	out := make(PolygonSet, len(s))
	for i, p := range s {
		out[i].Exterior = append(Ring(nil), p.Exterior...)
		if len(p.Holes) > 0 {
			out[i].Holes = make([]Ring, len(p.Holes))
			for j, h := range p.Holes {
				out[i].Holes[j] = append(Ring(nil), h...)
			}
		}
	}
	return out
}

// Rectangle returns a single-polygon set covering the given box.
func Rectangle(minX, minY, maxX, maxY float64) PolygonSet {
	return PolygonSet{{Exterior: Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY},
	}}}
}
