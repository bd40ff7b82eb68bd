package geometry

import (
	"math"

	clipper "github.com/ctessum/go.clipper"
)

// DefaultScale converts millimetres to integer clipper units (1 nm).
const DefaultScale = 1e6

// Ops performs polygon boolean and offset operations at a fixed integer
// precision. The zero value uses DefaultScale.
type Ops struct {
	Scale float64
}

// Default is the Ops used by the PolygonSet convenience methods.
var Default = Ops{Scale: DefaultScale}

func (o Ops) scale() float64 {
	if o.Scale <= 0 {
		return DefaultScale
	}
	return o.Scale
}

// MaxCoordinate returns the largest coordinate magnitude representable
// at this precision.
func (o Ops) MaxCoordinate() float64 {
	return float64(math.MaxInt64>>2) / o.scale()
}

// InRange reports whether every coordinate of s fits the integer range.
func (o Ops) InRange(s PolygonSet) bool {
	limit := o.MaxCoordinate()
	ok := func(r Ring) bool {
		for _, p := range r {
			if math.Abs(p.X) > limit || math.Abs(p.Y) > limit {
				return false
			}
		}
		return true
	}
	for _, p := range s {
		if !ok(p.Exterior) {
			return false
		}
		for _, h := range p.Holes {
			if !ok(h) {
				return false
			}
		}
	}
	return true
}

// Union returns the region covered by a or b.
func (o Ops) Union(a, b PolygonSet) PolygonSet {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	return o.execute(clipper.CtUnion, a, b)
}

// Difference returns the region covered by a but not b.
func (o Ops) Difference(a, b PolygonSet) PolygonSet {
	if len(a) == 0 {
		return nil
	}
	if len(b) == 0 {
		return o.execute(clipper.CtUnion, a, nil)
	}
	return o.execute(clipper.CtDifference, a, b)
}

// Intersection returns the region covered by both a and b.
func (o Ops) Intersection(a, b PolygonSet) PolygonSet {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	return o.execute(clipper.CtIntersection, a, b)
}

// Xor returns the region covered by exactly one of a and b.
func (o Ops) Xor(a, b PolygonSet) PolygonSet {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	return o.execute(clipper.CtXor, a, b)
}

// Offset grows (delta > 0) or shrinks (delta < 0) every polygon by delta
// length units using square joins. Polygons that collapse are dropped.
func (o Ops) Offset(s PolygonSet, delta float64) PolygonSet {
	if len(s) == 0 {
		return nil
	}
	if delta == 0 {
		return s.Clone()
	}
	co := clipper.NewClipperOffset()
	co.AddPaths(o.toPaths(s), clipper.JtSquare, clipper.EtClosedPolygon)
	out := co.Execute(delta * o.scale())
	if len(out) == 0 {
		return nil
	}
	// Offset output winding depends on the sign of delta; a non-zero
	// union restores the exterior/hole structure.
	c := clipper.NewClipper(clipper.IoNone)
	c.AddPaths(out, clipper.PtSubject, true)
	tree, ok := c.Execute2(clipper.CtUnion, clipper.PftNonZero, clipper.PftNonZero)
	if !ok || tree == nil {
		return nil
	}
	return o.fromTree(tree)
}

func (o Ops) execute(ct clipper.ClipType, subj, clip PolygonSet) PolygonSet {
	c := clipper.NewClipper(clipper.IoNone)
	if len(subj) > 0 {
		c.AddPaths(o.toPaths(subj), clipper.PtSubject, true)
	}
	if len(clip) > 0 {
		c.AddPaths(o.toPaths(clip), clipper.PtClip, true)
	}
	tree, ok := c.Execute2(ct, clipper.PftNonZero, clipper.PftNonZero)
	if !ok || tree == nil {
		return nil
	}
	return o.fromTree(tree)
}

// toPaths converts s to clipper paths with exteriors counter-clockwise and
// holes clockwise, so non-zero filling treats holes as uncovered.
func (o Ops) toPaths(s PolygonSet) clipper.Paths {
	paths := make(clipper.Paths, 0, len(s))
	for _, p := range s {
		if len(p.Exterior) < 3 {
			continue
		}
		paths = append(paths, o.toPath(p.Exterior, true))
		for _, h := range p.Holes {
			if len(h) < 3 {
				continue
			}
			paths = append(paths, o.toPath(h, false))
		}
	}
	return paths
}

func (o Ops) toPath(r Ring, ccw bool) clipper.Path {
	k := o.scale()
	path := make(clipper.Path, len(r))
	for i, p := range r {
		path[i] = &clipper.IntPoint{
			X: clipper.CInt(math.Round(p.X * k)),
			Y: clipper.CInt(math.Round(p.Y * k)),
		}
	}
	if clipper.Orientation(path) != ccw {
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
	}
	return path
}

func (o Ops) fromPath(path clipper.Path) Ring {
	k := o.scale()
	r := make(Ring, len(path))
	for i, p := range path {
		r[i] = Point{X: float64(p.X) / k, Y: float64(p.Y) / k}
	}
	return r
}

// fromTree flattens a clipper poly tree. Nodes at even depth are exteriors,
// their direct children are holes, and islands inside holes recurse.
func (o Ops) fromTree(tree *clipper.PolyTree) PolygonSet {
	var out PolygonSet
	var walk func(nodes []*clipper.PolyNode)
	walk = func(nodes []*clipper.PolyNode) {
		for _, outer := range nodes {
			contour := outer.Contour()
			if len(contour) < 3 {
				continue
			}
			ext := o.fromPath(contour)
			if ext.SignedArea() < 0 {
				ext = ext.Reversed()
			}
			poly := Polygon{Exterior: ext}
			for _, hole := range outer.Childs() {
				hc := hole.Contour()
				if len(hc) >= 3 {
					h := o.fromPath(hc)
					if h.SignedArea() > 0 {
						h = h.Reversed()
					}
					poly.Holes = append(poly.Holes, h)
				}
				walk(hole.Childs())
			}
			out = append(out, poly)
		}
	}
	walk(tree.Childs())
	return out
}

// Union returns s ∪ other at the default precision.
func (s PolygonSet) Union(other PolygonSet) PolygonSet { return Default.Union(s, other) }

// Difference returns s minus other at the default precision.
func (s PolygonSet) Difference(other PolygonSet) PolygonSet { return Default.Difference(s, other) }

// Intersection returns s ∩ other at the default precision.
func (s PolygonSet) Intersection(other PolygonSet) PolygonSet {
	return Default.Intersection(s, other)
}

// Xor returns the symmetric difference at the default precision.
func (s PolygonSet) Xor(other PolygonSet) PolygonSet { return Default.Xor(s, other) }

// Offset grows or shrinks s at the default precision.
func (s PolygonSet) Offset(delta float64) PolygonSet { return Default.Offset(s, delta) }
