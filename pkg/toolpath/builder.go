package toolpath

import (
	"github.com/go-gl/mathgl/mgl32"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/gcode"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
)

var logger = log.GetLogger("toolpath")

const (
	DefaultWidth  = 0.45
	DefaultHeight = 0.2
)

// VerticesPerSegment is the number of vertices of one segment ribbon.
const VerticesPerSegment = 6

var up = r3.Vec{Z: 1}

// Builder converts instruction modules into a Buffer. Coordinates are
// absolute.
type Builder struct {
	width    float64
	height   float64
	metrics  *metrics.SlicerMetrics
	progress func(done, total int)
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDefaultWidth sets the ribbon width used when no ;WIDTH marker is
// in effect.
func WithDefaultWidth(w float64) BuilderOption {
	return func(b *Builder) { b.width = w }
}

// WithDefaultHeight sets the layer height used when no ;HEIGHT marker is
// in effect.
func WithDefaultHeight(h float64) BuilderOption {
	return func(b *Builder) { b.height = h }
}

// WithBuilderMetrics reports the buffer size to m.
func WithBuilderMetrics(m *metrics.SlicerMetrics) BuilderOption {
	return func(b *Builder) { b.metrics = m }
}

// WithBuilderProgress reports processed modules.
func WithBuilderProgress(fn func(done, total int)) BuilderOption {
	return func(b *Builder) { b.progress = fn }
}

// NewBuilder creates a builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{width: DefaultWidth, height: DefaultHeight}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build emits one ribbon per movement segment, lowered to the middle of
// the bead. A segment extrudes when E increases and is a travel move
// otherwise.
func (b *Builder) Build(modules []gcode.InstructionModule) *Buffer {
	buf := &Buffer{}
	var (
		pos   r3.Vec
		lastE float64
		index int
	)

	for mi := range modules {
		m := &modules[mi]
		extrudeType := ParsePrintType(m.State.Type)
		width := m.State.Width
		if width <= 0 {
			width = b.width
		}
		height := m.State.Height
		if height <= 0 {
			height = b.height
		}
		sink := r3.Vec{Z: -height / 2}
		layer := uint32(max(m.State.Layer, 0))

		for _, in := range m.Instructions {
			idx := index
			index++
			if in.Type.Category() != gcode.Motion {
				continue
			}

			next := pos
			if v, ok := in.Movements.Get(gcode.X); ok {
				next.X = v
			}
			if v, ok := in.Movements.Get(gcode.Y); ok {
				next.Y = v
			}
			if v, ok := in.Movements.Get(gcode.Z); ok {
				next.Z = v
			}
			extruding := false
			if e, ok := in.Movements.Get(gcode.E); ok {
				extruding = e > lastE
				lastE = e
			}

			if next != pos {
				t := Travel
				if extruding {
					t = extrudeType
				}
				start := len(buf.Vertices)
				buf.Vertices = appendRibbon(buf.Vertices, r3.Add(pos, sink), r3.Add(next, sink), width, t, layer)
				buf.Groups = append(buf.Groups, Group{
					Start:       start,
					Count:       len(buf.Vertices) - start,
					Instruction: idx,
				})
			}
			pos = next
		}
		if b.progress != nil {
			b.progress(mi+1, len(modules))
		}
	}

	b.metrics.SetVertices(len(buf.Vertices))
	logger.WithFields(log.Fields{
		"modules":  len(modules),
		"segments": len(buf.Groups),
		"vertices": len(buf.Vertices),
	}).Debug("toolpath built")
	return buf
}

// appendRibbon appends two triangles covering a flat strip of the given
// width from a to b.
func appendRibbon(dst []Vertex, a, b r3.Vec, width float64, t PrintType, layer uint32) []Vertex {
	dir := r3.Unit(r3.Sub(b, a))
	side := r3.Cross(dir, up)
	if r3.Norm(side) < 1e-9 {
		// vertical move
		side = r3.Vec{X: 1}
	}
	side = r3.Scale(width/2, r3.Unit(side))
	normal := r3.Unit(r3.Cross(side, dir))

	color := t.Color()
	n := vec32(normal)
	corner := func(p r3.Vec) Vertex {
		return NewVertex(Fragment{Position: vec32(p), Normal: n, Color: color}, t, layer)
	}

	a0, a1 := corner(r3.Sub(a, side)), corner(r3.Add(a, side))
	b0, b1 := corner(r3.Sub(b, side)), corner(r3.Add(b, side))
	return append(dst, a0, a1, b1, a0, b1, b0)
}

func vec32(v r3.Vec) mgl32.Vec3 {
	return mgl32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}
