package toolpath

import (
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/pool"
)

// Stride is the size of one encoded vertex in bytes.
const Stride = 48

// Fragment is a positioned, oriented and colored point of geometry.
type Fragment struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Color    mgl32.Vec4
}

// Vertex is the per-vertex render record. Vertices are never modified
// after a buffer is built.
type Vertex struct {
	Position  mgl32.Vec3
	Normal    mgl32.Vec3
	Color     mgl32.Vec4
	PrintType uint32
	Layer     uint32
}

// NewVertex tags a fragment with its print type and layer.
func NewVertex(f Fragment, t PrintType, layer uint32) Vertex {
	return Vertex{
		Position:  f.Position,
		Normal:    f.Normal,
		Color:     f.Color,
		PrintType: uint32(t),
		Layer:     layer,
	}
}

// Group is the contiguous vertex range emitted for one instruction.
type Group struct {
	Start       int
	Count       int
	Instruction int
}

// Buffer holds every vertex of a toolpath, grouped by the instruction
// that produced it.
type Buffer struct {
	Vertices []Vertex
	Groups   []Group
}

// Len returns the number of vertices.
func (b *Buffer) Len() int {
	return len(b.Vertices)
}

// Layers returns one past the highest layer index in the buffer.
func (b *Buffer) Layers() uint32 {
	var n uint32
	for i := range b.Vertices {
		if l := b.Vertices[i].Layer + 1; l > n {
			n = l
		}
	}
	return n
}

// Visible calls fn for each vertex that passes ctx, in buffer order,
// until fn returns false.
func (b *Buffer) Visible(ctx Context, fn func(i int, v *Vertex) bool) {
	for i := range b.Vertices {
		if ctx.Visible(&b.Vertices[i]) && !fn(i, &b.Vertices[i]) {
			return
		}
	}
}

// CountVisible returns how many vertices pass ctx.
func (b *Buffer) CountVisible(ctx Context) int {
	n := 0
	b.Visible(ctx, func(int, *Vertex) bool {
		n++
		return true
	})
	return n
}

// WriteTo writes all vertices as packed little-endian records of Stride
// bytes: position, normal and color as float32, then print type and
// layer as uint32.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	const batch = 1024

	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)

	var written int64
	for start := 0; start < len(b.Vertices); start += batch {
		buf.Reset()
		end := min(start+batch, len(b.Vertices))
		for i := start; i < end; i++ {
			appendVertex(buf, &b.Vertices[i])
		}
		n, err := w.Write(buf.Bytes())
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func appendVertex(buf *pool.ByteBuffer, v *Vertex) {
	for _, f := range v.Position {
		buf.AppendFloat32LE(f)
	}
	for _, f := range v.Normal {
		buf.AppendFloat32LE(f)
	}
	for _, f := range v.Color {
		buf.AppendFloat32LE(f)
	}
	buf.AppendUint32LE(v.PrintType)
	buf.AppendUint32LE(v.Layer)
}

// Context filters a buffer at render time. Changing it never touches the
// vertices.
type Context struct {
	Visibility uint64
	MinLayer   uint32
	MaxLayer   uint32
}

// NewContext returns a context that shows everything.
func NewContext() Context {
	return Context{
		Visibility: math.MaxUint64,
		MinLayer:   0,
		MaxLayer:   math.MaxUint32,
	}
}

// Show makes print type t visible.
func (c *Context) Show(t PrintType) {
	c.Visibility |= t.Bit()
}

// Hide hides print type t.
func (c *Context) Hide(t PrintType) {
	c.Visibility &^= t.Bit()
}

// IsShown reports whether print type t is visible.
func (c Context) IsShown(t PrintType) bool {
	return c.Visibility&t.Bit() != 0
}

// SetLayerRange limits the visible layers to [lo, hi].
func (c *Context) SetLayerRange(lo, hi uint32) {
	if lo > hi {
		lo, hi = hi, lo
	}
	c.MinLayer, c.MaxLayer = lo, hi
}

// Visible reports whether v passes the filter.
func (c Context) Visible(v *Vertex) bool {
	return v.Layer >= c.MinLayer && v.Layer <= c.MaxLayer &&
		c.Visibility&PrintType(v.PrintType).Bit() != 0
}
