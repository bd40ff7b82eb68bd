package gcode

import (
	"io"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/pool"
)

// Writer serializes instruction modules. Each module is preceded by
// comment markers for the state fields that changed since the previous
// module. Modules produced by the parser parse back unchanged. Other input
// may not: consecutive modules with equal State merge into one, and a Type
// reset to "" is not written, so the previous type carries over.
type Writer struct {
	w     io.Writer
	last  State
	lines int
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Lines returns the number of lines written so far.
func (wr *Writer) Lines() int {
	return wr.lines
}

// WriteModule writes one module.
func (wr *Writer) WriteModule(m *InstructionModule) error {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)

	s := m.State
	if s.Layer != wr.last.Layer {
		buf.WriteString(";LAYER:")
		buf.AppendInt(s.Layer)
		wr.endLine(buf)
	}
	if s.Type != wr.last.Type && s.Type != "" {
		buf.WriteString(";TYPE:")
		buf.WriteString(s.Type)
		wr.endLine(buf)
	}
	wr.writeFloat(buf, ";WIDTH:", s.Width, wr.last.Width)
	wr.writeFloat(buf, ";HEIGHT:", s.Height, wr.last.Height)
	wr.writeFloat(buf, ";Z:", s.Z, wr.last.Z)
	wr.last = s

	for _, in := range m.Instructions {
		in.appendTo(buf)
		wr.endLine(buf)
	}
	_, err := wr.w.Write(buf.Bytes())
	return err
}

func (wr *Writer) writeFloat(buf *pool.ByteBuffer, key string, v, last float64) {
	if v == last {
		return
	}
	buf.WriteString(key)
	buf.AppendFloat(v)
	wr.endLine(buf)
}

func (wr *Writer) endLine(buf *pool.ByteBuffer) {
	buf.WriteByte('\n')
	wr.lines++
}

// Write serializes modules to w.
func Write(w io.Writer, modules []InstructionModule) error {
	wr := NewWriter(w)
	for i := range modules {
		if err := wr.WriteModule(&modules[i]); err != nil {
			return err
		}
	}
	return nil
}
