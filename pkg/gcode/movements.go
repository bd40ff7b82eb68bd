package gcode

import (
	"strconv"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/pool"
)

// Axis is one of the five movement parameters.
type Axis int

const (
	X Axis = iota
	Y
	Z
	E
	F

	numAxes
)

// Axes lists every axis in serialization order.
var Axes = [numAxes]Axis{X, Y, Z, E, F}

var axisLetters = [numAxes]byte{'X', 'Y', 'Z', 'E', 'F'}

// Letter returns the parameter letter of the axis.
func (a Axis) Letter() byte {
	return axisLetters[a]
}

func (a Axis) String() string {
	return string(axisLetters[a])
}

// AxisFromLetter maps a parameter letter (either case) to its axis.
func AxisFromLetter(c byte) (Axis, bool) {
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	for i, l := range axisLetters {
		if l == c {
			return Axis(i), true
		}
	}
	return 0, false
}

// Movements holds up to five axis values. An absent axis is unspecified,
// which differs from zero.
type Movements struct {
	values  [numAxes]float64
	present uint8
}

// Set stores v for axis a.
func (m *Movements) Set(a Axis, v float64) {
	m.values[a] = v
	m.present |= 1 << a
}

// Unset removes axis a.
func (m *Movements) Unset(a Axis) {
	m.values[a] = 0
	m.present &^= 1 << a
}

// Get returns the value of axis a and whether it is present.
func (m Movements) Get(a Axis) (float64, bool) {
	if !m.Has(a) {
		return 0, false
	}
	return m.values[a], true
}

// Has reports whether axis a is present.
func (m Movements) Has(a Axis) bool {
	return m.present&(1<<a) != 0
}

// Len returns the number of present axes.
func (m Movements) Len() int {
	n := 0
	for _, a := range Axes {
		if m.Has(a) {
			n++
		}
	}
	return n
}

// ToGCode renders present axes in X Y Z E F order, space separated.
// Absent axes are omitted.
func (m Movements) ToGCode() string {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	m.appendTo(buf)
	return buf.String()
}

func (m Movements) appendTo(buf *pool.ByteBuffer) {
	first := true
	for _, a := range Axes {
		if !m.Has(a) {
			continue
		}
		if !first {
			buf.WriteByte(' ')
		}
		first = false
		buf.WriteByte(a.Letter())
		buf.AppendFloat(m.values[a])
	}
}

// ParseAxisToken parses a single LETTER+number token. ok is false when the
// letter is not an axis; err is set when the number is malformed.
func ParseAxisToken(tok string) (a Axis, v float64, ok bool, err error) {
	if tok == "" {
		return 0, 0, false, nil
	}
	a, ok = AxisFromLetter(tok[0])
	if !ok {
		return 0, 0, false, nil
	}
	v, err = strconv.ParseFloat(tok[1:], 64)
	return a, v, true, err
}

// ParseMovements parses axis tokens such as those produced by ToGCode.
// Non-axis tokens are skipped.
func ParseMovements(tokens []string) (Movements, error) {
	var m Movements
	for _, tok := range tokens {
		a, v, ok, err := ParseAxisToken(tok)
		if err != nil {
			return Movements{}, err
		}
		if ok {
			m.Set(a, v)
		}
	}
	return m, nil
}
