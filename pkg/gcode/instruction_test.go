package gcode

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionTypeTable(t *testing.T) {
	for _, tc := range []struct {
		tok  string
		want InstructionType
		cat  Category
	}{
		{"G1", G1, Motion},
		{"G0", G0, Motion},
		{"g24", G24, Standalone},
		{"M30", M30, Standalone},
	} {
		got, ok := ParseInstructionType(tc.tok)
		require.True(t, ok, tc.tok)
		assert.Equal(t, tc.want, got)
		assert.Equal(t, tc.cat, got.Category())
	}
	_, ok := ParseInstructionType("G28")
	assert.False(t, ok)
}

func TestMovementsToGCodeOrder(t *testing.T) {
	var m Movements
	m.Set(F, 1200)
	m.Set(E, 0.25)
	m.Set(X, 10)
	assert.Equal(t, "X10 E0.25 F1200", m.ToGCode())

	m.Unset(E)
	assert.Equal(t, "X10 F1200", m.ToGCode())
	assert.Equal(t, "", Movements{}.ToGCode())
}

func TestMovementsRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for i := 0; i < 200; i++ {
		var m Movements
		for _, a := range Axes {
			if r.IntN(2) == 1 {
				m.Set(a, (r.Float64()-0.5)*1000)
			}
		}
		got, err := ParseMovements(strings.Fields(m.ToGCode()))
		require.NoError(t, err)
		for _, a := range Axes {
			want, had := m.Get(a)
			v, has := got.Get(a)
			require.Equal(t, had, has, "axis %s presence", a)
			assert.InDelta(t, want, v, 1e-9)
		}
	}
}

func TestInstructionToGCode(t *testing.T) {
	in := Instruction{Type: G1, Children: []InstructionType{G24}}
	in.Movements.Set(X, 1)
	in.Movements.Set(Y, 2.5)
	assert.Equal(t, "G1 G24 X1 Y2.5", in.ToGCode())
	assert.Equal(t, "M30", Instruction{Type: M30}.ToGCode())
}

func TestStateParseComment(t *testing.T) {
	var s State
	assert.True(t, s.ParseComment(";LAYER:3"))
	assert.False(t, s.ParseComment(";LAYER:3"), "unchanged value")
	assert.True(t, s.ParseComment("; type : Support material"))
	assert.True(t, s.ParseComment(";width:0.42"))
	assert.True(t, s.ParseComment(";HEIGHT:0.2"))
	assert.True(t, s.ParseComment(";Z:0.6"))
	assert.False(t, s.ParseComment(";LAYER:abc"))
	assert.False(t, s.ParseComment(";generated by hand"))
	assert.False(t, s.ParseComment(";TYPE:"))
	assert.False(t, s.ParseComment("G1 X1"))
	assert.Equal(t, State{Layer: 3, Type: "Support material", Width: 0.42, Height: 0.2, Z: 0.6}, s)
}

func TestWriterRoundTrip(t *testing.T) {
	input := strings.Join([]string{
		";LAYER:1",
		";TYPE:Perimeter",
		";WIDTH:0.45",
		"G0 X0 Y0 Z0.2",
		"G1 G24 X10 E0.5 F1800",
		";TYPE:Solid infill",
		"G1 Y10 E1",
		";LAYER:2",
		";Z:0.4",
		"G1 X0 E1.5",
		"M30",
	}, "\n")
	modules, err := ParseString(input)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, modules))
	assert.Equal(t, input+"\n", buf.String())

	again, err := ParseString(buf.String())
	require.NoError(t, err)
	assert.Equal(t, modules, again)
}

func TestWriterStateBoundaries(t *testing.T) {
	line := func(x float64) Instruction {
		var mv Movements
		mv.Set(X, x)
		return Instruction{Type: G1, Movements: mv}
	}
	modules := []InstructionModule{
		{State: State{Layer: 1, Type: "Perimeter"}, Instructions: []Instruction{line(1)}},
		{State: State{Layer: 1, Type: "Perimeter"}, Instructions: []Instruction{line(2)}},
		{State: State{Layer: 1}, Instructions: []Instruction{line(3)}},
		{State: State{Layer: 2}, Instructions: []Instruction{line(4)}},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, modules))
	parsed, err := ParseString(buf.String())
	require.NoError(t, err)

	// equal states and the cleared type collapse into one module
	require.Len(t, parsed, 2)
	assert.Len(t, parsed[0].Instructions, 3)
	assert.Equal(t, "Perimeter", parsed[0].State.Type)
	assert.Equal(t, 2, parsed[1].State.Layer)
	assert.Equal(t, "Perimeter", parsed[1].State.Type)

	var again bytes.Buffer
	require.NoError(t, Write(&again, parsed))
	reparsed, err := ParseString(again.String())
	require.NoError(t, err)
	assert.Equal(t, parsed, reparsed)
}
