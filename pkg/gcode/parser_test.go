package gcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
)

func TestParseSingleMotion(t *testing.T) {
	modules, err := ParseString("G1 X10 Y5 F1200\n")
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.Len(t, modules[0].Instructions, 1)

	in := modules[0].Instructions[0]
	assert.Equal(t, G1, in.Type)
	assert.Equal(t, Motion, in.Type.Category())
	assert.Empty(t, in.Children)
	assert.Equal(t, 3, in.Movements.Len())

	for axis, want := range map[Axis]float64{X: 10, Y: 5, F: 1200} {
		v, ok := in.Movements.Get(axis)
		assert.True(t, ok, "axis %s", axis)
		assert.Equal(t, want, v, "axis %s", axis)
	}
	assert.False(t, in.Movements.Has(Z))
	assert.False(t, in.Movements.Has(E))
}

func TestParseUnknownInstruction(t *testing.T) {
	modules, err := ParseString("G99 X1")
	require.Error(t, err)
	assert.Nil(t, modules)

	herr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrGCodeUnknownInstruction, herr.Code)
	assert.Equal(t, 0, herr.Line)
	assert.Equal(t, "G99", herr.Token)
	assert.True(t, errors.IsGCode(err))
}

func TestParseErrorsAreFatal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  errors.ErrorCode
		line  int
		token string
	}{
		{"unknown after valid lines", "G1 X1\nG0 Y2\nT0\n", errors.ErrGCodeUnknownInstruction, 2, "T0"},
		{"motion child", "G1 G0 X1\n", errors.ErrGCodeStandalone, 0, "G0"},
		{"unknown child", ";LAYER:1\nG1 G77 X1\n", errors.ErrGCodeStandalone, 1, "G77"},
		{"standalone with axes", "M30 X1\n", errors.ErrGCodeStandalone, 0, "X1"},
		{"malformed number", "G1 X1\n\nG1 Xabc\n", errors.ErrGCodeNumeric, 2, "Xabc"},
		{"empty number", "G0 E\n", errors.ErrGCodeNumeric, 0, "E"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modules, err := ParseString(tt.input)
			require.Error(t, err)
			assert.Nil(t, modules, "no partial output")
			herr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, herr.Code)
			assert.Equal(t, tt.line, herr.Line)
			assert.Equal(t, tt.token, herr.Token)
		})
	}
}

func TestParseChildrenAndIgnoredTokens(t *testing.T) {
	m := metrics.NewSlicerMetrics()
	p := NewParser(WithParserMetrics(m))
	modules, err := p.ParseString("G1 G24 M104 X1 S200 E0.5 ; trailing\nM30\n")
	require.NoError(t, err)
	require.Len(t, modules, 1)
	require.Len(t, modules[0].Instructions, 2)

	in := modules[0].Instructions[0]
	assert.Equal(t, []InstructionType{G24}, in.Children)
	assert.Equal(t, 2, in.Movements.Len())
	e, _ := in.Movements.Get(E)
	assert.Equal(t, 0.5, e)

	end := modules[0].Instructions[1]
	assert.Equal(t, M30, end.Type)
	assert.Equal(t, Standalone, end.Type.Category())
	assert.Zero(t, end.Movements.Len())

	stats := p.Stats()
	assert.Equal(t, 1, stats.IgnoredTokens)
	assert.Equal(t, 1, stats.UnknownTokens)
	assert.Equal(t, 2, stats.Instructions)
	assert.Equal(t, 2, stats.Lines)
	assert.EqualValues(t, 2, m.GCodeLines.Get(nil))
	assert.EqualValues(t, 1, m.IgnoredTokens.Get(nil))
}

func TestParseModules(t *testing.T) {
	input := strings.Join([]string{
		";LAYER:0",
		";TYPE:Skirt",
		"",
		"G0 X0 Y0 Z0.2",
		"G1 X10 E1",
		";TYPE:Skirt",
		";not a marker",
		"G1 Y10 E2",
		";TYPE:External perimeter",
		"G1 X0 E3",
		";LAYER:1",
		";Z:0.4",
		"G0 Z0.4",
		";LAYER:2",
	}, "\n")

	p := NewParser()
	modules, err := p.ParseString(input)
	require.NoError(t, err)
	require.Len(t, modules, 3)

	assert.Equal(t, State{Layer: 0, Type: "Skirt"}, modules[0].State)
	assert.Len(t, modules[0].Instructions, 3)

	assert.Equal(t, State{Layer: 0, Type: "External perimeter"}, modules[1].State)
	assert.Len(t, modules[1].Instructions, 1)

	// ;Z applies in place because the module opened by ;LAYER:1 is still empty
	assert.Equal(t, State{Layer: 1, Type: "External perimeter", Z: 0.4}, modules[2].State)
	assert.Len(t, modules[2].Instructions, 1)

	// the trailing empty module is dropped
	assert.Equal(t, 3, p.Stats().Modules)
	assert.Equal(t, 14, p.Stats().Lines)
}

func TestParseLowercase(t *testing.T) {
	modules, err := ParseString("g1 x1.5 y-2\n")
	require.NoError(t, err)
	in := modules[0].Instructions[0]
	assert.Equal(t, G1, in.Type)
	x, _ := in.Movements.Get(X)
	y, _ := in.Movements.Get(Y)
	assert.Equal(t, 1.5, x)
	assert.Equal(t, -2.0, y)
}

func TestParseEmpty(t *testing.T) {
	modules, err := ParseString("\n   \n;LAYER:4\n")
	require.NoError(t, err)
	assert.Empty(t, modules)
}
