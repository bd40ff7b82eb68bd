package job

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/gcode"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/slicer"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/toolpath"
)

const sample = `
name: demo
layer_height: 0.2
max_height: 0.2
objects:
  - name: cube
    layers:
      - count: 3
        polygons:
          - exterior: [[0, 0], [10, 0], [10, 10], [0, 10]]
            holes:
              - [[4, 4], [4, 6], [6, 6], [6, 4]]
masks:
  - name: support
    layers:
      - count: 4
        polygons:
          - exterior: [[5, 5], [15, 5], [15, 15], [5, 15]]
`

func TestDecode(t *testing.T) {
	j, err := Decode([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, "demo", j.Name)
	assert.InDelta(t, 0.2, j.MaxHeight, 1e-9)
	require.Len(t, j.Objects, 1)
	require.Len(t, j.Masks, 1)

	objects, masks := j.Slicer()
	require.Len(t, objects[0].Layers, 3)
	require.Len(t, masks[0].Layers, 4)
	assert.InDelta(t, 96, objects[0].Layers[0].Area(), 1e-9)
	assert.InDelta(t, 0.6, objects[0].Layers[2].TopHeight, 1e-9)
	assert.InDelta(t, 0.8, masks[0].Layers[3].TopHeight, 1e-9)

	// layers must not share polygon storage
	objects[0].Layers[0].MainPolygon[0].Exterior[0].X = 42
	assert.Equal(t, 0.0, objects[0].Layers[1].MainPolygon[0].Exterior[0].X)
}

func TestDecodeDefaultsAndTopOverride(t *testing.T) {
	j, err := Decode([]byte(`
objects:
  - name: o
    layers:
      - top: 0.3
        polygons:
          - exterior: [[0, 0], [1, 0], [1, 1]]
      - polygons:
          - exterior: [[0, 0], [1, 0], [1, 1]]
`))
	require.NoError(t, err)
	assert.InDelta(t, DefaultLayerHeight, j.LayerHeight, 1e-9)

	objects, _ := j.Slicer()
	require.Len(t, objects[0].Layers, 2)
	assert.InDelta(t, 0.3, objects[0].Layers[0].TopHeight, 1e-9)
	assert.InDelta(t, 0.4, objects[0].Layers[1].TopHeight, 1e-9)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "name: x\n"},
		{"negative height", "layer_height: -1\nobjects: [{name: o}]\n"},
		{"negative max height", "max_height: -1\nobjects: [{name: o}]\n"},
		{"unnamed", "objects: [{layers: []}]\n"},
		{"duplicate", "masks: [{name: m}, {name: m}]\n"},
		{"short ring", "objects: [{name: o, layers: [{polygons: [{exterior: [[0, 0], [1, 1]]}]}]}]\n"},
		{"bad point", "objects: [{name: o, layers: [{polygons: [{exterior: [[0, 0], [1], [1, 1]]}]}]}]\n"},
		{"bad hole", "objects: [{name: o, layers: [{polygons: [{exterior: [[0, 0], [1, 0], [1, 1]], holes: [[[0, 0]]]}]}]}]\n"},
		{"negative count", "objects: [{name: o, layers: [{count: -1}]}]\n"},
		{"out of range", "objects: [{name: o, layers: [{polygons: [{exterior: [[0, 0], [1e13, 0], [1e13, 1e13]]}]}]}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrJobValidate), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0o644))

	j, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "demo", j.Name)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.Is(err, errors.ErrJobLoad))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("objects: [unterminated"), 0o644))
	_, err = Load(bad)
	assert.True(t, errors.Is(err, errors.ErrJobLoad))

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("name: x\n"), 0o644))
	_, err = Load(invalid)
	assert.True(t, errors.Is(err, errors.ErrJobValidate))
}

func TestEmitModules(t *testing.T) {
	j, err := Decode([]byte(sample))
	require.NoError(t, err)
	objects, masks := j.Slicer()

	modules := Emit(objects, masks)
	// 3 object layers + 4 mask layers
	require.Len(t, modules, 7)

	assert.Equal(t, 0, modules[0].State.Layer)
	assert.Equal(t, toolpath.ExternalPerimeter.String(), modules[0].State.Type)
	assert.Equal(t, toolpath.Support.String(), modules[1].State.Type)
	assert.Equal(t, 3, modules[6].State.Layer)
	assert.InDelta(t, 0.8, modules[6].State.Z, 1e-9)

	// exterior + hole: two travels, eight prints
	first := modules[0].Instructions
	require.Len(t, first, 10)
	assert.Equal(t, "G0 X0 Y0 Z0.2 F7200", first[0].ToGCode())
	assert.Equal(t, gcode.G1, first[1].Type)
	assert.Equal(t, gcode.G0, first[5].Type)

	lastE := 0.0
	for _, m := range modules {
		for _, in := range m.Instructions {
			if e, ok := in.Movements.Get(gcode.E); ok {
				assert.Greater(t, e, lastE)
				lastE = e
			}
		}
	}
}

func TestEmitRoundTripsThroughParser(t *testing.T) {
	j, err := Decode([]byte(sample))
	require.NoError(t, err)
	objects, masks := j.Slicer()
	require.NoError(t, slicer.NewEngine().CropMasks(t.Context(), objects, masks, j.MaxHeight))

	modules := Emit(objects, masks)

	var sb strings.Builder
	require.NoError(t, gcode.Write(&sb, modules))

	parsed, err := gcode.ParseString(sb.String())
	require.NoError(t, err)
	require.Len(t, parsed, len(modules))
	for i := range modules {
		assert.Equal(t, modules[i].State.Type, parsed[i].State.Type)
		assert.Equal(t, len(modules[i].Instructions), len(parsed[i].Instructions))
	}

	buf := toolpath.NewBuilder().Build(parsed)
	assert.EqualValues(t, 3, buf.Layers())
	ctx := toolpath.NewContext()
	ctx.Hide(toolpath.Travel)
	assert.Positive(t, buf.CountVisible(ctx))
}

func TestEmitSkipsEmptyLayers(t *testing.T) {
	obj := &slicer.Object{Name: "o", Layers: []*slicer.Layer{slicer.NewLayer(nil, 0.2)}}
	assert.Empty(t, Emit([]*slicer.Object{obj}, nil))
}

func TestValidateForPrecision(t *testing.T) {
	j, err := Decode([]byte(sample))
	require.NoError(t, err)

	// 15mm fits the default precision but not a scale of 1e18
	fine := geometry.Ops{Scale: 1e18}
	require.Less(t, fine.MaxCoordinate(), 15.0)
	err = j.ValidateFor(fine)
	assert.True(t, errors.Is(err, errors.ErrJobValidate), "got %v", err)
}

func TestEmitAlignsPrunedMasksByHeight(t *testing.T) {
	square := geometry.Rectangle(0, 0, 10, 10)
	objLayers := make([]*slicer.Layer, 6)
	maskLayers := make([]*slicer.Layer, 6)
	for i := range objLayers {
		top := 0.2 * float64(i+1)
		objLayers[i] = slicer.NewLayer(square.Clone(), top)
		poly := geometry.Rectangle(5, 5, 15, 15)
		if i == 1 || i == 2 {
			poly = geometry.Rectangle(50, 50, 60, 60)
		}
		maskLayers[i] = slicer.NewLayer(poly, top)
	}
	objects := []*slicer.Object{{Name: "o", Layers: objLayers}}
	masks := []*slicer.Mask{{Name: "m", Layers: maskLayers}}
	require.NoError(t, slicer.NewEngine().CropMasks(t.Context(), objects, masks, 0))
	require.Len(t, masks[0].Layers, 4)

	modules := Emit(objects, masks)
	require.Len(t, modules, 10)

	lastZ, lastLayer := 0.0, 0
	for _, m := range modules {
		assert.GreaterOrEqual(t, m.State.Z, lastZ, "layer %d %s", m.State.Layer, m.State.Type)
		assert.GreaterOrEqual(t, m.State.Layer, lastLayer)
		assert.InDelta(t, 0.2*float64(m.State.Layer+1), m.State.Z, 1e-9)
		lastZ, lastLayer = m.State.Z, m.State.Layer
		for _, in := range m.Instructions {
			if z, ok := in.Movements.Get(gcode.Z); ok {
				assert.InDelta(t, m.State.Z, z, 1e-9)
			}
		}
	}

	var supportLayers []int
	for _, m := range modules {
		if m.State.Type == toolpath.Support.String() {
			supportLayers = append(supportLayers, m.State.Layer)
		}
	}
	assert.Equal(t, []int{0, 3, 4, 5}, supportLayers)
}
