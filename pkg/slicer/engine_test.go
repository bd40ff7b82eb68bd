package slicer

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
)

const tol = 1e-6

func rect(minX, minY, maxX, maxY float64) geometry.PolygonSet {
	return geometry.Rectangle(minX, minY, maxX, maxY)
}

// stack builds layers of the same polygon at 0.2mm steps.
func stack(poly geometry.PolygonSet, n int) []*Layer {
	layers := make([]*Layer, n)
	for i := range layers {
		layers[i] = NewLayer(poly.Clone(), 0.2*float64(i+1))
	}
	return layers
}

func TestNewLayerMirrorsPolygon(t *testing.T) {
	l := NewLayer(rect(0, 0, 2, 2), 0.2)
	assert.Equal(t, l.MainPolygon, l.RemainingArea)
	assert.InDelta(t, 4, l.Area(), tol)

	l.RemainingArea[0].Exterior[0].X = 99
	assert.Equal(t, 0.0, l.MainPolygon[0].Exterior[0].X, "mirror must not alias")
}

func TestCropMasksKeepsOverlap(t *testing.T) {
	obj := &Object{Name: "cube", Layers: stack(rect(0, 0, 10, 10), 3)}
	mask := &Mask{Name: "support", Layers: stack(rect(5, 5, 15, 15), 3)}

	err := NewEngine().CropMasks(context.Background(), []*Object{obj}, []*Mask{mask}, 0)
	require.NoError(t, err)

	require.Len(t, mask.Layers, 3)
	for _, l := range mask.Layers {
		assert.InDelta(t, 25, l.Area(), tol)
		assert.Equal(t, l.MainPolygon, l.RemainingArea)
		b := l.MainPolygon.Bounds()
		assert.InDelta(t, 5, b.Min.X, tol)
		assert.InDelta(t, 10, b.Max.X, tol)
	}
	// objects are never modified
	assert.InDelta(t, 100, obj.Layers[0].Area(), tol)
}

func TestCropMasksCoverage(t *testing.T) {
	objects := []*Object{
		{Name: "a", Layers: stack(rect(0, 0, 4, 4), 2)},
		{Name: "b", Layers: stack(rect(6, 0, 10, 4), 1)},
	}
	mask := &Mask{Name: "m", Layers: stack(rect(-2, -2, 12, 2), 2)}

	CropMasks(objects, []*Mask{mask}, 0)

	require.Len(t, mask.Layers, 2)
	for i, l := range mask.Layers {
		var footprint geometry.PolygonSet
		for _, o := range objects {
			if ol := o.LayerAt(i); ol != nil {
				footprint = footprint.Union(ol.MainPolygon)
			}
		}
		outside := l.MainPolygon.Difference(footprint)
		assert.InDelta(t, 0, outside.Area(), tol, "layer %d leaks outside objects", i)
	}
	// layer 0 overlaps both objects, layer 1 only the first
	assert.InDelta(t, 16, mask.Layers[0].Area(), tol)
	assert.InDelta(t, 8, mask.Layers[1].Area(), tol)
}

func TestCropMasksIdempotent(t *testing.T) {
	objects := []*Object{{Name: "o", Layers: stack(rect(0, 0, 10, 10), 4)}}
	mask := &Mask{Name: "m", Layers: stack(rect(3, -5, 20, 5), 4)}

	CropMasks(objects, []*Mask{mask}, 0.2)
	first := make([]geometry.PolygonSet, len(mask.Layers))
	for i, l := range mask.Layers {
		first[i] = l.MainPolygon.Clone()
	}

	CropMasks(objects, []*Mask{mask}, 0.2)
	require.Len(t, mask.Layers, len(first))
	for i, l := range mask.Layers {
		assert.InDelta(t, 0, l.MainPolygon.Xor(first[i]).Area(), tol)
	}
}

func TestCropMasksPrunesEmptyAboveBaseline(t *testing.T) {
	objects := []*Object{{Name: "o", Layers: stack(rect(0, 0, 1, 1), 5)}}
	mask := &Mask{Name: "m", Layers: stack(rect(50, 50, 60, 60), 5)}

	m := metrics.NewSlicerMetrics()
	err := NewEngine(WithMetrics(m)).CropMasks(context.Background(), objects, []*Mask{mask}, 0.4)
	require.NoError(t, err)

	// heights 0.2 and 0.4 are baseline layers and survive with zero area
	require.Len(t, mask.Layers, 2)
	for _, l := range mask.Layers {
		assert.LessOrEqual(t, l.TopHeight, 0.4)
		assert.Zero(t, l.Area())
	}
	assert.EqualValues(t, 3, m.LayersPruned.Get(metrics.Labels{"mask": "m"}))
}

func TestCropMasksNoObjects(t *testing.T) {
	mask := &Mask{Name: "m", Layers: stack(rect(0, 0, 5, 5), 3)}

	CropMasks(nil, []*Mask{mask}, 0.2)

	require.Len(t, mask.Layers, 1)
	assert.Zero(t, mask.Layers[0].Area())
	assert.InDelta(t, 0.2, mask.Layers[0].TopHeight, tol)
}

func TestCropMasksShorterObject(t *testing.T) {
	objects := []*Object{{Name: "short", Layers: stack(rect(0, 0, 5, 5), 1)}}
	mask := &Mask{Name: "m", Layers: stack(rect(0, 0, 5, 5), 3)}

	CropMasks(objects, []*Mask{mask}, 0)

	require.Len(t, mask.Layers, 1)
	assert.InDelta(t, 25, mask.Layers[0].Area(), tol)
}

func TestCropMasksParallelWithProgress(t *testing.T) {
	objects := []*Object{{Name: "o", Layers: stack(rect(0, 0, 10, 10), 6)}}
	masks := make([]*Mask, 8)
	for i := range masks {
		masks[i] = &Mask{Name: "m", Layers: stack(rect(5, 5, 15, 15), 6)}
	}

	var calls atomic.Int32
	var last atomic.Int32
	e := NewEngine(WithWorkers(3), WithProgress(func(done, total int) {
		calls.Add(1)
		assert.Equal(t, 48, total)
		if done == total {
			last.Store(int32(done))
		}
	}))
	require.NoError(t, e.CropMasks(context.Background(), objects, masks, 0))

	assert.EqualValues(t, 48, calls.Load())
	assert.EqualValues(t, 48, last.Load())
	for _, m := range masks {
		assert.InDelta(t, 6*25, m.Area(), tol)
	}
}

func TestCropMasksCancelled(t *testing.T) {
	objects := []*Object{{Name: "o", Layers: stack(rect(0, 0, 10, 10), 2)}}
	mask := &Mask{Name: "m", Layers: stack(rect(20, 20, 30, 30), 2)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewEngine().CropMasks(ctx, objects, []*Mask{mask}, 0)
	assert.ErrorIs(t, err, context.Canceled)
	// untouched and unpruned
	require.Len(t, mask.Layers, 2)
	assert.InDelta(t, 100, mask.Layers[0].Area(), tol)
}

func TestRandomizeMaskUnderlapsBounds(t *testing.T) {
	orig := rect(0, 0, 20, 20)
	mask := &Mask{Name: "m", Layers: stack(orig, 10)}

	e := NewEngine(WithRand(rand.New(rand.NewPCG(1, 2))))
	e.RandomizeMaskUnderlaps([]*Mask{mask})

	maxInset := orig.Offset(-DefaultUnderlapMax)
	for _, l := range mask.Layers {
		assert.Equal(t, l.MainPolygon, l.RemainingArea)
		// inset >= 0: the result stays inside the original
		assert.InDelta(t, 0, l.MainPolygon.Difference(orig).Area(), tol)
		// inset < 2: the result still covers the fully inset square
		assert.InDelta(t, 0, maxInset.Difference(l.MainPolygon).Area(), tol)
	}
}

func TestRandomizeMaskUnderlapsSeeded(t *testing.T) {
	run := func() []float64 {
		mask := &Mask{Name: "m", Layers: stack(rect(0, 0, 20, 20), 5)}
		NewEngine(WithRand(rand.New(rand.NewPCG(7, 7)))).RandomizeMaskUnderlaps([]*Mask{mask})
		areas := make([]float64, len(mask.Layers))
		for i, l := range mask.Layers {
			areas[i] = l.Area()
		}
		return areas
	}
	assert.Equal(t, run(), run())
}

func TestRandomizeMaskUnderlapsZeroLimit(t *testing.T) {
	mask := &Mask{Name: "m", Layers: stack(rect(0, 0, 3, 3), 2)}
	NewEngine(WithUnderlapMax(0)).RandomizeMaskUnderlaps([]*Mask{mask})
	for _, l := range mask.Layers {
		assert.InDelta(t, 9, l.Area(), tol)
	}
}

func TestRandomizeMaskUnderlapsDefault(t *testing.T) {
	mask := &Mask{Name: "m", Layers: stack(rect(0, 0, 20, 20), 3)}
	RandomizeMaskUnderlaps([]*Mask{mask})
	for _, l := range mask.Layers {
		assert.LessOrEqual(t, l.Area(), 400+tol)
		assert.Greater(t, l.Area(), 256-tol)
	}
}
