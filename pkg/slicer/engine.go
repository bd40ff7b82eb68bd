package slicer

import (
	"context"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
)

const (
	// DefaultAreaEpsilon is the area at or below which a mask layer counts as empty.
	DefaultAreaEpsilon = 1e-6

	// DefaultUnderlapMax bounds the random mask inset: 0 <= inset < max.
	DefaultUnderlapMax = 2.0
)

var logger = log.GetLogger("slicer")

// ProgressFunc receives the number of processed layers out of total. It may
// be called from several goroutines at once.
type ProgressFunc func(done, total int)

// Engine crops and jitters mask layers.
type Engine struct {
	ops         geometry.Ops
	epsilon     float64
	underlapMax float64
	workers     int
	float       func() float64
	metrics     *metrics.SlicerMetrics
	progress    ProgressFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithOps sets the polygon precision.
func WithOps(ops geometry.Ops) Option {
	return func(e *Engine) { e.ops = ops }
}

// WithAreaEpsilon sets the pruning area threshold.
func WithAreaEpsilon(eps float64) Option {
	return func(e *Engine) { e.epsilon = eps }
}

// WithUnderlapMax sets the exclusive upper bound of the random inset.
func WithUnderlapMax(limit float64) Option {
	return func(e *Engine) { e.underlapMax = limit }
}

// WithWorkers bounds how many masks are cropped in parallel. Zero or less
// means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithRand injects the random source used for underlap insets. The source
// is only used from the calling goroutine.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		if r != nil {
			e.float = r.Float64
		}
	}
}

// WithMetrics reports crop timings and pruned layers to m.
func WithMetrics(m *metrics.SlicerMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithProgress registers a per-layer progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(e *Engine) { e.progress = fn }
}

// NewEngine returns an engine with default precision, epsilon and a
// process-wide random source unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		ops:         geometry.Default,
		epsilon:     DefaultAreaEpsilon,
		underlapMax: DefaultUnderlapMax,
		float:       rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	return e
}

// CropMasks trims every mask layer to the part covered by at least one
// object layer at the same index, then prunes empty layers above
// maxHeight. Masks are processed in parallel; the layers of one mask are
// processed in order. Objects are only read.
//
// Cancellation is checked between layers. A cancelled mask keeps the
// layers cropped so far and is not pruned.
func (e *Engine) CropMasks(ctx context.Context, objects []*Object, masks []*Mask, maxHeight float64) error {
	total := 0
	for _, m := range masks {
		total += len(m.Layers)
	}
	var done atomic.Int64
	report := func() {
		n := done.Add(1)
		if e.progress != nil {
			e.progress(int(n), total)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, m := range masks {
		g.Go(func() error {
			return e.cropMask(ctx, objects, m, maxHeight, report)
		})
	}
	return g.Wait()
}

func (e *Engine) cropMask(ctx context.Context, objects []*Object, m *Mask, maxHeight float64, report func()) error {
	start := time.Now()
	for i, layer := range m.Layers {
		if err := ctx.Err(); err != nil {
			logger.WithField("mask", m.Name).Debug("crop cancelled at layer %d", i)
			return err
		}
		remaining := layer.MainPolygon
		for _, obj := range objects {
			if ol := obj.LayerAt(i); ol != nil {
				remaining = e.ops.Difference(remaining, ol.MainPolygon)
			}
		}
		layer.SetPolygon(e.ops.Difference(layer.MainPolygon, remaining))
		report()
	}

	before := len(m.Layers)
	m.Layers = e.prune(m.Layers, maxHeight)
	pruned := before - len(m.Layers)

	e.metrics.RecordCrop(m.Name, pruned, time.Since(start))
	logger.WithFields(log.Fields{
		"mask":   m.Name,
		"layers": len(m.Layers),
		"pruned": pruned,
	}).Debug("mask cropped")
	return nil
}

// prune keeps layers with area above epsilon and every layer at or below
// maxHeight.
func (e *Engine) prune(layers []*Layer, maxHeight float64) []*Layer {
	kept := layers[:0]
	for _, l := range layers {
		if l.Area() > e.epsilon || l.TopHeight <= maxHeight {
			kept = append(kept, l)
		}
	}
	clear(layers[len(kept):])
	return kept
}

// RandomizeMaskUnderlaps shrinks every mask layer by its own random inset
// in [0, underlapMax).
func (e *Engine) RandomizeMaskUnderlaps(masks []*Mask) {
	for _, m := range masks {
		for _, layer := range m.Layers {
			inset := e.float() * e.underlapMax
			layer.SetPolygon(e.ops.Offset(layer.MainPolygon, -inset))
		}
		logger.WithField("mask", m.Name).Debug("randomized underlaps on %d layers", len(m.Layers))
	}
}

// CropMasks crops masks with a default engine.
func CropMasks(objects []*Object, masks []*Mask, maxHeight float64) {
	// a background context never cancels, so the error is always nil
	_ = NewEngine().CropMasks(context.Background(), objects, masks, maxHeight)
}

// RandomizeMaskUnderlaps jitters masks with a default engine and the
// process-wide random source.
func RandomizeMaskUnderlaps(masks []*Mask) {
	NewEngine().RandomizeMaskUnderlaps(masks)
}
