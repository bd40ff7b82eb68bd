package job

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/gcode"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/slicer"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/toolpath"
)

const threshold = 0.001

// EmitConfig controls perimeter generation.
type EmitConfig struct {
	ExtrusionWidth   float64
	LayerHeight      float64
	FilamentDiameter float64
	PrintSpeed       float64 // mm/s
	TravelSpeed      float64 // mm/s
	XYDecimals       int
	EDecimals        int
}

// DefaultEmitConfig returns settings for a 0.4mm nozzle and 1.75mm filament.
func DefaultEmitConfig() EmitConfig {
	return EmitConfig{
		ExtrusionWidth:   0.45,
		LayerHeight:      DefaultLayerHeight,
		FilamentDiameter: 1.75,
		PrintSpeed:       40,
		TravelSpeed:      120,
		XYDecimals:       4,
		EDecimals:        5,
	}
}

// Emitter traces polygon outlines into instruction modules. Extrusion is
// absolute and accumulates across calls.
type Emitter struct {
	cfg       EmitConfig
	ePerMM    float64
	extruder  float64
	toolhead  mgl64.Vec3
	positions int
}

// NewEmitter creates an emitter for cfg.
func NewEmitter(cfg EmitConfig) *Emitter {
	area := math.Pi * math.Pow(cfg.FilamentDiameter/2, 2)
	return &Emitter{
		cfg:    cfg,
		ePerMM: cfg.LayerHeight * cfg.ExtrusionWidth / area,
	}
}

// Extruded returns the absolute extruder position after all emitted moves.
func (e *Emitter) Extruded() float64 { return e.extruder }

// Emit produces modules in ascending Z: per height, object outlines as
// external perimeters, then mask outlines as support material. Layers are
// matched across bodies by their top height, so masks pruned by
// slicer.CropMasks stay aligned with the objects. Layer numbers count the
// distinct heights from the bottom. Layers without geometry produce no
// module.
func (e *Emitter) Emit(objects []*slicer.Object, masks []*slicer.Mask) []gcode.InstructionModule {
	slabs := e.slabs(objects, masks)

	var modules []gcode.InstructionModule
	for i, s := range slabs {
		if mod, ok := e.layerModule(i, s.z, toolpath.ExternalPerimeter, s.solid); ok {
			modules = append(modules, mod)
		}
		if mod, ok := e.layerModule(i, s.z, toolpath.Support, s.support); ok {
			modules = append(modules, mod)
		}
	}
	logger.Debug("emitted %d modules over %d layers", len(modules), len(slabs))
	return modules
}

// slab is every body's layer at one print height.
type slab struct {
	z       float64
	solid   []*slicer.Layer
	support []*slicer.Layer
}

func (e *Emitter) slabs(objects []*slicer.Object, masks []*slicer.Mask) []*slab {
	byZ := make(map[float64]*slab)
	at := func(l *slicer.Layer) *slab {
		z := e.round(l.TopHeight, e.cfg.XYDecimals)
		s, ok := byZ[z]
		if !ok {
			s = &slab{z: z}
			byZ[z] = s
		}
		return s
	}
	for _, o := range objects {
		for _, l := range o.Layers {
			s := at(l)
			s.solid = append(s.solid, l)
		}
	}
	for _, m := range masks {
		for _, l := range m.Layers {
			s := at(l)
			s.support = append(s.support, l)
		}
	}
	out := slices.Collect(maps.Values(byZ))
	slices.SortFunc(out, func(a, b *slab) int { return cmp.Compare(a.z, b.z) })
	return out
}

func (e *Emitter) layerModule(index int, z float64, t toolpath.PrintType, layers []*slicer.Layer) (gcode.InstructionModule, bool) {
	mod := gcode.InstructionModule{State: gcode.State{
		Layer:  index,
		Type:   t.String(),
		Width:  e.cfg.ExtrusionWidth,
		Height: e.cfg.LayerHeight,
		Z:      z,
	}}
	for _, l := range layers {
		for _, p := range l.MainPolygon {
			mod.Instructions = e.traceRing(mod.Instructions, p.Exterior, z)
			for _, h := range p.Holes {
				mod.Instructions = e.traceRing(mod.Instructions, h, z)
			}
		}
	}
	return mod, !mod.IsEmpty()
}

// traceRing travels to the first point and prints the closed ring.
func (e *Emitter) traceRing(dst []gcode.Instruction, ring geometry.Ring, z float64) []gcode.Instruction {
	if len(ring) < 2 {
		return dst
	}
	start := mgl64.Vec3{ring[0].X, ring[0].Y, z}
	dst = e.travelTo(dst, start)
	for _, p := range ring[1:] {
		dst = e.printTo(dst, mgl64.Vec3{p.X, p.Y, z})
	}
	return e.printTo(dst, start)
}

func (e *Emitter) travelTo(dst []gcode.Instruction, pt mgl64.Vec3) []gcode.Instruction {
	if e.positions > 0 && e.toolhead.ApproxEqualThreshold(pt, threshold) {
		return dst
	}
	var mv gcode.Movements
	mv.Set(gcode.X, e.round(pt.X(), e.cfg.XYDecimals))
	mv.Set(gcode.Y, e.round(pt.Y(), e.cfg.XYDecimals))
	if e.positions == 0 || math.Abs(pt.Z()-e.toolhead.Z()) > threshold {
		mv.Set(gcode.Z, e.round(pt.Z(), e.cfg.XYDecimals))
	}
	mv.Set(gcode.F, e.cfg.TravelSpeed*60)
	e.toolhead = pt
	e.positions++
	return append(dst, gcode.Instruction{Type: gcode.G0, Movements: mv})
}

func (e *Emitter) printTo(dst []gcode.Instruction, pt mgl64.Vec3) []gcode.Instruction {
	if e.toolhead.ApproxEqualThreshold(pt, threshold) {
		return dst
	}
	e.extruder += pt.Sub(e.toolhead).Len() * e.ePerMM
	var mv gcode.Movements
	mv.Set(gcode.X, e.round(pt.X(), e.cfg.XYDecimals))
	mv.Set(gcode.Y, e.round(pt.Y(), e.cfg.XYDecimals))
	mv.Set(gcode.E, e.round(e.extruder, e.cfg.EDecimals))
	mv.Set(gcode.F, e.cfg.PrintSpeed*60)
	e.toolhead = pt
	e.positions++
	return append(dst, gcode.Instruction{Type: gcode.G1, Movements: mv})
}

func (e *Emitter) round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Emit traces objects and masks with the default settings.
func Emit(objects []*slicer.Object, masks []*slicer.Mask) []gcode.InstructionModule {
	return NewEmitter(DefaultEmitConfig()).Emit(objects, masks)
}
