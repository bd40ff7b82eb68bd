// Package job reads job files: YAML documents describing objects and
// masks as stacks of polygon cross-sections. A loaded job converts into
// the slicer model and can emit perimeter GCode for it.
package job

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/slicer"
)

var logger = log.GetLogger("job")

// DefaultLayerHeight is used when a job does not set layer_height.
const DefaultLayerHeight = 0.2

// Job is the decoded form of a job file.
type Job struct {
	Name        string  `yaml:"name"`
	LayerHeight float64 `yaml:"layer_height"`
	MaxHeight   float64 `yaml:"max_height"`
	Objects     []Body  `yaml:"objects"`
	Masks       []Body  `yaml:"masks"`
}

// Body is an object or a mask.
type Body struct {
	Name   string  `yaml:"name"`
	Layers []Layer `yaml:"layers"`
}

// Layer is a cross-section repeated Count times. Top overrides the
// computed top height of the first repetition.
type Layer struct {
	Count    int       `yaml:"count"`
	Top      float64   `yaml:"top"`
	Polygons []Polygon `yaml:"polygons"`
}

// Polygon is an exterior ring with optional holes. Points are [x, y].
type Polygon struct {
	Exterior [][]float64   `yaml:"exterior"`
	Holes    [][][]float64 `yaml:"holes"`
}

// Load reads and validates a job file.
func Load(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.JobLoadError(path, err)
	}
	j, err := Decode(data)
	if err != nil {
		if he, ok := errors.As(err); ok && he.Code == errors.ErrJobValidate {
			return nil, err
		}
		return nil, errors.JobLoadError(path, err)
	}
	logger.WithFields(log.Fields{
		"path":    path,
		"objects": len(j.Objects),
		"masks":   len(j.Masks),
	}).Info("job loaded")
	return j, nil
}

// Decode parses a job document and validates it.
func Decode(data []byte) (*Job, error) {
	j := &Job{}
	if err := yaml.Unmarshal(data, j); err != nil {
		return nil, err
	}
	if j.LayerHeight == 0 {
		j.LayerHeight = DefaultLayerHeight
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// Validate checks that every ring has at least three [x, y] points inside
// the coordinate range of the default polygon precision, and that heights
// and counts are sane.
func (j *Job) Validate() error {
	return j.ValidateFor(geometry.Default)
}

// ValidateFor is Validate against the coordinate range of ops.
func (j *Job) ValidateFor(ops geometry.Ops) error {
	if j.LayerHeight <= 0 {
		return errors.JobValidateError(fmt.Sprintf("layer_height must be above 0, got %v", j.LayerHeight))
	}
	if j.MaxHeight < 0 {
		return errors.JobValidateError(fmt.Sprintf("max_height must not be negative, got %v", j.MaxHeight))
	}
	if len(j.Objects) == 0 && len(j.Masks) == 0 {
		return errors.JobValidateError("job has neither objects nor masks")
	}
	for _, group := range []struct {
		kind   string
		bodies []Body
	}{{"object", j.Objects}, {"mask", j.Masks}} {
		seen := make(map[string]bool)
		for bi, b := range group.bodies {
			if b.Name == "" {
				return errors.JobValidateError(fmt.Sprintf("%s %d has no name", group.kind, bi))
			}
			if seen[b.Name] {
				return errors.JobValidateError(fmt.Sprintf("duplicate %s %q", group.kind, b.Name))
			}
			seen[b.Name] = true
			for li, l := range b.Layers {
				if l.Count < 0 {
					return errors.JobValidateError(fmt.Sprintf("%s %q layer %d: negative count", group.kind, b.Name, li)).
						SetContext("layer", li)
				}
				for pi, p := range l.Polygons {
					if err := validateRing(p.Exterior); err != nil {
						return errors.JobValidateError(fmt.Sprintf("%s %q layer %d polygon %d exterior: %v",
							group.kind, b.Name, li, pi, err))
					}
					for hi, h := range p.Holes {
						if err := validateRing(h); err != nil {
							return errors.JobValidateError(fmt.Sprintf("%s %q layer %d polygon %d hole %d: %v",
								group.kind, b.Name, li, pi, hi, err))
						}
					}
				}
				if !ops.InRange(l.polygonSet()) {
					return errors.JobValidateError(fmt.Sprintf("%s %q layer %d: coordinates exceed +/-%g",
						group.kind, b.Name, li, ops.MaxCoordinate())).SetContext("layer", li)
				}
			}
		}
	}
	return nil
}

func validateRing(pts [][]float64) error {
	if len(pts) < 3 {
		return fmt.Errorf("ring needs at least 3 points, got %d", len(pts))
	}
	for i, p := range pts {
		if len(p) != 2 {
			return fmt.Errorf("point %d has %d coordinates, want 2", i, len(p))
		}
	}
	return nil
}

// Slicer converts the job into slicer objects and masks. Repeated layers
// are expanded and every layer owns its own polygon copy.
func (j *Job) Slicer() ([]*slicer.Object, []*slicer.Mask) {
	objects := make([]*slicer.Object, len(j.Objects))
	for i, b := range j.Objects {
		objects[i] = &slicer.Object{Name: b.Name, Layers: b.layers(j.LayerHeight)}
	}
	masks := make([]*slicer.Mask, len(j.Masks))
	for i, b := range j.Masks {
		masks[i] = &slicer.Mask{Name: b.Name, Layers: b.layers(j.LayerHeight)}
	}
	return objects, masks
}

func (b Body) layers(height float64) []*slicer.Layer {
	var out []*slicer.Layer
	for _, l := range b.Layers {
		poly := l.polygonSet()
		count := max(l.Count, 1)
		for k := 0; k < count; k++ {
			top := height * float64(len(out)+1)
			if k == 0 && l.Top > 0 {
				top = l.Top
			}
			out = append(out, slicer.NewLayer(poly.Clone(), top))
		}
	}
	return out
}

func (l Layer) polygonSet() geometry.PolygonSet {
	set := make(geometry.PolygonSet, 0, len(l.Polygons))
	for _, p := range l.Polygons {
		poly := geometry.Polygon{Exterior: toRing(p.Exterior)}
		for _, h := range p.Holes {
			poly.Holes = append(poly.Holes, toRing(h))
		}
		set = append(set, poly)
	}
	return set
}

func toRing(pts [][]float64) geometry.Ring {
	r := make(geometry.Ring, len(pts))
	for i, p := range pts {
		r[i] = geometry.Point{X: p[0], Y: p[1]}
	}
	return r
}
