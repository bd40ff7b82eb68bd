// Package slicer holds the layered cross-section model of printed objects
// and support masks, and the engine that reconciles masks against objects.
package slicer

import (
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/geometry"
)

// Layer is one Z-height cross-section. RemainingArea mirrors MainPolygon
// after every engine operation.
type Layer struct {
	MainPolygon   geometry.PolygonSet
	RemainingArea geometry.PolygonSet
	TopHeight     float64
}

// NewLayer returns a layer whose cached remaining area equals poly.
func NewLayer(poly geometry.PolygonSet, topHeight float64) *Layer {
	l := &Layer{TopHeight: topHeight}
	l.SetPolygon(poly)
	return l
}

// SetPolygon replaces the cross-section and refreshes the mirror.
func (l *Layer) SetPolygon(poly geometry.PolygonSet) {
	l.MainPolygon = poly
	l.RemainingArea = poly.Clone()
}

// Area returns the unsigned area of the cross-section.
func (l *Layer) Area() float64 {
	return l.MainPolygon.Area()
}

// Object is a solid body sliced into layers, indexed bottom to top.
type Object struct {
	Name   string
	Layers []*Layer
}

// LayerAt returns the layer at index i, or nil when out of range.
func (o *Object) LayerAt(i int) *Layer {
	if i < 0 || i >= len(o.Layers) {
		return nil
	}
	return o.Layers[i]
}

// Mask is a layered subtractive or support region. Its layer indices are
// aligned with the objects it is cropped against.
type Mask struct {
	Name   string
	Layers []*Layer
}

// Area returns the summed area of all layers.
func (m *Mask) Area() float64 {
	var a float64
	for _, l := range m.Layers {
		a += l.Area()
	}
	return a
}
