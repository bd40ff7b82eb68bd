// Package toolpath turns parsed instruction modules into a render-ready
// vertex buffer. The buffer is built once; a Context filters it by layer
// range and print type without touching the vertices.
package toolpath

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// PrintType tags what a toolpath segment prints. It is a small integer so
// it can be uploaded to the GPU unchanged.
type PrintType uint32

const (
	Unknown PrintType = iota
	ExternalPerimeter
	Perimeter
	InternalInfill
	SolidInfill
	TopSolidInfill
	BridgeInfill
	GapFill
	Skirt
	Support
	SupportInterface
	Travel

	numPrintTypes
)

// PrintTypes lists every print type.
var PrintTypes = func() []PrintType {
	out := make([]PrintType, numPrintTypes)
	for i := range out {
		out[i] = PrintType(i)
	}
	return out
}()

var printTypeNames = [numPrintTypes]string{
	Unknown:           "Unknown",
	ExternalPerimeter: "External perimeter",
	Perimeter:         "Perimeter",
	InternalInfill:    "Internal infill",
	SolidInfill:       "Solid infill",
	TopSolidInfill:    "Top solid infill",
	BridgeInfill:      "Bridge infill",
	GapFill:           "Gap fill",
	Skirt:             "Skirt",
	Support:           "Support material",
	SupportInterface:  "Support material interface",
	Travel:            "Travel",
}

// aliases maps lower-cased slicer type names, including the Cura
// spellings, to print types.
var aliases = map[string]PrintType{
	"overhang perimeter": ExternalPerimeter,
	"skirt/brim":         Skirt,
	"brim":               Skirt,
	"wall-outer":         ExternalPerimeter,
	"wall-inner":         Perimeter,
	"fill":               InternalInfill,
	"skin":               SolidInfill,
	"top surface":        TopSolidInfill,
	"bridge":             BridgeInfill,
	"support":            Support,
	"support-interface":  SupportInterface,
	"support-roof":       SupportInterface,
	"support-floor":      SupportInterface,
	"prime-tower":        Support,
}

var colors = [numPrintTypes]mgl32.Vec4{
	Unknown:           {0.5, 0.5, 0.5, 1},
	ExternalPerimeter: {1, 0.65, 0, 1},
	Perimeter:         {1, 0.9, 0.3, 1},
	InternalInfill:    {0.69, 0.19, 0.16, 1},
	SolidInfill:       {0.59, 0.33, 0.8, 1},
	TopSolidInfill:    {0.94, 0.25, 0.25, 1},
	BridgeInfill:      {0.3, 0.5, 0.73, 1},
	GapFill:           {1, 1, 1, 1},
	Skirt:             {0, 0.53, 0.43, 1},
	Support:           {0, 1, 0, 1},
	SupportInterface:  {0.12, 0.62, 0.12, 1},
	Travel:            {0.2, 0.2, 0.8, 0.4},
}

func (t PrintType) String() string {
	if t >= numPrintTypes {
		return printTypeNames[Unknown]
	}
	return printTypeNames[t]
}

// ParsePrintType resolves a ";TYPE:" value. Unrecognized names map to
// Unknown.
func ParsePrintType(name string) PrintType {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return Unknown
	}
	for i, n := range printTypeNames {
		if strings.ToLower(n) == key {
			return PrintType(i)
		}
	}
	if t, ok := aliases[key]; ok {
		return t
	}
	return Unknown
}

// Color returns the display color of t.
func (t PrintType) Color() mgl32.Vec4 {
	if t >= numPrintTypes {
		return colors[Unknown]
	}
	return colors[t]
}

// Bit returns the visibility mask bit of t.
func (t PrintType) Bit() uint64 {
	return 1 << uint64(t)
}
