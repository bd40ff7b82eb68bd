// Package gcode models the textual motion language: instructions with
// per-axis movements, grouped into modules that share a machine state
// captured from comment markers.
package gcode

import (
	"strings"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/pool"
)

// Category separates instructions that carry movement deltas from those
// that never do.
type Category int

const (
	Motion Category = iota
	Standalone
)

func (c Category) String() string {
	if c == Standalone {
		return "standalone"
	}
	return "motion"
}

// InstructionType is one code from the closed instruction table.
type InstructionType int

const (
	G1 InstructionType = iota
	G0
	G24
	M30

	numInstructionTypes
)

var instructionNames = [numInstructionTypes]string{
	G1:  "G1",
	G0:  "G0",
	G24: "G24",
	M30: "M30",
}

var instructionCategories = [numInstructionTypes]Category{
	G1:  Motion,
	G0:  Motion,
	G24: Standalone,
	M30: Standalone,
}

func (t InstructionType) String() string {
	if t < 0 || t >= numInstructionTypes {
		return "INVALID"
	}
	return instructionNames[t]
}

// Category returns whether t is a motion or standalone instruction.
func (t InstructionType) Category() Category {
	return instructionCategories[t]
}

// IsStandalone reports whether t may appear as a child instruction.
func (t InstructionType) IsStandalone() bool {
	return t.Category() == Standalone
}

// ParseInstructionType resolves a token against the instruction table.
// Lookup is case-insensitive.
func ParseInstructionType(tok string) (InstructionType, bool) {
	for i, name := range instructionNames {
		if strings.EqualFold(tok, name) {
			return InstructionType(i), true
		}
	}
	return 0, false
}

// Instruction is one parsed line: a primary code, the standalone codes
// that followed it, and its axis values.
type Instruction struct {
	Type      InstructionType
	Children  []InstructionType
	Movements Movements
}

// ToGCode renders the instruction as a single line without terminator.
func (in Instruction) ToGCode() string {
	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)
	in.appendTo(buf)
	return buf.String()
}

func (in Instruction) appendTo(buf *pool.ByteBuffer) {
	buf.WriteString(in.Type.String())
	for _, c := range in.Children {
		buf.WriteByte(' ')
		buf.WriteString(c.String())
	}
	if in.Movements.Len() > 0 {
		buf.WriteByte(' ')
		in.Movements.appendTo(buf)
	}
}

// InstructionModule is a run of instructions sharing one machine state.
type InstructionModule struct {
	State        State
	Instructions []Instruction
}

// IsEmpty reports whether the module holds no instructions.
func (m *InstructionModule) IsEmpty() bool {
	return len(m.Instructions) == 0
}
