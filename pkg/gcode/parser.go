package gcode

import (
	"bufio"
	"io"
	"strings"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/log"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/metrics"
	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/pool"
)

var logger = log.GetLogger("gcode")

const maxLineLength = 1 << 20

// Stats summarizes the last parse.
type Stats struct {
	Lines         int
	Instructions  int
	Modules       int
	IgnoredTokens int // M sub-codes
	UnknownTokens int // tokens that are neither sub-codes nor axes
}

// Parser converts GCode text into instruction modules. A Parser is not
// safe for concurrent use.
type Parser struct {
	metrics *metrics.SlicerMetrics
	stats   Stats
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithParserMetrics reports line and ignored token counts to m.
func WithParserMetrics(m *metrics.SlicerMetrics) ParserOption {
	return func(p *Parser) { p.metrics = m }
}

// NewParser creates a parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns the counters of the most recent Parse call.
func (p *Parser) Stats() Stats {
	return p.stats
}

// Parse reads GCode line by line. The first error aborts the parse and no
// modules are returned. Errors carry the 0-based line index and the
// offending token.
func (p *Parser) Parse(r io.Reader) ([]InstructionModule, error) {
	p.stats = Stats{}

	var (
		modules []InstructionModule
		current InstructionModule
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	tokens := pool.GetStringSlice()
	defer pool.PutStringSlice(tokens)

	lineNo := -1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if line[0] == ';' {
			if current.IsEmpty() {
				current.State.ParseComment(line)
				continue
			}
			next := current.State
			if next.ParseComment(line) {
				modules = append(modules, current)
				current = InstructionModule{State: next}
			}
			continue
		}

		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if line == "" {
				continue
			}
		}

		*tokens = splitFields((*tokens)[:0], line)
		in, err := p.parseInstruction(lineNo, *tokens)
		if err != nil {
			logger.WithError(err).Debug("parse aborted at line %d", lineNo)
			return nil, err
		}
		current.Instructions = append(current.Instructions, in)
		p.stats.Instructions++
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrGCodeRead, "read failed").SetLine(lineNo + 1)
	}

	if !current.IsEmpty() {
		modules = append(modules, current)
	}

	p.stats.Lines = lineNo + 1
	p.stats.Modules = len(modules)
	p.metrics.RecordGCodeLines(p.stats.Lines, p.stats.IgnoredTokens)
	logger.WithFields(log.Fields{
		"lines":   p.stats.Lines,
		"modules": p.stats.Modules,
		"ignored": p.stats.IgnoredTokens,
	}).Debug("gcode parsed")
	return modules, nil
}

// ParseString parses GCode held in memory.
func (p *Parser) ParseString(s string) ([]InstructionModule, error) {
	return p.Parse(strings.NewReader(s))
}

func (p *Parser) parseInstruction(lineNo int, tokens []string) (Instruction, error) {
	primary, ok := ParseInstructionType(tokens[0])
	if !ok {
		return Instruction{}, errors.UnknownInstructionError(lineNo, tokens[0])
	}
	in := Instruction{Type: primary}

	for _, tok := range tokens[1:] {
		switch tok[0] {
		case 'G', 'g':
			child, ok := ParseInstructionType(tok)
			if !ok || !child.IsStandalone() {
				return Instruction{}, errors.StandaloneError(lineNo, tok, "sub-instruction is not standalone")
			}
			in.Children = append(in.Children, child)
			continue
		case 'M', 'm':
			p.stats.IgnoredTokens++
			logger.Debug("ignoring sub-code %s at line %d", tok, lineNo)
			continue
		}

		axis, v, ok, err := ParseAxisToken(tok)
		if !ok {
			p.stats.UnknownTokens++
			continue
		}
		if err != nil {
			return Instruction{}, errors.NumericError(lineNo, tok, err)
		}
		if primary.IsStandalone() {
			return Instruction{}, errors.StandaloneError(lineNo, tok, primary.String()+" does not take movement parameters")
		}
		in.Movements.Set(axis, v)
	}
	return in, nil
}

// splitFields appends the space-separated fields of s to dst.
func splitFields(dst []string, s string) []string {
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\t' {
			if start >= 0 {
				dst = append(dst, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		dst = append(dst, s[start:])
	}
	return dst
}

// Parse parses GCode with a fresh parser.
func Parse(r io.Reader) ([]InstructionModule, error) {
	return NewParser().Parse(r)
}

// ParseString parses in-memory GCode with a fresh parser.
func ParseString(s string) ([]InstructionModule, error) {
	return NewParser().ParseString(s)
}
