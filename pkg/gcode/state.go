package gcode

import (
	"strconv"
	"strings"
)

// State is the machine state captured from comment markers such as
// ";LAYER:3" or ";TYPE:Perimeter".
type State struct {
	Layer  int
	Type   string
	Width  float64
	Height float64
	Z      float64
}

// ParseComment applies a comment line to the state. It returns true only
// when the line carried a recognized key with a valid value that differs
// from the current one. Keys are case-insensitive.
func (s *State) ParseComment(line string) bool {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ";") {
		return false
	}
	key, value, ok := strings.Cut(line[1:], ":")
	if !ok {
		return false
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}

	switch key {
	case "LAYER":
		n, err := strconv.Atoi(value)
		if err != nil || n == s.Layer {
			return false
		}
		s.Layer = n
	case "TYPE":
		if value == s.Type {
			return false
		}
		s.Type = value
	case "WIDTH":
		return setFloat(&s.Width, value)
	case "HEIGHT":
		return setFloat(&s.Height, value)
	case "Z":
		return setFloat(&s.Z, value)
	default:
		return false
	}
	return true
}

func setFloat(dst *float64, value string) bool {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil || v == *dst {
		return false
	}
	*dst = v
	return true
}
