package config

import (
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Section is one [name] block. Every read marks the option as used so
// leftovers can be reported as typos.
type Section struct {
	name    string
	options map[string]string

	mu       sync.RWMutex
	accessed map[string]struct{}
}

func newSection(name string, options map[string]string) *Section {
	s := &Section{
		name:     name,
		options:  make(map[string]string, len(options)),
		accessed: make(map[string]struct{}),
	}
	for k, v := range options {
		s.options[strings.ToLower(k)] = v
	}
	return s
}

// GetName returns the section name.
func (s *Section) GetName() string {
	return s.name
}

// lookup returns the trimmed raw value and marks the option accessed.
func (s *Section) lookup(option string) (string, bool) {
	key := strings.ToLower(option)
	s.mu.Lock()
	s.accessed[key] = struct{}{}
	s.mu.Unlock()
	v, ok := s.options[key]
	return strings.TrimSpace(v), ok
}

// GetUnusedOptions returns the sorted options that were never read.
func (s *Section) GetUnusedOptions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var unused []string
	for opt := range s.options {
		if _, ok := s.accessed[opt]; !ok {
			unused = append(unused, opt)
		}
	}
	sort.Strings(unused)
	return unused
}

// HasOption checks if an option exists in this section.
func (s *Section) HasOption(option string) bool {
	_, ok := s.options[strings.ToLower(option)]
	return ok
}

// typed reads option through parse. A missing option yields the first
// fallback, or a missing-option error when there is none.
func typed[T any](s *Section, option, expected string, parse func(string) (T, bool), fallback []T) (T, error) {
	var zero T
	raw, ok := s.lookup(option)
	if !ok {
		if len(fallback) > 0 {
			return fallback[0], nil
		}
		return zero, ErrMissingOption(s.name, option)
	}
	v, ok := parse(raw)
	if !ok {
		return zero, ErrInvalidValue(s.name, option, raw, expected)
	}
	return v, nil
}

// Get returns a string option value.
func (s *Section) Get(option string, fallback ...string) (string, error) {
	return typed(s, option, "string", func(v string) (string, bool) { return v, true }, fallback)
}

// GetInt returns an integer option value.
func (s *Section) GetInt(option string, fallback ...int) (int, error) {
	return typed(s, option, "integer", func(v string) (int, bool) {
		i, err := strconv.Atoi(v)
		return i, err == nil
	}, fallback)
}

// GetFloat returns a float64 option value.
func (s *Section) GetFloat(option string, fallback ...float64) (float64, error) {
	return typed(s, option, "float", func(v string) (float64, bool) {
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}, fallback)
}

// GetBool accepts 1/true/yes/on and 0/false/no/off.
func (s *Section) GetBool(option string, fallback ...bool) (bool, error) {
	return typed(s, option, "boolean (true/false/yes/no/on/off/1/0)", func(v string) (bool, bool) {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true, true
		case "0", "false", "no", "off":
			return false, true
		}
		return false, false
	}, fallback)
}

// GetChoice returns the canonical spelling of one of choices, matched
// case-insensitively.
func (s *Section) GetChoice(option string, choices []string, fallback ...string) (string, error) {
	v, err := s.Get(option, fallback...)
	if err != nil {
		return "", err
	}
	for _, c := range choices {
		if strings.EqualFold(v, c) {
			return c, nil
		}
	}
	return "", ErrInvalidChoice(s.name, option, v, choices)
}

// GetIntWithBounds returns an integer within [minVal, maxVal]; nil bounds
// are open.
func (s *Section) GetIntWithBounds(option string, minVal, maxVal *int, fallback ...int) (int, error) {
	v, err := s.GetInt(option, fallback...)
	if err != nil {
		return 0, err
	}
	if minVal != nil && v < *minVal {
		return 0, ErrOutOfRange(s.name, option, float64(v), "must have minimum of "+strconv.Itoa(*minVal))
	}
	if maxVal != nil && v > *maxVal {
		return 0, ErrOutOfRange(s.name, option, float64(v), "must have maximum of "+strconv.Itoa(*maxVal))
	}
	return v, nil
}

// FloatBounds holds optional inclusive (MinVal, MaxVal) and exclusive
// (Above, Below) limits.
type FloatBounds struct {
	MinVal *float64
	MaxVal *float64
	Above  *float64
	Below  *float64
}

// Float returns a pointer to v, for building FloatBounds inline.
func Float(v float64) *float64 { return &v }

func (b FloatBounds) check(v float64) (string, bool) {
	format := func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
	switch {
	case b.MinVal != nil && v < *b.MinVal:
		return "must have minimum of " + format(*b.MinVal), false
	case b.MaxVal != nil && v > *b.MaxVal:
		return "must have maximum of " + format(*b.MaxVal), false
	case b.Above != nil && v <= *b.Above:
		return "must be above " + format(*b.Above), false
	case b.Below != nil && v >= *b.Below:
		return "must be below " + format(*b.Below), false
	}
	return "", true
}

// GetFloatWithBounds returns a float64 option value within bounds.
func (s *Section) GetFloatWithBounds(option string, bounds FloatBounds, fallback ...float64) (float64, error) {
	v, err := s.GetFloat(option, fallback...)
	if err != nil {
		return 0, err
	}
	if constraint, ok := bounds.check(v); !ok {
		return 0, ErrOutOfRange(s.name, option, v, constraint)
	}
	return v, nil
}
