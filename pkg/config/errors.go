// Package config provides configuration file parsing with access tracking
// and validation.
package config

import (
	"fmt"

	"github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"
)

// ConfigError represents a configuration error with context. Its cause is
// a *errors.HostError, so errors.Is(err, errors.ErrConfigOption) matches.
type ConfigError struct {
	Section string
	Option  string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Option != "" {
		return fmt.Sprintf("option '%s' in section '%s': %s", e.Option, e.Section, e.Message)
	}
	if e.Section != "" {
		return fmt.Sprintf("section '%s': %s", e.Section, e.Message)
	}
	return e.Message
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func newError(code errors.ErrorCode, section, option, message string) *ConfigError {
	return &ConfigError{
		Section: section,
		Option:  option,
		Message: message,
		Cause:   errors.New(code, message).SetSection(section).SetOption(option),
	}
}

// NewConfigError creates a new ConfigError.
func NewConfigError(section, option, message string) *ConfigError {
	return newError(errors.ErrConfigValidation, section, option, message)
}

// ErrMissingOption returns an error for a required but missing option.
func ErrMissingOption(section, option string) *ConfigError {
	return newError(errors.ErrConfigOption, section, option, "must be specified")
}

// ErrMissingSection returns an error for a missing section.
func ErrMissingSection(section string) *ConfigError {
	return newError(errors.ErrConfigSection, section, "", "section not found")
}

// ErrInvalidValue returns an error for an invalid value.
func ErrInvalidValue(section, option, value, expected string) *ConfigError {
	return newError(errors.ErrConfigOption, section, option,
		fmt.Sprintf("invalid value '%s', expected %s", value, expected))
}

// ErrOutOfRange returns an error for a value outside the allowed range.
func ErrOutOfRange(section, option string, value float64, constraint string) *ConfigError {
	return newError(errors.ErrConfigValidation, section, option,
		fmt.Sprintf("value %v %s", value, constraint))
}

// ErrInvalidChoice returns an error for an invalid choice value.
func ErrInvalidChoice(section, option, value string, choices []string) *ConfigError {
	return newError(errors.ErrConfigOption, section, option,
		fmt.Sprintf("'%s' is not a valid choice (valid: %v)", value, choices))
}
