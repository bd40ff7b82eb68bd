// Unified error handling for the fiberslice core
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
)

// ErrorCode represents the category of error
type ErrorCode string

const (
	// Configuration errors
	ErrConfigSection    ErrorCode = "CONFIG_SECTION"
	ErrConfigOption     ErrorCode = "CONFIG_OPTION"
	ErrConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// G-code parsing errors
	ErrGCodeUnknownInstruction ErrorCode = "GCODE_UNKNOWN_INSTRUCTION"
	ErrGCodeStandalone         ErrorCode = "GCODE_STANDALONE"
	ErrGCodeNumeric            ErrorCode = "GCODE_NUMERIC"
	ErrGCodeRead               ErrorCode = "GCODE_READ"

	// Background task errors
	ErrTaskBusy      ErrorCode = "TASK_BUSY"
	ErrTaskCancelled ErrorCode = "TASK_CANCELLED"
	ErrTaskPanic     ErrorCode = "TASK_PANIC"

	// Process tracker errors
	ErrRegistryMiss ErrorCode = "REGISTRY_MISS"

	// Job file errors
	ErrJobLoad     ErrorCode = "JOB_LOAD"
	ErrJobValidate ErrorCode = "JOB_VALIDATE"

	// Machine output errors
	ErrSerial ErrorCode = "SERIAL"
)

// HostError is the unified error type for the slicer core
type HostError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Line is the 0-based line index in the parsed input (-1 if not applicable)
	Line int

	// Token is the offending text (if applicable)
	Token string

	// Section is the config section or context
	Section string

	// Option is the config option name (if applicable)
	Option string

	// Err wraps the underlying error
	Err error

	// Context provides additional context
	Context map[string]interface{}
}

// Error implements the error interface
func (e *HostError) Error() string {
	switch {
	case e.Line >= 0 && e.Token != "":
		return fmt.Sprintf("[%s] line %d: %s (%q)", e.Code, e.Line, e.Message, e.Token)
	case e.Line >= 0:
		return fmt.Sprintf("[%s] line %d: %s", e.Code, e.Line, e.Message)
	case e.Option != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Option, e.Message)
	case e.Section != "":
		return fmt.Sprintf("[%s:%s] %s", e.Code, e.Section, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *HostError) Unwrap() error {
	return e.Err
}

// SetLine sets the line index
func (e *HostError) SetLine(line int) *HostError {
	e.Line = line
	return e
}

// SetToken sets the offending token
func (e *HostError) SetToken(token string) *HostError {
	e.Token = token
	return e
}

// SetSection sets the context section
func (e *HostError) SetSection(section string) *HostError {
	e.Section = section
	return e
}

// SetOption sets the config option
func (e *HostError) SetOption(option string) *HostError {
	e.Option = option
	return e
}

// SetContext adds additional context
func (e *HostError) SetContext(key string, value interface{}) *HostError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new HostError
func New(code ErrorCode, message string) *HostError {
	return &HostError{
		Code:    code,
		Message: message,
		Line:    -1,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *HostError {
	e := New(code, message)
	e.Err = err
	return e
}

// G-code errors

// UnknownInstructionError reports a primary token missing from the instruction table
func UnknownInstructionError(line int, token string) *HostError {
	return New(ErrGCodeUnknownInstruction, "unknown instruction").
		SetLine(line).
		SetToken(token)
}

// StandaloneError reports a sub-instruction that cannot be used as a child,
// or a standalone primary instruction that carries axis deltas
func StandaloneError(line int, token string, reason string) *HostError {
	return New(ErrGCodeStandalone, reason).
		SetLine(line).
		SetToken(token)
}

// NumericError reports an axis parameter whose value is not a number
func NumericError(line int, token string, err error) *HostError {
	e := Wrap(err, ErrGCodeNumeric, "malformed numeric parameter")
	return e.SetLine(line).SetToken(token)
}

// Task errors

// TaskBusyError is returned when a task is started while a run is in flight
func TaskBusyError(name string) *HostError {
	return New(ErrTaskBusy, fmt.Sprintf("task %s already running", name))
}

// TaskCancelledError reports a run that was killed before it delivered
func TaskCancelledError(name string) *HostError {
	return New(ErrTaskCancelled, fmt.Sprintf("task %s cancelled", name))
}

// Registry errors

// RegistryMissError reports a lookup of an unregistered process
func RegistryMissError(kind fmt.Stringer, name string) *HostError {
	return New(ErrRegistryMiss, fmt.Sprintf("no process %q registered for %s", name, kind)).
		SetContext("kind", kind.String()).
		SetContext("name", name)
}

// Config errors

// ConfigValidationError creates an error for config validation failure
func ConfigValidationError(section, option string, reason string) *HostError {
	return New(ErrConfigValidation, fmt.Sprintf("option '%s' in section '%s': %s", option, section, reason)).
		SetSection(section).
		SetOption(option)
}

// Job errors

// JobLoadError wraps a failure to read or decode a job file
func JobLoadError(path string, err error) *HostError {
	return Wrap(err, ErrJobLoad, fmt.Sprintf("failed to load job %s", path)).
		SetContext("path", path)
}

// JobValidateError reports an inconsistent job description
func JobValidateError(message string) *HostError {
	return New(ErrJobValidate, message)
}

// FromPanic converts a recovered panic value to a HostError carrying
// the stack of the panicking goroutine.
func FromPanic(r interface{}) *HostError {
	var e *HostError
	switch x := r.(type) {
	case runtime.Error:
		e = Wrap(x, ErrTaskPanic, "panic: "+x.Error())
	case error:
		e = Wrap(x, ErrTaskPanic, "panic: "+x.Error())
	case string:
		e = New(ErrTaskPanic, "panic: "+x)
	default:
		e = New(ErrTaskPanic, fmt.Sprintf("panic: %v", x))
	}
	buf := make([]byte, 4096)
	buf = buf[:runtime.Stack(buf, false)]
	return e.SetContext("stack", string(buf))
}

// Is checks if err, or any error it wraps, is a HostError with the given code
func Is(err error, code ErrorCode) bool {
	var hostErr *HostError
	if stderrors.As(err, &hostErr) {
		return hostErr.Code == code
	}
	return false
}

// As finds the first HostError in err's chain
func As(err error) (*HostError, bool) {
	var hostErr *HostError
	ok := stderrors.As(err, &hostErr)
	return hostErr, ok
}

// IsGCode checks if error is a G-code parse error
func IsGCode(err error) bool {
	return Is(err, ErrGCodeUnknownInstruction) ||
		Is(err, ErrGCodeStandalone) ||
		Is(err, ErrGCodeNumeric)
}

// IsTask checks if error is a background task error
func IsTask(err error) bool {
	return Is(err, ErrTaskBusy) ||
		Is(err, ErrTaskCancelled) ||
		Is(err, ErrTaskPanic)
}
