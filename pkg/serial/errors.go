package serial

import "github.com/GodGotzi/fiberslice-5d-sub001/pkg/errors"

// Common errors
var (
	ErrTimeout = errors.New(errors.ErrSerial, "operation timed out")
	ErrClosed  = errors.New(errors.ErrSerial, "port closed")
)
