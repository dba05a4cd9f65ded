package buffer

import "errors"

var (
	ErrZeroCapacity  = errors.New("buffer capacity must be greater than zero")
	ErrAlreadyFrozen = errors.New("capture buffer is already frozen")
	ErrNotFrozen     = errors.New("capture buffer is not frozen")
	ErrDrained       = errors.New("capture buffer was already drained")
)
