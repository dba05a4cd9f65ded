package monitor

import "errors"

var (
	ErrChannelMismatch = errors.New("channel count mismatch")
	ErrChunkSize       = errors.New("invalid chunk size")
	ErrInvalidRate     = errors.New("invalid sample rate")
	ErrUnknownQuality  = errors.New("unknown resampler quality")
)
