package audio

import "errors"

var (
	ErrNoDevices         = errors.New("no audio devices available")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrUnsupportedFormat = errors.New("unsupported stream format")
	ErrBackendClosed     = errors.New("audio backend closed")
	ErrXRun              = errors.New("stream xrun")
)
