package recorder

import "errors"

var (
	ErrNotGrabbing        = errors.New("no grab in progress")
	ErrAlreadyGrabbing    = errors.New("grab already in progress")
	ErrNotRunning         = errors.New("capture is not running")
	ErrNoPendingRecording = errors.New("no unsaved recording")
)
