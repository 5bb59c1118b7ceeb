package capture

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("camera or microphone permission denied")
	ErrSessionBusy       = errors.New("another capture session is in progress")
	ErrNotRecording      = errors.New("capture session is not recording")
	ErrNoSession         = errors.New("no active capture session")
	ErrSessionDiscarded  = errors.New("capture session discarded")
	ErrInvalidTransition = errors.New("invalid capture phase transition")
	// ErrRecording matches every *RecordingError via errors.Is.
	ErrRecording = errors.New("recording failed")
)

// RecordingError carries a camera hardware fault. Faults are reported as-is
// and never retried.
type RecordingError struct {
	Op  string // "start", "record" or "stop"
	Err error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("recording %s: %v", e.Op, e.Err)
}

func (e *RecordingError) Unwrap() error { return e.Err }

func (e *RecordingError) Is(target error) bool { return target == ErrRecording }
