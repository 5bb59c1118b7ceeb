package capture

import "fmt"

// Phase is the position of a capture attempt in its lifecycle. Phases only
// move forward: Idle, PermissionPending, Countdown, Recording, Finalizing,
// then Completed or Failed.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePermissionPending
	PhaseCountdown
	PhaseRecording
	PhaseFinalizing
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePermissionPending:
		return "permission_pending"
	case PhaseCountdown:
		return "countdown"
	case PhaseRecording:
		return "recording"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// InFlight reports whether the camera is (or is about to stop) capturing.
func (p Phase) InFlight() bool {
	return p == PhaseRecording || p == PhaseFinalizing
}

// canAdvance allows a transition only to a later phase, with Failed
// reachable from any non-terminal phase.
func canAdvance(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseFailed {
		return true
	}
	switch from {
	case PhaseIdle:
		return to == PhasePermissionPending
	case PhasePermissionPending:
		return to == PhaseCountdown
	case PhaseCountdown:
		return to == PhaseCountdown || to == PhaseRecording
	case PhaseRecording:
		return to == PhaseRecording || to == PhaseFinalizing
	case PhaseFinalizing:
		return to == PhaseCompleted
	}
	return false
}
