package capture

import (
	"context"
	"time"
)

// Video is the handle of a finished recording.
type Video struct {
	Path     string
	Duration time.Duration
}

// Permissions asks the platform for camera and microphone access.
type Permissions interface {
	Request(ctx context.Context) (granted bool, err error)
}

// Camera starts hardware capture. Access to the camera is exclusive.
type Camera interface {
	Start(ctx context.Context, exerciseID string) (Recording, error)
}

// Recording is an in-progress hardware capture.
//
// Stop must be called at most once; the controller guarantees that. Faults
// delivers an asynchronous hardware error while recording and may be nil.
type Recording interface {
	Stop(ctx context.Context) (Video, error)
	Faults() <-chan error
}

// Announcer speaks countdown ticks. Failures are ignored by the controller.
type Announcer interface {
	Announce(ctx context.Context, text string) error
}

type silentAnnouncer struct{}

func (silentAnnouncer) Announce(context.Context, string) error { return nil }
