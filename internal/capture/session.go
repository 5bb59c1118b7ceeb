package capture

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	SessionID          string
	ExerciseID         string
	Phase              Phase
	CountdownRemaining int
	RecordingRemaining int
	ElapsedSeconds     int
	At                 time.Time
}

// Session is one capture attempt for a single exercise. It is created Idle
// and ends Completed or Failed; a restart creates a new Session.
type Session struct {
	id         string
	exerciseID string

	mu        sync.Mutex
	phase     Phase
	countdown int
	remaining int
	elapsed   int
	rec       Recording
	video     *Video
	err       error
	history   []Snapshot
	cancel    context.CancelFunc
	done      chan struct{}
}

func newSession(exerciseID string, now time.Time) *Session {
	s := &Session{
		id:         uuid.NewString(),
		exerciseID: exerciseID,
		phase:      PhaseIdle,
		done:       make(chan struct{}),
	}
	s.history = append(s.history, s.snapshotLocked(now))
	return s
}

func (s *Session) ID() string         { return s.id }
func (s *Session) ExerciseID() string { return s.exerciseID }

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(time.Now())
}

// History returns every state the session has passed through, in order.
func (s *Session) History() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.history))
	copy(out, s.history)
	return out
}

// Video returns the finished recording, nil unless Completed.
func (s *Session) Video() *Video {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.video == nil {
		return nil
	}
	v := *s.video
	return &v
}

// Err returns the failure cause, nil unless Failed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session reaches a terminal phase.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until the session is terminal and returns its outcome.
func (s *Session) Wait(ctx context.Context) (Video, error) {
	select {
	case <-s.done:
	case <-ctx.Done():
		return Video{}, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return Video{}, s.err
	}
	if s.video == nil {
		return Video{}, ErrSessionDiscarded
	}
	return *s.video, nil
}

func (s *Session) snapshotLocked(now time.Time) Snapshot {
	return Snapshot{
		SessionID:          s.id,
		ExerciseID:         s.exerciseID,
		Phase:              s.phase,
		CountdownRemaining: s.countdown,
		RecordingRemaining: s.remaining,
		ElapsedSeconds:     s.elapsed,
		At:                 now,
	}
}

// advanceLocked moves to phase `to`, applying mutate before the snapshot is
// recorded. Callers hold s.mu.
func (s *Session) advanceLocked(to Phase, now time.Time, mutate func()) (Snapshot, error) {
	if !canAdvance(s.phase, to) {
		return Snapshot{}, ErrInvalidTransition
	}
	s.phase = to
	if mutate != nil {
		mutate()
	}
	snap := s.snapshotLocked(now)
	s.history = append(s.history, snap)
	if to.Terminal() {
		if s.cancel != nil {
			s.cancel()
		}
		close(s.done)
	}
	return snap, nil
}

// failLocked moves a non-terminal session to Failed. It reports false when
// the session had already finished.
func (s *Session) failLocked(cause error, now time.Time) (Snapshot, bool) {
	snap, err := s.advanceLocked(PhaseFailed, now, func() { s.err = cause })
	return snap, err == nil
}
