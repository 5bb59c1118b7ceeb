package sequencer

import (
	"context"
	"errors"
	"sync"

	"alcyxob/fitness-assessment/internal/capture"
	"alcyxob/fitness-assessment/internal/logger"
)

var (
	ErrRecordingInProgress = errors.New("current exercise is still recording")
	ErrBatteryComplete     = errors.New("battery already complete")
	ErrEmptyBattery        = errors.New("battery has no exercises")
)

// Captures is the part of the capture controller the sequencer drives.
type Captures interface {
	NewSession(exerciseID string) *capture.Session
	Discard(s *capture.Session) error
}

// Sequencer walks one user through the exercise battery. It owns the
// Progress value and the capture session for the current exercise.
type Sequencer struct {
	userID   string
	captures Captures
	store    ProgressStore
	log      *logger.Logger

	mu       sync.Mutex
	progress Progress
	session  *capture.Session
}

// New resumes saved progress for userID when it was recorded against the
// same battery, otherwise it starts at the first exercise.
func New(ctx context.Context, userID string, exerciseIDs []string, captures Captures, store ProgressStore, log *logger.Logger) (*Sequencer, error) {
	if len(exerciseIDs) == 0 {
		return nil, ErrEmptyBattery
	}
	progress := NewProgress(exerciseIDs)
	saved, found, err := store.Load(ctx, userID)
	if err != nil {
		log.Warn("could not load battery progress, starting over", "user_id", userID, "error", err)
	} else if found && saved.sameBattery(exerciseIDs) && saved.valid() {
		progress = saved
	}

	s := &Sequencer{
		userID:   userID,
		captures: captures,
		store:    store,
		log:      log.With("component", "Sequencer"),
		progress: progress,
	}
	if id, ok := progress.Current(); ok {
		s.session = captures.NewSession(id)
	}
	s.log.Info("battery loaded", "user_id", userID, "position", progress.Position(),
		"total", progress.Total(), "complete", progress.Complete)
	return s, nil
}

// Progress returns a copy of the current progress.
func (s *Sequencer) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress.clone()
}

// Session returns the capture session for the current exercise, nil once the
// battery is complete.
func (s *Sequencer) Session() *capture.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// RestartCurrent discards the current session, recorded or not, and returns
// a fresh one for the same exercise.
func (s *Sequencer) RestartCurrent(ctx context.Context) (*capture.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.progress.Current()
	if !ok {
		return nil, ErrBatteryComplete
	}
	if err := s.releaseLocked("restart"); err != nil {
		return nil, err
	}
	s.session = s.captures.NewSession(id)
	s.log.Info("exercise restarted", "exercise_id", id, "position", s.progress.Position())
	return s.session, nil
}

// Advance moves to the next exercise and returns its fresh session. After the
// last exercise the battery becomes complete and the session is nil; calling
// Advance again changes nothing.
func (s *Sequencer) Advance(ctx context.Context) (*capture.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.progress.Complete {
		return nil, nil
	}
	if err := s.releaseLocked("advance"); err != nil {
		return nil, err
	}
	s.progress = s.progress.next()
	s.save(ctx)

	id, ok := s.progress.Current()
	if !ok {
		s.session = nil
		s.log.Info("battery complete", "user_id", s.userID, "total", s.progress.Total())
		return nil, nil
	}
	s.session = s.captures.NewSession(id)
	s.log.Info("advanced to next exercise", "exercise_id", id, "position", s.progress.Position())
	return s.session, nil
}

// Reset starts the battery over from the first exercise.
func (s *Sequencer) Reset(ctx context.Context) (*capture.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.releaseLocked("reset"); err != nil {
		return nil, err
	}
	s.progress = NewProgress(s.progress.Exercises)
	s.save(ctx)
	id, _ := s.progress.Current()
	s.session = s.captures.NewSession(id)
	return s.session, nil
}

// releaseLocked discards the current session unless it holds an in-flight
// recording.
func (s *Sequencer) releaseLocked(op string) error {
	if s.session == nil {
		return nil
	}
	if s.session.Phase().InFlight() {
		s.log.Warn("ignored while recording", "op", op, "exercise_id", s.session.ExerciseID())
		return ErrRecordingInProgress
	}
	if err := s.captures.Discard(s.session); err != nil {
		if errors.Is(err, capture.ErrSessionBusy) {
			s.log.Warn("ignored while recording", "op", op, "exercise_id", s.session.ExerciseID())
			return ErrRecordingInProgress
		}
		return err
	}
	return nil
}

func (s *Sequencer) save(ctx context.Context) {
	if err := s.store.Save(ctx, s.userID, s.progress); err != nil {
		s.log.Warn("could not save battery progress", "user_id", s.userID, "error", err)
	}
}
