package capture

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"alcyxob/fitness-assessment/internal/logger"

	"github.com/facebookgo/clock"
)

const (
	DefaultCountdown = 3
	DefaultDuration  = 60 // seconds

	announceTimeout = 500 * time.Millisecond
	stopTimeout     = 10 * time.Second
)

// Config bounds one capture attempt.
type Config struct {
	Countdown int           // pre-roll ticks before recording starts
	Duration  int           // recording length in ticks; auto-stop fires at zero
	Tick      time.Duration // length of one tick, one second outside tests
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock driving countdown and auto-stop.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

// WithAnnouncer enables spoken countdown ticks.
func WithAnnouncer(a Announcer) Option {
	return func(c *Controller) { c.announcer = a }
}

// WithObserver registers a callback invoked after every phase change.
// It runs on the goroutine that made the change and must not block.
func WithObserver(fn func(Snapshot)) Option {
	return func(c *Controller) { c.observer = fn }
}

// Controller owns camera access. It runs the countdown, the bounded recording
// and the stop of each capture attempt, and guarantees that at most one
// session holds the camera.
type Controller struct {
	cfg       Config
	perms     Permissions
	camera    Camera
	announcer Announcer
	clock     clock.Clock
	observer  func(Snapshot)
	log       *logger.Logger

	mu     sync.Mutex
	active *Session
}

// NewController creates a Controller. Zero config values fall back to a
// 3-tick countdown, a 60-tick recording and one-second ticks.
func NewController(cfg Config, perms Permissions, camera Camera, log *logger.Logger, opts ...Option) *Controller {
	if cfg.Countdown <= 0 {
		cfg.Countdown = DefaultCountdown
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	c := &Controller{
		cfg:       cfg,
		perms:     perms,
		camera:    camera,
		announcer: silentAnnouncer{},
		clock:     clock.New(),
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestPermissions asks for camera and microphone access.
func (c *Controller) RequestPermissions(ctx context.Context) (bool, error) {
	granted, err := c.perms.Request(ctx)
	if err != nil {
		c.log.Warn("permission request failed", "error", err)
		return false, err
	}
	if !granted {
		c.log.Warn("camera or microphone permission denied")
	}
	return granted, nil
}

// NewSession creates an Idle session for exerciseID without touching the
// camera.
func (c *Controller) NewSession(exerciseID string) *Session {
	return newSession(exerciseID, c.clock.Now())
}

// Active returns the most recently started session, or nil.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// StartCapture creates a session for exerciseID and begins it.
func (c *Controller) StartCapture(ctx context.Context, exerciseID string) (*Session, error) {
	s := c.NewSession(exerciseID)
	if err := c.Begin(ctx, s); err != nil {
		if s.Phase() == PhaseIdle {
			return nil, err
		}
		return s, err
	}
	return s, nil
}

// Begin moves an Idle session through permission acquisition into the
// countdown. It fails with ErrSessionBusy, leaving every session untouched,
// while another session is past Idle and not yet finished.
func (c *Controller) Begin(ctx context.Context, s *Session) error {
	c.mu.Lock()
	if a := c.active; a != nil && a != s {
		if p := a.Phase(); p != PhaseIdle && !p.Terminal() {
			c.mu.Unlock()
			c.log.Warn("capture rejected, camera busy", "exercise_id", s.exerciseID, "active_phase", p.String())
			return ErrSessionBusy
		}
	}
	s.mu.Lock()
	snap, err := s.advanceLocked(PhasePermissionPending, c.clock.Now(), nil)
	s.mu.Unlock()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.active = s
	c.mu.Unlock()
	c.notify(snap)

	granted, err := c.RequestPermissions(ctx)
	if err != nil || !granted {
		cause := ErrPermissionDenied
		if err != nil {
			cause = fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		}
		c.fail(s, cause)
		return cause
	}

	taskCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	snap, err = s.advanceLocked(PhaseCountdown, c.clock.Now(), func() {
		s.countdown = c.cfg.Countdown
		s.cancel = cancel
	})
	s.mu.Unlock()
	if err != nil {
		// Discarded while permissions were pending.
		cancel()
		if cause := s.Err(); cause != nil {
			return cause
		}
		return err
	}
	c.notify(snap)
	c.announceCountdown(snap.CountdownRemaining)

	go c.run(taskCtx, s)
	return nil
}

// StopCapture stops the active session. See Stop.
func (c *Controller) StopCapture(ctx context.Context) (Video, error) {
	s := c.Active()
	if s == nil {
		return Video{}, ErrNoSession
	}
	return c.Stop(ctx, s)
}

// Stop requests a manual stop of a recording session and waits for the
// outcome. A stop racing the automatic one never stops the hardware twice:
// whichever arrives second finds the session Finalizing and only waits.
func (c *Controller) Stop(ctx context.Context, s *Session) (Video, error) {
	switch s.Phase() {
	case PhaseRecording:
		c.finalize(s)
	case PhaseFinalizing, PhaseCompleted, PhaseFailed:
	default:
		return Video{}, ErrNotRecording
	}
	return s.Wait(ctx)
}

// Discard abandons a session that is not recording: a pending countdown is
// cancelled and a finished recording handle is dropped. Recording sessions
// are refused with ErrSessionBusy.
func (c *Controller) Discard(s *Session) error {
	s.mu.Lock()
	if s.phase.InFlight() {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	var (
		snap   Snapshot
		failed bool
	)
	if !s.phase.Terminal() {
		snap, failed = s.failLocked(ErrSessionDiscarded, c.clock.Now())
	}
	s.video = nil
	s.mu.Unlock()
	if failed {
		c.notify(snap)
	}

	c.mu.Lock()
	if c.active == s {
		c.active = nil
	}
	c.mu.Unlock()
	c.log.Debug("capture session discarded", "session_id", s.id, "exercise_id", s.exerciseID)
	return nil
}

// run drives countdown and recording ticks until the session stops or the
// task is cancelled.
func (c *Controller) run(ctx context.Context, s *Session) {
	ticker := c.clock.Ticker(c.cfg.Tick)
	defer ticker.Stop()

	var (
		faults   <-chan error
		watching bool
	)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-faults:
			if !ok {
				faults = nil
				continue
			}
			c.fail(s, &RecordingError{Op: "record", Err: err})
			return
		case <-ticker.C:
			if finished := c.tick(ctx, s); finished {
				return
			}
			if !watching {
				if rec := s.recording(); rec != nil {
					faults = rec.Faults()
					watching = true
				}
			}
		}
	}
}

// tick applies one clock tick. It reports true once the task has nothing
// left to schedule.
func (c *Controller) tick(ctx context.Context, s *Session) bool {
	s.mu.Lock()
	now := c.clock.Now()
	switch s.phase {
	case PhaseCountdown:
		if s.countdown > 0 {
			snap, _ := s.advanceLocked(PhaseCountdown, now, func() { s.countdown-- })
			s.mu.Unlock()
			c.notify(snap)
			c.announceCountdown(snap.CountdownRemaining)
			return false
		}
		// The lock is held across Start so a stop request can never see
		// Recording without a hardware handle.
		rec, err := c.camera.Start(context.WithoutCancel(ctx), s.exerciseID)
		if err != nil {
			snap, ok := s.failLocked(&RecordingError{Op: "start", Err: err}, now)
			s.mu.Unlock()
			if ok {
				c.notify(snap)
				c.log.Error("recording start failed", "session_id", s.id, "error", err)
			}
			return true
		}
		snap, _ := s.advanceLocked(PhaseRecording, now, func() {
			s.rec = rec
			s.remaining = c.cfg.Duration
		})
		s.mu.Unlock()
		c.notify(snap)
		return false

	case PhaseRecording:
		snap, _ := s.advanceLocked(PhaseRecording, now, func() {
			s.remaining--
			s.elapsed++
		})
		s.mu.Unlock()
		c.notify(snap)
		if snap.RecordingRemaining <= 0 {
			c.finalize(s)
			return true
		}
		return false

	default:
		s.mu.Unlock()
		return true
	}
}

// finalize performs the single hardware stop of a session. Only the caller
// that moves the session from Recording to Finalizing proceeds.
func (c *Controller) finalize(s *Session) bool {
	s.mu.Lock()
	if s.phase != PhaseRecording {
		s.mu.Unlock()
		return false
	}
	snap, _ := s.advanceLocked(PhaseFinalizing, c.clock.Now(), nil)
	rec, cancel := s.rec, s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.notify(snap)

	ctx, stop := context.WithTimeout(context.Background(), stopTimeout)
	defer stop()
	video, err := rec.Stop(ctx)

	s.mu.Lock()
	now := c.clock.Now()
	var ok bool
	if err != nil {
		snap, ok = s.failLocked(&RecordingError{Op: "stop", Err: err}, now)
	} else {
		var advErr error
		snap, advErr = s.advanceLocked(PhaseCompleted, now, func() { s.video = &video })
		ok = advErr == nil
	}
	s.mu.Unlock()

	if !ok {
		return true
	}
	c.notify(snap)
	if err != nil {
		c.log.Error("recording stop failed", "session_id", s.id, "error", err)
	} else {
		c.log.Info("recording completed", "session_id", s.id, "exercise_id", s.exerciseID,
			"path", video.Path, "elapsed_seconds", snap.ElapsedSeconds)
	}
	return true
}

func (c *Controller) fail(s *Session, cause error) {
	s.mu.Lock()
	snap, ok := s.failLocked(cause, c.clock.Now())
	s.mu.Unlock()
	if !ok {
		return
	}
	c.notify(snap)
	c.log.Warn("capture session failed", "session_id", s.id, "exercise_id", s.exerciseID, "error", cause)
}

func (c *Controller) notify(snap Snapshot) {
	c.log.Debug("capture phase", "session_id", snap.SessionID, "phase", snap.Phase.String(),
		"countdown", snap.CountdownRemaining, "remaining", snap.RecordingRemaining)
	if c.observer != nil {
		c.observer(snap)
	}
}

// announceCountdown speaks a tick after the transition is already committed,
// so a slow or broken speech engine cannot hold the phase back.
func (c *Controller) announceCountdown(n int) {
	text := strconv.Itoa(n)
	if n == 0 {
		text = "Go!"
	}
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()
	if err := c.announcer.Announce(ctx, text); err != nil {
		c.log.Debug("countdown announcement failed", "text", text, "error", err)
	}
}

func (s *Session) recording() Recording {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec
}
