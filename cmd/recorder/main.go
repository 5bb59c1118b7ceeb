package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"alcyxob/fitness-assessment/internal/capture"
	"alcyxob/fitness-assessment/internal/config"
	"alcyxob/fitness-assessment/internal/device"
	"alcyxob/fitness-assessment/internal/domain"
	"alcyxob/fitness-assessment/internal/logger"
	"alcyxob/fitness-assessment/internal/sequencer"
	"alcyxob/fitness-assessment/internal/submit"

	"github.com/redis/go-redis/v9"
)

// Server-side analysis alone may take two minutes.
const submitTimeout = 5 * time.Minute

func main() {
	cfg, err := config.LoadRecorderConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not load recorder config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("recorder stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.RecorderConfig, log *logger.Logger) error {
	client, err := submit.New(cfg.ServerURL, cfg.Token, submitTimeout)
	if err != nil {
		return err
	}

	opts := []capture.Option{capture.WithObserver(printSnapshot)}
	if _, err := exec.LookPath(cfg.SpeechPath); err == nil {
		opts = append(opts, capture.WithAnnouncer(device.Speaker{Path: cfg.SpeechPath}))
	} else {
		log.Warn("speech synthesizer not found, countdown is silent", "path", cfg.SpeechPath)
	}
	controller := capture.NewController(
		capture.Config{Countdown: cfg.Countdown, Duration: cfg.Duration, Tick: cfg.Tick},
		device.NewNodePermissions(cfg.VideoDevice, log),
		device.NewFFmpegCamera(cfg.FFmpegPath, cfg.VideoDevice, cfg.AudioDevice, cfg.OutputDir, log),
		log,
		opts...,
	)

	store, closeStore := progressStore(ctx, cfg.Redis, log)
	defer closeStore()

	userID := cfg.UserID
	if userID == "" {
		userID = "local"
	}
	battery := domain.Battery()
	ids := make([]string, len(battery))
	for i, ex := range battery {
		ids[i] = ex.ID
	}
	seq, err := sequencer.New(ctx, userID, ids, controller, store, log)
	if err != nil {
		return err
	}

	lines := readLines(os.Stdin)
	for {
		p := seq.Progress()
		if p.Complete {
			fmt.Println("All exercises recorded. Type 'r' to start over or Enter to quit.")
			line, err := nextLine(ctx, lines)
			if err != nil || line != "r" {
				return err
			}
			if _, err := seq.Reset(ctx); err != nil {
				return err
			}
			continue
		}

		session := seq.Session()
		def, _ := domain.ExerciseByID(session.ExerciseID())
		fmt.Printf("\nExercise %d/%d: %s\n%s\n", p.Position(), p.Total(), def.Title, def.Instructions)
		fmt.Println("Press Enter to start, 's' to skip, 'r' to restart the battery.")
		line, err := nextLine(ctx, lines)
		if err != nil {
			return err
		}
		switch line {
		case "s":
			if _, err := seq.Advance(ctx); err != nil {
				log.Warn("could not skip exercise", "error", err)
			}
			continue
		case "r":
			if _, err := seq.Reset(ctx); err != nil {
				log.Warn("could not restart battery", "error", err)
			}
			continue
		}

		video, err := record(ctx, controller, session, lines)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Printf("Recording failed: %v\n", err)
			if _, err := seq.RestartCurrent(ctx); err != nil {
				log.Warn("could not restart exercise", "error", err)
			}
			continue
		}

		fmt.Println("Uploading for analysis...")
		res, err := client.PerformOne(ctx, submit.Submission{ExerciseType: def.Key, VideoPath: video.Path})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("submission failed", "exercise", def.Key, "video", video.Path, "error", err)
			fmt.Printf("Upload failed: %v\nThe recording is kept at %s. Record again.\n", err, video.Path)
			if _, err := seq.RestartCurrent(ctx); err != nil {
				log.Warn("could not restart exercise", "error", err)
			}
			continue
		}
		fmt.Printf("%s: %d repetitions (%s)\n", def.Title, res.Assessment.RepetitionCount, res.Assessment.Verification)

		if _, err := seq.Advance(ctx); err != nil {
			log.Warn("could not advance", "error", err)
		}
	}
}

// record runs one capture. Enter stops early; a signal stops the recording
// before returning.
func record(ctx context.Context, controller *capture.Controller, s *capture.Session, lines <-chan string) (capture.Video, error) {
	if err := controller.Begin(ctx, s); err != nil {
		return capture.Video{}, err
	}
	fmt.Println("Press Enter to stop early.")
	for {
		select {
		case <-s.Done():
			return s.Wait(context.Background())
		case _, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if s.Phase() != capture.PhaseRecording {
				continue
			}
			return controller.Stop(context.Background(), s)
		case <-ctx.Done():
			if s.Phase() == capture.PhaseRecording {
				controller.Stop(context.Background(), s)
			} else {
				controller.Discard(s)
			}
			return capture.Video{}, ctx.Err()
		}
	}
}

func progressStore(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (sequencer.ProgressStore, func()) {
	if cfg.Address == "" {
		return sequencer.NewMemoryStore(), func() {}
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, progress kept in memory", "address", cfg.Address, "error", err)
		rdb.Close()
		return sequencer.NewMemoryStore(), func() {}
	}
	return sequencer.NewRedisStore(rdb), func() { rdb.Close() }
}

func readLines(f *os.File) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			out <- strings.ToLower(strings.TrimSpace(sc.Text()))
		}
	}()
	return out
}

func nextLine(ctx context.Context, lines <-chan string) (string, error) {
	select {
	case line, ok := <-lines:
		if !ok {
			return "", errors.New("stdin closed")
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func printSnapshot(s capture.Snapshot) {
	switch s.Phase {
	case capture.PhaseCountdown:
		fmt.Printf("  %d...\n", s.CountdownRemaining)
	case capture.PhaseRecording:
		if s.ElapsedSeconds == 0 {
			fmt.Println("  Go!")
		} else if s.RecordingRemaining%10 == 0 {
			fmt.Printf("  %ds left\n", s.RecordingRemaining)
		}
	case capture.PhaseFinalizing:
		fmt.Println("  Saving video...")
	}
}
