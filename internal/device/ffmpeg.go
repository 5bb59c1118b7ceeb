package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"alcyxob/fitness-assessment/internal/capture"
	"alcyxob/fitness-assessment/internal/logger"
)

// FFmpegCamera records from a V4L2 camera and an ALSA microphone into an MP4
// file by driving an ffmpeg child process.
//
// REQUIRED BINARY: ffmpeg with libx264 and aac.
type FFmpegCamera struct {
	FFmpegPath  string
	VideoDevice string // e.g. /dev/video0
	AudioDevice string // ALSA name, e.g. "default"
	OutputDir   string

	log *logger.Logger
}

func NewFFmpegCamera(ffmpegPath, videoDevice, audioDevice, outputDir string, log *logger.Logger) *FFmpegCamera {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &FFmpegCamera{
		FFmpegPath:  ffmpegPath,
		VideoDevice: videoDevice,
		AudioDevice: audioDevice,
		OutputDir:   outputDir,
		log:         log.With("component", "FFmpegCamera"),
	}
}

// Start spawns ffmpeg. The process is not bound to ctx: it lives until Stop.
func (f *FFmpegCamera) Start(ctx context.Context, exerciseID string) (capture.Recording, error) {
	if _, err := exec.LookPath(f.FFmpegPath); err != nil {
		return nil, fmt.Errorf("missing required binary %q in PATH: %w", f.FFmpegPath, err)
	}
	if err := os.MkdirAll(f.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out := filepath.Join(f.OutputDir, fmt.Sprintf("exercise-%s-%d.mp4", exerciseID, time.Now().Unix()))

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "v4l2", "-i", f.VideoDevice,
		"-f", "alsa", "-i", f.AudioDevice,
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		out,
	}
	cmd := exec.Command(f.FFmpegPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	f.log.Info("recording started", "exercise_id", exerciseID, "path", out, "pid", cmd.Process.Pid)

	r := &ffmpegRecording{
		cmd:     cmd,
		stdin:   stdin,
		stderr:  &stderr,
		path:    out,
		started: time.Now(),
		exited:  make(chan struct{}),
		faults:  make(chan error, 1),
	}
	go r.wait()
	return r, nil
}

type ffmpegRecording struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stderr  *bytes.Buffer
	path    string
	started time.Time

	mu       sync.Mutex
	stopping bool
	exitErr  error
	exited   chan struct{}
	faults   chan error
}

func (r *ffmpegRecording) wait() {
	err := r.cmd.Wait()
	r.mu.Lock()
	r.exitErr = err
	stopping := r.stopping
	r.mu.Unlock()
	close(r.exited)

	if stopping {
		return
	}
	if err == nil {
		err = errors.New("ffmpeg exited before stop")
	}
	r.faults <- fmt.Errorf("%w: %s", err, r.stderr.String())
}

func (r *ffmpegRecording) Faults() <-chan error { return r.faults }

// Stop asks ffmpeg to finish the file by writing "q" to its stdin and kills
// it if it has not exited when ctx expires.
func (r *ffmpegRecording) Stop(ctx context.Context) (capture.Video, error) {
	r.mu.Lock()
	r.stopping = true
	r.mu.Unlock()

	select {
	case <-r.exited:
		// Died on its own; the fault has already been reported.
		return capture.Video{}, fmt.Errorf("ffmpeg not running: %v", r.exitErr)
	default:
	}

	_, _ = io.WriteString(r.stdin, "q\n")
	_ = r.stdin.Close()

	select {
	case <-r.exited:
	case <-ctx.Done():
		_ = r.cmd.Process.Kill()
		<-r.exited
		return capture.Video{}, fmt.Errorf("ffmpeg stop: %w", ctx.Err())
	}

	r.mu.Lock()
	exitErr := r.exitErr
	r.mu.Unlock()
	if exitErr != nil {
		return capture.Video{}, fmt.Errorf("ffmpeg: %w: %s", exitErr, r.stderr.String())
	}
	if _, err := os.Stat(r.path); err != nil {
		return capture.Video{}, fmt.Errorf("recording missing: %w", err)
	}
	return capture.Video{Path: r.path, Duration: time.Since(r.started)}, nil
}
