package device

import (
	"context"
	"fmt"
	"os/exec"
)

// Speaker announces text through a speech synthesizer such as espeak.
type Speaker struct {
	Path string
}

// Announce starts the synthesizer and returns without waiting for the
// utterance to finish.
func (s Speaker) Announce(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path
	if path == "" {
		path = "espeak"
	}
	cmd := exec.Command(path, text)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", path, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
