package device

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"alcyxob/fitness-assessment/internal/logger"
)

// SoundDir is where ALSA exposes capture devices.
const SoundDir = "/dev/snd"

// NodePermissions treats camera and microphone access as granted when the
// current user can open the device nodes.
type NodePermissions struct {
	VideoDevice string
	SoundDir    string

	log *logger.Logger
}

func NewNodePermissions(videoDevice string, log *logger.Logger) *NodePermissions {
	return &NodePermissions{VideoDevice: videoDevice, SoundDir: SoundDir, log: log}
}

// Request reports false without error when a node exists but cannot be
// opened. A missing node is an error.
func (p *NodePermissions) Request(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, node := range []string{p.VideoDevice, p.SoundDir} {
		f, err := os.Open(node)
		if err == nil {
			_ = f.Close()
			continue
		}
		if errors.Is(err, fs.ErrPermission) {
			p.log.Warn("device access denied", "node", node)
			return false, nil
		}
		return false, err
	}
	return true, nil
}
