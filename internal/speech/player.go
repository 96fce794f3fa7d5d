package speech

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"chatd/internal/common/fsutil"
)

// Player outputs synthesized audio.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// CommandPlayer writes audio to a temporary file and runs an external player
// on it, e.g. "mpv --no-video" or "afplay".
type CommandPlayer struct {
	Command string
}

func (p CommandPlayer) Play(ctx context.Context, audio []byte) error {
	args := strings.Fields(p.Command)
	if len(args) == 0 {
		return fmt.Errorf("no player command configured")
	}
	f, err := os.CreateTemp("", "chatd-speech-*.mp3")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(audio); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, args[0], append(args[1:], f.Name())...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// FilePlayer saves each clip as a numbered .mp3 file in Dir.
type FilePlayer struct {
	Dir string

	mu   sync.Mutex
	next int
}

func (p *FilePlayer) Play(_ context.Context, audio []byte) error {
	dir, err := fsutil.EnsureDir(p.Dir)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.next++
	n := p.next
	p.mu.Unlock()
	name := filepath.Join(dir, fmt.Sprintf("reply-%04d.mp3", n))
	return os.WriteFile(name, audio, 0o644)
}
