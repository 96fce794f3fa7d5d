package speech

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type stubSynth struct {
	mu    sync.Mutex
	texts []string
	err   error
	block chan struct{}
}

func (s *stubSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return []byte("audio:" + text), nil
}

type stubPlayer struct {
	mu     sync.Mutex
	played [][]byte
	err    error
}

func (p *stubPlayer) Play(_ context.Context, audio []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, audio)
	return p.err
}

func TestNarrator_DisabledWithoutSynth(t *testing.T) {
	defer goleak.VerifyNone(t)
	n := NewNarrator(nil, &stubPlayer{}, 0, zerolog.Nop())
	assert.False(t, n.Enabled())
	assert.Nil(t, n.Notices())
	n.Speak("hello")
	n.Wait()
	assert.Nil(t, n.Notices())

	var none *Narrator
	assert.Nil(t, none.Notices())
}

func TestNarrator_SpeakIsDetached(t *testing.T) {
	defer goleak.VerifyNone(t)
	synth := &stubSynth{block: make(chan struct{})}
	player := &stubPlayer{}
	n := NewNarrator(synth, player, time.Second, zerolog.Nop())

	returned := make(chan struct{})
	go func() {
		n.Speak("reply")
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Speak blocked on synthesis")
	}
	close(synth.block)
	n.Wait()
	require.Len(t, player.played, 1)
	assert.Equal(t, "audio:reply", string(player.played[0]))
}

func TestNarrator_FailureBecomesNotice(t *testing.T) {
	defer goleak.VerifyNone(t)
	n := NewNarrator(&stubSynth{err: errors.New("Quota exceeded")}, &stubPlayer{}, time.Second, zerolog.Nop())
	n.Speak("reply")
	n.Wait()
	select {
	case got := <-n.Notices():
		assert.Equal(t, "Sorry, I could not read the response out loud. Error: Quota exceeded", got.Text)
	default:
		t.Fatal("no notice")
	}

	p := &stubPlayer{err: errors.New("no audio device")}
	n = NewNarrator(&stubSynth{}, p, time.Second, zerolog.Nop())
	n.Speak("reply")
	n.Wait()
	got := <-n.Notices()
	assert.Contains(t, got.Text, "no audio device")
}

func TestNarrator_SkipsBlankText(t *testing.T) {
	synth := &stubSynth{}
	n := NewNarrator(synth, nil, time.Second, zerolog.Nop())
	n.Speak("   ")
	n.Wait()
	assert.Empty(t, synth.texts)
}

func TestFilePlayer_WritesNumberedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	p := &FilePlayer{Dir: dir}
	require.NoError(t, p.Play(context.Background(), []byte("a")))
	require.NoError(t, p.Play(context.Background(), []byte("b")))
	b, err := os.ReadFile(filepath.Join(dir, "reply-0002.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(b))
}

func TestCommandPlayer_RequiresCommand(t *testing.T) {
	assert.Error(t, CommandPlayer{}.Play(context.Background(), []byte("x")))
}
