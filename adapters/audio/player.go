package audio

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"

	"github.com/fablebox/server/domain/repositories"
)

// DefaultClipDuration caps how long a single cue clip may play. Clips are
// cut off past this point so a long track cannot smear across the next
// lines of the story.
const DefaultClipDuration = 6 * time.Second

// BeepPlayer plays audio clips through the local speaker using beep.
// At most one clip plays at a time; triggers that arrive while a clip is
// running are rejected with ErrPlayerBusy.
type BeepPlayer struct {
	root         string
	clipDuration time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	playing bool
}

// NewBeepPlayer creates a player rooted at the audio clip directory
func NewBeepPlayer(root string, logger *zap.Logger) *BeepPlayer {
	return &BeepPlayer{
		root:         root,
		clipDuration: DefaultClipDuration,
		logger:       logger,
	}
}

// PlayRandom picks a random clip from dir (relative to the audio root) and
// plays it in the background. It returns the chosen file name immediately;
// the player stays busy until the clip ends, hits the duration cap, or the
// context is cancelled.
func (p *BeepPlayer) PlayRandom(ctx context.Context, dir string) (string, error) {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return "", repositories.ErrPlayerBusy
	}
	p.playing = true
	p.mu.Unlock()

	name, err := PickRandomClip(filepath.Join(p.root, dir))
	if err != nil {
		p.setPlaying(false)
		return "", err
	}

	go p.play(ctx, filepath.Join(p.root, dir, name))

	return name, nil
}

// Close releases the audio device
func (p *BeepPlayer) Close() error {
	speaker.Clear()
	return nil
}

func (p *BeepPlayer) setPlaying(v bool) {
	p.mu.Lock()
	p.playing = v
	p.mu.Unlock()
}

func (p *BeepPlayer) play(ctx context.Context, path string) {
	defer p.setPlaying(false)

	f, err := os.Open(path)
	if err != nil {
		p.logger.Error("Failed to open audio clip", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	streamer, format, err := decodeClip(f, path)
	if err != nil {
		p.logger.Error("Failed to decode audio clip", zap.String("path", path), zap.Error(err))
		return
	}
	defer streamer.Close()

	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		p.logger.Error("Failed to initialize speaker", zap.Error(err))
		return
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
	case <-time.After(p.clipDuration):
		speaker.Clear()
	case <-ctx.Done():
		speaker.Clear()
	}

	p.logger.Debug("Clip playback finished", zap.String("path", path))
}

// decodeClip decodes an mp3 or wav clip
func decodeClip(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".wav":
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported clip format: %s", filepath.Ext(path))
	}
}

// PickRandomClip returns the name of a random playable file in dir.
// Hidden files (.DS_Store and friends) are skipped.
func PickRandomClip(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read clip directory: %w", err)
	}

	candidates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".mp3", ".wav":
			candidates = append(candidates, entry.Name())
		}
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("no playable clips in %s", dir)
	}

	return candidates[rand.Intn(len(candidates))], nil
}
