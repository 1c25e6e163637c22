package audio

import (
	"context"
	"path"
	"sync"

	"go.uber.org/zap"

	"github.com/fablebox/server/domain/repositories"
)

// MockSoundPlayer is a placeholder player for development and tests.
// It records what it was asked to play instead of touching the speaker.
type MockSoundPlayer struct {
	logger *zap.Logger

	mu     sync.Mutex
	busy   bool
	played []string
}

// NewMockSoundPlayer creates a new mock player
func NewMockSoundPlayer(logger *zap.Logger) *MockSoundPlayer {
	return &MockSoundPlayer{logger: logger}
}

// PlayRandom pretends to play a clip from dir
func (m *MockSoundPlayer) PlayRandom(ctx context.Context, dir string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return "", repositories.ErrPlayerBusy
	}

	name := path.Base(dir) + ".mp3"
	m.played = append(m.played, path.Join(dir, name))
	m.logger.Info("Mock playing clip", zap.String("dir", dir), zap.String("clip", name))
	return name, nil
}

// Close implements repositories.SoundPlayer
func (m *MockSoundPlayer) Close() error {
	return nil
}

// SetBusy forces the busy state, for exercising the no-overlap path
func (m *MockSoundPlayer) SetBusy(busy bool) {
	m.mu.Lock()
	m.busy = busy
	m.mu.Unlock()
}

// Played returns the clips played so far
func (m *MockSoundPlayer) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.played))
	copy(out, m.played)
	return out
}
