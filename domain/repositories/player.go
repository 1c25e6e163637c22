package repositories

import (
	"context"
	"errors"
)

// ErrPlayerBusy is returned when a clip is requested while another one is
// still playing. Triggers are dropped rather than queued so playback never
// stacks up behind the reader.
var ErrPlayerBusy = errors.New("a clip is already playing")

// SoundPlayer abstracts local audio clip playback
type SoundPlayer interface {
	// PlayRandom picks a random clip from the directory and plays it,
	// returning the chosen file name. Playback runs asynchronously but the
	// player stays busy until the clip ends or the clip duration cap hits.
	PlayRandom(ctx context.Context, dir string) (string, error)
	// Close releases the underlying audio device
	Close() error
}
