package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/fablebox/server/domain/repositories"
)

var _ repositories.SoundPlayer = (*BeepPlayer)(nil)
var _ repositories.SoundPlayer = (*MockSoundPlayer)(nil)

func TestPickRandomClip(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"knock_01.mp3", "knock_02.wav", ".DS_Store", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	// Hidden files, directories, and non-audio files are never picked
	for i := 0; i < 20; i++ {
		name, err := PickRandomClip(dir)
		if err != nil {
			t.Fatalf("PickRandomClip failed: %v", err)
		}
		if name != "knock_01.mp3" && name != "knock_02.wav" {
			t.Fatalf("Picked unexpected file %s", name)
		}
	}
}

func TestPickRandomClipEmptyDir(t *testing.T) {
	dir := t.TempDir()

	if _, err := PickRandomClip(dir); err == nil {
		t.Error("Expected error for directory with no clips")
	}

	if err := os.WriteFile(filepath.Join(dir, ".DS_Store"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := PickRandomClip(dir); err == nil {
		t.Error("Expected error when only hidden files present")
	}
}

func TestPickRandomClipMissingDir(t *testing.T) {
	if _, err := PickRandomClip(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestMockPlayerBusy(t *testing.T) {
	player := NewMockSoundPlayer(zap.NewNop())

	if _, err := player.PlayRandom(context.Background(), "Sound_Effects/Knock"); err != nil {
		t.Fatalf("PlayRandom failed: %v", err)
	}

	player.SetBusy(true)
	_, err := player.PlayRandom(context.Background(), "Sound_Effects/Fire")
	if !errors.Is(err, repositories.ErrPlayerBusy) {
		t.Errorf("Expected ErrPlayerBusy, got %v", err)
	}

	if len(player.Played()) != 1 {
		t.Errorf("Expected 1 played clip, got %d", len(player.Played()))
	}
}
