package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/fablebox/server/adapters/audio"
	"github.com/fablebox/server/domain/entities"
	"github.com/fablebox/server/internal/library"
)

// fakeSessionRepository keeps sessions in memory for testing
type fakeSessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*entities.Session
	nextID   int
	updates  int
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: make(map[string]*entities.Session)}
}

func (r *fakeSessionRepository) Create(ctx context.Context, session *entities.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = fmt.Sprintf("session-%d", r.nextID)
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepository) GetByID(ctx context.Context, id string) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id], nil
}

func (r *fakeSessionRepository) GetLastByDeviceID(ctx context.Context, deviceID string) (*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var last *entities.Session
	for _, s := range r.sessions {
		if s.DeviceID != deviceID {
			continue
		}
		if last == nil || s.LastActiveAt.After(last.LastActiveAt) {
			last = s
		}
	}
	return last, nil
}

func (r *fakeSessionRepository) ListByDeviceID(ctx context.Context, deviceID string, limit int) ([]*entities.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.Session
	for _, s := range r.sessions {
		if s.DeviceID == deviceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepository) Update(ctx context.Context, session *entities.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepository) ExpireSessions(ctx context.Context) error {
	return nil
}

func setupService(t *testing.T) (*ReadingService, *fakeSessionRepository, *audio.MockSoundPlayer) {
	t.Helper()

	catalog, err := library.New(t.TempDir(), []entities.Book{
		{ID: "three-little-pigs", Title: "The Three Little Pigs", TextFile: "three_little_pigs.txt"},
		{ID: "cinderella", Title: "Cinderella", TextFile: "cinderella.txt",
			Cues: []entities.Cue{{Category: "Magic", Kind: entities.CueKindSoundEffect, Keywords: []string{"bibbidi"}}}},
	})
	if err != nil {
		t.Fatal(err)
	}

	repo := newFakeSessionRepository()
	player := audio.NewMockSoundPlayer(zap.NewNop())
	service := NewReadingService(repo, player, catalog, zap.NewNop())
	return service, repo, player
}

func TestStartReadingCreatesSession(t *testing.T) {
	service, _, _ := setupService(t)

	session, err := service.StartReading(context.Background(), "device-1", "three-little-pigs")
	if err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}

	if session.ID == "" {
		t.Error("Expected session ID to be assigned")
	}
	if session.BookID != "three-little-pigs" {
		t.Errorf("Expected book three-little-pigs, got %s", session.BookID)
	}
	if session.Metadata.BookTitle != "The Three Little Pigs" {
		t.Errorf("Expected book title in metadata, got %s", session.Metadata.BookTitle)
	}
}

func TestStartReadingResumesRecentSession(t *testing.T) {
	service, _, _ := setupService(t)
	ctx := context.Background()

	first, err := service.StartReading(ctx, "device-1", "three-little-pigs")
	if err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}

	second, err := service.StartReading(ctx, "device-1", "three-little-pigs")
	if err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected resumed session %s, got %s", first.ID, second.ID)
	}

	// A different book always gets a fresh session
	third, err := service.StartReading(ctx, "device-1", "cinderella")
	if err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}
	if third.ID == first.ID {
		t.Error("Expected new session for different book")
	}
}

func TestStartReadingUnknownBook(t *testing.T) {
	service, _, _ := setupService(t)

	if _, err := service.StartReading(context.Background(), "device-1", "nonexistent"); err == nil {
		t.Error("Expected error for unknown book")
	}
}

func TestHandleTranscriptNoCue(t *testing.T) {
	service, repo, player := setupService(t)
	ctx := context.Background()

	session, _ := service.StartReading(ctx, "device-1", "three-little-pigs")

	event, err := service.HandleTranscript(ctx, session, "the first pig built a house of straw", time.Second)
	if err != nil {
		t.Fatalf("HandleTranscript failed: %v", err)
	}
	if event != nil {
		t.Errorf("Expected no cue event, got %+v", event)
	}
	if session.Position() != 1 {
		t.Errorf("Expected fragment recorded, position = %d", session.Position())
	}
	if repo.updates == 0 {
		t.Error("Expected session to be persisted")
	}
	if len(player.Played()) != 0 {
		t.Errorf("Expected no playback, got %v", player.Played())
	}
}

func TestHandleTranscriptFiresCue(t *testing.T) {
	service, _, player := setupService(t)
	ctx := context.Background()

	session, _ := service.StartReading(ctx, "device-1", "three-little-pigs")

	event, err := service.HandleTranscript(ctx, session, "and he huffed and he puffed", 2*time.Second)
	if err != nil {
		t.Fatalf("HandleTranscript failed: %v", err)
	}
	if event == nil {
		t.Fatal("Expected a cue event")
	}
	if event.Category != "Huff" {
		t.Errorf("Expected category Huff, got %s", event.Category)
	}
	if event.Keyword != "huffed" {
		t.Errorf("Expected keyword huffed, got %s", event.Keyword)
	}
	if event.SoundFile == "" {
		t.Error("Expected a clip to be chosen")
	}
	if event.ID == "" {
		t.Error("Expected event ID to be assigned")
	}

	if len(session.CueEvents) != 1 {
		t.Errorf("Expected cue event on session, got %d", len(session.CueEvents))
	}

	played := player.Played()
	if len(played) != 1 {
		t.Fatalf("Expected 1 clip played, got %d", len(played))
	}
	if played[0] != "Sound_Effects/Huff/Huff.mp3" {
		t.Errorf("Expected clip from Sound_Effects/Huff, got %s", played[0])
	}
}

func TestHandleTranscriptBookCue(t *testing.T) {
	service, _, _ := setupService(t)
	ctx := context.Background()

	session, _ := service.StartReading(ctx, "device-1", "cinderella")

	event, err := service.HandleTranscript(ctx, session, "bibbidi bobbidi boo", time.Second)
	if err != nil {
		t.Fatalf("HandleTranscript failed: %v", err)
	}
	if event == nil || event.Category != "Magic" {
		t.Errorf("Expected book-specific Magic cue, got %+v", event)
	}
}

func TestHandleTranscriptDropsCueWhilePlaying(t *testing.T) {
	service, _, player := setupService(t)
	ctx := context.Background()

	session, _ := service.StartReading(ctx, "device-1", "three-little-pigs")
	player.SetBusy(true)

	event, err := service.HandleTranscript(ctx, session, "he huffed again", time.Second)
	if err != nil {
		t.Fatalf("HandleTranscript failed: %v", err)
	}
	if event != nil {
		t.Errorf("Expected cue to be dropped while clip playing, got %+v", event)
	}

	// The fragment still advances the reading position
	if session.Position() != 1 {
		t.Errorf("Expected fragment recorded, position = %d", session.Position())
	}
	if len(session.CueEvents) != 0 {
		t.Errorf("Expected no cue events, got %d", len(session.CueEvents))
	}
}

// contextCapturingPlayer records the context it was asked to play with.
type contextCapturingPlayer struct {
	mu  sync.Mutex
	ctx context.Context
}

func (p *contextCapturingPlayer) PlayRandom(ctx context.Context, dir string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctx = ctx
	return dir + "/clip.mp3", nil
}

func (p *contextCapturingPlayer) Close() error { return nil }

func (p *contextCapturingPlayer) playbackContext() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ctx
}

func TestCuePlaybackSurvivesRequestCancellation(t *testing.T) {
	catalog, err := library.New(t.TempDir(), []entities.Book{
		{ID: "three-little-pigs", Title: "The Three Little Pigs", TextFile: "three_little_pigs.txt"},
	})
	if err != nil {
		t.Fatal(err)
	}

	repo := newFakeSessionRepository()
	player := &contextCapturingPlayer{}
	service := NewReadingService(repo, player, catalog, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	session, err := service.StartReading(ctx, "device-1", "three-little-pigs")
	if err != nil {
		t.Fatalf("StartReading failed: %v", err)
	}

	event, err := service.HandleTranscript(ctx, session, "and he huffed and he puffed", time.Second)
	if err != nil {
		t.Fatalf("HandleTranscript failed: %v", err)
	}
	if event == nil {
		t.Fatal("Expected a cue event")
	}

	// The request handler returns and cancels its context; the clip keeps
	// playing until the duration cap stops it.
	cancel()

	playCtx := player.playbackContext()
	if playCtx == nil {
		t.Fatal("Expected the player to have been called")
	}
	if playCtx.Err() != nil {
		t.Errorf("Expected playback context to outlive the request, got %v", playCtx.Err())
	}
}

func TestFinishReading(t *testing.T) {
	service, _, _ := setupService(t)
	ctx := context.Background()

	session, _ := service.StartReading(ctx, "device-1", "three-little-pigs")

	if err := service.FinishReading(ctx, session); err != nil {
		t.Fatalf("FinishReading failed: %v", err)
	}
	if session.Status != entities.SessionStatusFinished {
		t.Errorf("Expected finished status, got %s", session.Status)
	}
}
