package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fablebox/server/domain/entities"
	"github.com/fablebox/server/domain/repositories"
	"github.com/fablebox/server/internal/library"
)

// ReadingService orchestrates the read-aloud flow: it owns the session
// lifecycle and turns transcribed fragments into cue events with sound
// playback.
type ReadingService struct {
	sessions repositories.SessionRepository
	player   repositories.SoundPlayer
	catalog  *library.Catalog
	logger   *zap.Logger
}

// NewReadingService creates a new reading service
func NewReadingService(
	sessions repositories.SessionRepository,
	player repositories.SoundPlayer,
	catalog *library.Catalog,
	logger *zap.Logger,
) *ReadingService {
	return &ReadingService{
		sessions: sessions,
		player:   player,
		catalog:  catalog,
		logger:   logger,
	}
}

// Catalog exposes the book library
func (s *ReadingService) Catalog() *library.Catalog {
	return s.catalog
}

// StartReading opens a reading session for a device and book. A recent
// session for the same book is resumed; otherwise a fresh one is created.
func (s *ReadingService) StartReading(ctx context.Context, deviceID, bookID string) (*entities.Session, error) {
	book, err := s.catalog.Get(bookID)
	if err != nil {
		return nil, fmt.Errorf("unknown book %q: %w", bookID, err)
	}

	last, err := s.sessions.GetLastByDeviceID(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up last session: %w", err)
	}

	if last != nil && last.BookID == bookID && last.CanContinueReading() {
		s.logger.Info("Resuming reading session",
			zap.String("deviceID", deviceID),
			zap.String("sessionID", last.ID),
			zap.String("bookID", bookID))
		return last, nil
	}

	session := entities.NewSession(deviceID, bookID)
	session.Metadata.BookTitle = book.Title

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Started reading session",
		zap.String("deviceID", deviceID),
		zap.String("sessionID", session.ID),
		zap.String("bookID", bookID))

	return session, nil
}

// HandleTranscript records a transcribed fragment on the session and fires
// the first matching keyword cue, if any. When a clip is still playing from
// a previous cue the new trigger is dropped so playback never overlaps.
// Playback trouble (busy player, empty clip directory) never fails the
// fragment; the reader keeps reading either way.
func (s *ReadingService) HandleTranscript(ctx context.Context, session *entities.Session, transcript string, duration time.Duration) (*entities.CueEvent, error) {
	session.AddFragment(transcript, duration)

	book, err := s.catalog.Get(session.BookID)
	if err != nil {
		return nil, fmt.Errorf("session references unknown book %q: %w", session.BookID, err)
	}

	table := book.CueTable()
	match := table.Match(transcript)
	if match == nil {
		if err := s.sessions.Update(ctx, session); err != nil {
			return nil, fmt.Errorf("failed to persist fragment: %w", err)
		}
		return nil, nil
	}

	event := s.fireCue(ctx, session, table, match, transcript)

	if err := s.sessions.Update(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to persist fragment: %w", err)
	}

	return event, nil
}

func (s *ReadingService) fireCue(ctx context.Context, session *entities.Session, table *entities.CueTable, match *entities.CueMatch, transcript string) *entities.CueEvent {
	dir, err := table.Location(match.Category)
	if err != nil {
		s.logger.Error("No location for cue category",
			zap.String("category", match.Category),
			zap.Error(err))
		return nil
	}

	// Playback outlives the request that triggered it; only the clip
	// duration cap and player shutdown stop a running clip.
	clip, err := s.player.PlayRandom(context.WithoutCancel(ctx), dir)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerBusy) {
			s.logger.Warn("Dropping cue, clip still playing",
				zap.String("sessionID", session.ID),
				zap.String("category", match.Category))
		} else {
			s.logger.Error("Failed to play cue clip",
				zap.String("sessionID", session.ID),
				zap.String("category", match.Category),
				zap.Error(err))
		}
		return nil
	}

	event := entities.CueEvent{
		ID:         uuid.New().String(),
		Timestamp:  time.Now(),
		Category:   match.Category,
		Kind:       match.Kind,
		Keyword:    match.Keyword,
		Transcript: transcript,
		SoundFile:  clip,
	}
	session.AddCueEvent(event)

	s.logger.Info("Cue detected",
		zap.String("sessionID", session.ID),
		zap.String("category", match.Category),
		zap.String("keyword", match.Keyword),
		zap.String("clip", clip))

	return &event
}

// FinishReading closes a session
func (s *ReadingService) FinishReading(ctx context.Context, session *entities.Session) error {
	session.Finish()
	if err := s.sessions.Update(ctx, session); err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}

	s.logger.Info("Finished reading session",
		zap.String("sessionID", session.ID),
		zap.Int("fragments", session.Position()),
		zap.Int("cues", len(session.CueEvents)))

	return nil
}

// History returns recent sessions for a device
func (s *ReadingService) History(ctx context.Context, deviceID string, limit int) ([]*entities.Session, error) {
	return s.sessions.ListByDeviceID(ctx, deviceID, limit)
}
