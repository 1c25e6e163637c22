package entities

import (
	"errors"
	"time"
)

// SessionStatus represents the status of a reading session
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusFinished  SessionStatus = "finished"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// Fragment is one transcribed stretch of read-aloud speech
type Fragment struct {
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	Transcript string    `json:"transcript" bson:"transcript"`
	DurationMs int64     `json:"duration_ms" bson:"duration_ms"`
}

// CueEvent records a keyword cue heard during the session and the clip
// that was played for it
type CueEvent struct {
	ID         string    `json:"id" bson:"id"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	Category   string    `json:"category" bson:"category"`
	Kind       CueKind   `json:"kind" bson:"kind"`
	Keyword    string    `json:"keyword" bson:"keyword"`
	Transcript string    `json:"transcript" bson:"transcript"`
	SoundFile  string    `json:"sound_file" bson:"sound_file"`
}

// SessionMetadata contains session-level metadata
type SessionMetadata struct {
	Language  string `json:"language" bson:"language"`
	BookTitle string `json:"book_title" bson:"book_title"`
}

// Session represents one read-aloud pass through a storybook by a device.
// The fragment list is the linear reading position: fragments are appended
// in the order they were heard, and cue events reference the fragment text
// that triggered them.
type Session struct {
	ID           string          `json:"id" bson:"_id,omitempty"`
	DeviceID     string          `json:"device_id" bson:"device_id"`
	BookID       string          `json:"book_id" bson:"book_id"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
	LastActiveAt time.Time       `json:"last_active_at" bson:"last_active_at"`
	LastHeardAt  *time.Time      `json:"last_heard_at" bson:"last_heard_at"`
	ExpiresAt    time.Time       `json:"expires_at" bson:"expires_at"`
	Status       SessionStatus   `json:"status" bson:"status"`
	Fragments    []Fragment      `json:"fragments" bson:"fragments"`
	CueEvents    []CueEvent      `json:"cue_events" bson:"cue_events"`
	Metadata     SessionMetadata `json:"metadata" bson:"metadata"`
}

// NewSession creates a new reading session for a device and book
func NewSession(deviceID, bookID string) *Session {
	now := time.Now()
	return &Session{
		DeviceID:     deviceID,
		BookID:       bookID,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    now.Add(24 * time.Hour),
		Status:       SessionStatusActive,
		Fragments:    make([]Fragment, 0),
		CueEvents:    make([]CueEvent, 0),
		Metadata: SessionMetadata{
			Language: "en-US",
		},
	}
}

// AddFragment appends a transcribed fragment and advances the reading position
func (s *Session) AddFragment(transcript string, duration time.Duration) {
	now := time.Now()
	s.Fragments = append(s.Fragments, Fragment{
		Timestamp:  now,
		Transcript: transcript,
		DurationMs: duration.Milliseconds(),
	})
	s.LastHeardAt = &now
	s.UpdateLastActive()
}

// AddCueEvent records a detected cue
func (s *Session) AddCueEvent(event CueEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.CueEvents = append(s.CueEvents, event)
	s.UpdateLastActive()
}

// Position returns the number of fragments heard so far
func (s *Session) Position() int {
	return len(s.Fragments)
}

// UpdateLastActive updates the last active timestamp and extends expiration
func (s *Session) UpdateLastActive() {
	s.LastActiveAt = time.Now()
	s.ExpiresAt = s.LastActiveAt.Add(24 * time.Hour)
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt) || s.Status != SessionStatusActive
}

// CanContinueReading reports whether this session can keep receiving
// fragments. A session goes stale 30 minutes after the last heard fragment;
// the reader then gets a fresh session rather than a resumed one.
func (s *Session) CanContinueReading() bool {
	if s.IsExpired() {
		return false
	}
	if s.LastHeardAt == nil {
		return true
	}
	return time.Since(*s.LastHeardAt) <= 30*time.Minute
}

// Finish marks the session as finished
func (s *Session) Finish() {
	s.Status = SessionStatusFinished
	s.UpdateLastActive()
}

// Abandon marks the session as abandoned
func (s *Session) Abandon() {
	s.Status = SessionStatusAbandoned
}

// Validate validates the session data
func (s *Session) Validate() error {
	if s.DeviceID == "" {
		return errors.New("device_id is required")
	}

	if s.BookID == "" {
		return errors.New("book_id is required")
	}

	if s.Status != SessionStatusActive && s.Status != SessionStatusFinished && s.Status != SessionStatusAbandoned {
		return errors.New("invalid session status")
	}

	return nil
}
