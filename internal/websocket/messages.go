package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fablebox/server/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Device -> server
	MessageTypeReadingStart  MessageType = "reading_start"
	MessageTypeReadingEnd    MessageType = "reading_end"
	MessageTypeReadingFinish MessageType = "reading_finish"
	MessageTypePing          MessageType = "ping"

	// Server -> device
	MessageTypeTranscript  MessageType = "transcript"
	MessageTypeCueDetected MessageType = "cue_detected"
	MessageTypePong        MessageType = "pong"
	MessageTypeError       MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// ReadingStartMessage opens (or resumes) a reading session for a book and
// announces the audio format of the binary chunks that follow
type ReadingStartMessage struct {
	BaseMessage
	BookID     string `json:"book_id"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ReadingEndMessage closes the current utterance: the server finishes the
// transcription stream and runs cue matching on the result
type ReadingEndMessage struct {
	BaseMessage
}

// ReadingFinishMessage ends the whole reading session. Unlike a dropped
// connection, a finished session is never resumed.
type ReadingFinishMessage struct {
	BaseMessage
}

// PingMessage represents a connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// TranscriptMessage carries the transcribed fragment back to the device
type TranscriptMessage struct {
	BaseMessage
	SessionID  string           `json:"session_id"`
	Transcript string           `json:"transcript"`
	Position   int              `json:"position"`
	Cue        *CueEventPayload `json:"cue,omitempty"`
}

// CueDetectedMessage announces a fired cue so the device UI can react
type CueDetectedMessage struct {
	BaseMessage
	SessionID string          `json:"session_id"`
	Cue       CueEventPayload `json:"cue"`
}

// CueEventPayload is the wire form of a cue event
type CueEventPayload struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	Kind      string `json:"kind"`
	Keyword   string `json:"keyword"`
	SoundFile string `json:"sound_file"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// NewCueEventPayload converts a domain cue event for the wire
func NewCueEventPayload(event *entities.CueEvent) *CueEventPayload {
	if event == nil {
		return nil
	}
	return &CueEventPayload{
		ID:        event.ID,
		Category:  event.Category,
		Kind:      string(event.Kind),
		Keyword:   event.Keyword,
		SoundFile: event.SoundFile,
	}
}

// ParseMessage validates an incoming control message and returns the typed
// form
func ParseMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeReadingStart:
		var msg ReadingStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid reading_start message: %w", err)
		}
		if err := validateReadingStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeReadingEnd:
		var msg ReadingEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid reading_end message: %w", err)
		}
		return &msg, nil

	case MessageTypeReadingFinish:
		var msg ReadingFinishMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid reading_finish message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func validateReadingStart(msg *ReadingStartMessage) error {
	if msg.BookID == "" {
		return fmt.Errorf("book_id is required")
	}
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
		Details: details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePong,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Data: data,
	}
}
