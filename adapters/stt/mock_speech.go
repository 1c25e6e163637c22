package stt

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fablebox/server/domain/repositories"
)

// MockSpeechToText is a placeholder implementation for speech recognition.
// The canned transcripts contain cue keywords so the whole read-aloud
// pipeline can be exercised without Google credentials.
type MockSpeechToText struct {
	logger *zap.Logger
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	logger        *zap.Logger
	audioReceived bool
	totalBytes    int
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// InitTranscribeStreaming creates a new mock streaming session
func (s *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &MockSpeechToTextStream{
		logger: s.logger,
	}, nil
}

// Stream implements mock streaming audio processing
func (m *MockSpeechToTextStream) Stream(data []byte) error {
	m.logger.Debug("Processing mock audio chunk", zap.Int("size", len(data)))

	if len(data) > 0 {
		m.audioReceived = true
		m.totalBytes += len(data)
	}

	return nil
}

// End returns the mock transcription result
func (m *MockSpeechToTextStream) End() (string, error) {
	if !m.audioReceived {
		return "", fmt.Errorf("no audio data received")
	}

	result := cannedTranscript(m.totalBytes)
	m.logger.Info("Ending mock transcription stream", zap.String("result", result))
	return result, nil
}

// TranscribeAudio implements repositories.SpeechToText
func (s *MockSpeechToText) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	s.logger.Info("Processing mock speech-to-text",
		zap.Int("audioSize", len(audioData)),
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding))

	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data received")
	}

	return cannedTranscript(len(audioData)), nil
}

// cannedTranscript fakes different story fragments based on audio size
func cannedTranscript(audioBytes int) string {
	switch {
	case audioBytes > 100000:
		return "and he huffed and he puffed and he blew the house down"
	case audioBytes > 50000:
		return "the clock struck midnight dong dong dong"
	case audioBytes > 10000:
		return "she came walking down the stairs"
	default:
		return "once upon a time"
	}
}
