package stt_test

import (
	"github.com/fablebox/server/adapters/stt"
	"github.com/fablebox/server/domain/repositories"
)

var _ repositories.SpeechToText = &stt.GoogleSpeechToText{}
