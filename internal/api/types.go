package api

import (
	"time"

	"github.com/fablebox/server/domain/entities"
)

// DeviceAuthRequest is the payload for device authentication
type DeviceAuthRequest struct {
	SerialNumber string `json:"serial_number"`
	SecretKey    string `json:"secret_key"`
}

// DeviceAuthResponse is returned on successful device authentication
type DeviceAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	DeviceID  string    `json:"device_id"`
}

// ErrorResponse is the standard error payload
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// BookResponse describes a library book in the catalog listing
type BookResponse struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Categories []string `json:"cue_categories"`
}

// StoryTextResponse carries the story text for display on the device
type StoryTextResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SessionsResponse lists reading sessions for a device
type SessionsResponse struct {
	Sessions []*entities.Session `json:"sessions"`
}
