package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fablebox/server/domain/entities"
	"github.com/fablebox/server/domain/repositories"
	"github.com/fablebox/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Devices authenticate with JWT before the upgrade
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of connected reader devices
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	sttRepo repositories.SpeechToText
	reading *usecase.ReadingService

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	sttRepo repositories.SpeechToText,
	reading *usecase.ReadingService,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		sttRepo:    sttRepo,
		reading:    reading,
		logger:     logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.deviceID] = client
			h.mu.Unlock()
			h.logger.Info("Device connected", zap.String("deviceID", client.deviceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.deviceID]; ok {
				delete(h.clients, client.deviceID)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Device disconnected", zap.String("deviceID", client.deviceID))
		}
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Device ID for this client
	deviceID string

	// Logger
	logger *zap.Logger

	// Current reading session and its transcription stream
	session      *entities.Session
	sttStreaming repositories.SpeechToTextStreaming
	sttCancel    context.CancelFunc

	chunkCount   int
	readingStart time.Time

	mutex sync.Mutex
}

// HandleWebSocket handles websocket requests from a pre-authenticated device
func HandleWebSocket(hub *Hub, c echo.Context, deviceID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan WriteData, 256),
		deviceID: deviceID,
		logger:   logger,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.dropStream()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			// Control messages (reading_start, reading_end, ping)
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Raw audio from the device microphone
			c.processBinaryAudioChunk(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage processes incoming control messages from the device
func (c *Client) processMessage(message []byte) {
	parsed, err := ParseMessage(message)
	if err != nil {
		c.logger.Error("Failed to parse message", zap.Error(err))
		c.sendJSON(CreateErrorMessage("invalid_message", "Failed to parse message", err.Error()))
		return
	}

	switch msg := parsed.(type) {
	case *ReadingStartMessage:
		c.handleReadingStart(msg)
	case *ReadingEndMessage:
		c.handleReadingEnd()
	case *ReadingFinishMessage:
		c.handleReadingFinish()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(msg.Data))
	}
}

// processBinaryAudioChunk feeds device audio into the transcription stream
func (c *Client) processBinaryAudioChunk(data []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil {
		c.logger.Warn("Received audio chunk but no active session",
			zap.String("deviceID", c.deviceID))
		return
	}

	if c.sttStreaming == nil {
		c.logger.Warn("No active transcription stream",
			zap.String("deviceID", c.deviceID),
			zap.String("sessionID", c.session.ID))
		return
	}

	c.chunkCount++

	if err := c.sttStreaming.Stream(data); err != nil {
		c.logger.Error("Failed to stream audio data",
			zap.String("sessionID", c.session.ID),
			zap.Error(err))
		return
	}

	c.logger.Debug("Streamed audio chunk",
		zap.String("sessionID", c.session.ID),
		zap.Int("totalChunks", c.chunkCount))
}

// handleReadingStart opens or resumes the reading session and the
// transcription stream for the next utterance
func (c *Client) handleReadingStart(msg *ReadingStartMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.chunkCount = 0
	c.readingStart = time.Now()

	response := map[string]interface{}{
		"type":      "reading_start",
		"timestamp": c.readingStart.Unix(),
	}

	defer func() {
		responseBytes, _ := json.Marshal(response)
		c.trySend(responseBytes)
	}()

	session, err := c.hub.reading.StartReading(ctx, c.deviceID, msg.BookID)
	if err != nil {
		c.logger.Error("Failed to start reading session",
			zap.String("deviceID", c.deviceID),
			zap.String("bookID", msg.BookID),
			zap.Error(err))
		response["error"] = "failed to start reading session"
		return
	}
	c.session = session
	response["session_id"] = session.ID
	response["position"] = session.Position()

	audioConfig := repositories.AudioConfig{
		SampleRate: 16000,
		Language:   session.Metadata.Language,
		Encoding:   "LINEAR16",
	}
	if msg.SampleRate > 0 {
		audioConfig.SampleRate = msg.SampleRate
	}
	if msg.Language != "" {
		audioConfig.Language = msg.Language
	}
	if msg.Encoding != "" {
		audioConfig.Encoding = msg.Encoding
	}

	// The stream outlives this handler, so it gets its own context
	c.dropStreamLocked()
	streamCtx, streamCancel := context.WithCancel(context.Background())
	c.sttStreaming, err = c.hub.sttRepo.InitTranscribeStreaming(streamCtx, audioConfig)
	if err != nil {
		streamCancel()
		c.logger.Error("Failed to initialize streaming transcription",
			zap.String("sessionID", session.ID),
			zap.Error(err))
		response["error"] = "failed to initialize transcription"
		return
	}
	c.sttCancel = streamCancel

	c.logger.Info("Reading started",
		zap.String("deviceID", c.deviceID),
		zap.String("sessionID", session.ID),
		zap.String("bookID", msg.BookID))

	response["message"] = "reading started"
}

// handleReadingEnd finishes the utterance: the transcript is pulled from
// the stream and run through the cue pipeline
func (c *Client) handleReadingEnd() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil || c.sttStreaming == nil {
		c.sendJSON(CreateErrorMessage("no_session", "No active reading session", ""))
		return
	}

	transcript, err := c.sttStreaming.End()
	c.dropStreamLocked()
	if err != nil {
		c.logger.Error("Failed to end transcription stream",
			zap.String("deviceID", c.deviceID),
			zap.String("sessionID", c.session.ID),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage("transcription_failed", "Failed to end transcription", err.Error()))
		return
	}

	c.logger.Info("Transcription completed",
		zap.String("deviceID", c.deviceID),
		zap.String("sessionID", c.session.ID),
		zap.String("transcript", transcript))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cue, err := c.hub.reading.HandleTranscript(ctx, c.session, transcript, time.Since(c.readingStart))
	if err != nil {
		c.logger.Error("Failed to handle transcript",
			zap.String("sessionID", c.session.ID),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage("cue_pipeline_failed", "Failed to process transcript", err.Error()))
		return
	}

	c.sendJSON(&TranscriptMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTranscript,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		SessionID:  c.session.ID,
		Transcript: transcript,
		Position:   c.session.Position(),
		Cue:        NewCueEventPayload(cue),
	})

	if cue != nil {
		c.sendJSON(&CueDetectedMessage{
			BaseMessage: BaseMessage{
				Type:      MessageTypeCueDetected,
				Timestamp: time.Now().Format(time.RFC3339),
			},
			SessionID: c.session.ID,
			Cue:       *NewCueEventPayload(cue),
		})
	}
}

// handleReadingFinish closes out the session for good. A finished session
// is not offered for resumption on the next reading_start.
func (c *Client) handleReadingFinish() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil {
		c.sendJSON(CreateErrorMessage("no_session", "No active reading session", ""))
		return
	}
	c.dropStreamLocked()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session := c.session
	c.session = nil

	if err := c.hub.reading.FinishReading(ctx, session); err != nil {
		c.logger.Error("Failed to finish reading session",
			zap.String("deviceID", c.deviceID),
			zap.String("sessionID", session.ID),
			zap.Error(err))
		c.sendJSON(CreateErrorMessage("finish_failed", "Failed to finish reading session", err.Error()))
		return
	}

	c.logger.Info("Reading finished",
		zap.String("deviceID", c.deviceID),
		zap.String("sessionID", session.ID),
		zap.Int("fragments", session.Position()),
		zap.Int("cueEvents", len(session.CueEvents)))

	response, _ := json.Marshal(map[string]interface{}{
		"type":       string(MessageTypeReadingFinish),
		"session_id": session.ID,
		"position":   session.Position(),
		"timestamp":  time.Now().Unix(),
	})
	c.trySend(response)
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.trySend(payload)
}

func (c *Client) trySend(payload []byte) {
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: payload}:
	default:
		c.logger.Warn("Send buffer full, dropping message",
			zap.String("deviceID", c.deviceID))
	}
}

func (c *Client) dropStream() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.dropStreamLocked()
}

func (c *Client) dropStreamLocked() {
	if c.sttCancel != nil {
		c.sttCancel()
		c.sttCancel = nil
	}
	c.sttStreaming = nil
}
