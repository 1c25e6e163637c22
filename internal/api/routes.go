package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fablebox/server/domain/repositories"
	"github.com/fablebox/server/internal/auth"
	"github.com/fablebox/server/internal/library"
	"github.com/fablebox/server/internal/websocket"
	"github.com/fablebox/server/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(
	e *echo.Echo,
	hub *websocket.Hub,
	deviceRepo repositories.DeviceRepository,
	reading *usecase.ReadingService,
	logger *zap.Logger,
) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "fablebox-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	// Device APIs
	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, deviceRepo, logger)
	})

	// Library APIs
	v1.GET("/books", func(c echo.Context) error {
		return listBooks(c, reading.Catalog())
	})
	v1.GET("/books/:id/text", func(c echo.Context) error {
		return storyText(c, reading.Catalog(), logger)
	})

	// Reading history
	v1.GET("/sessions", func(c echo.Context) error {
		return listSessions(c, reading, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

func deviceAuth(c echo.Context, deviceRepo repositories.DeviceRepository, logger *zap.Logger) error {
	var req DeviceAuthRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	device, err := deviceRepo.ValidateDevice(c.Request().Context(), req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Device authentication failed",
			zap.String("serial_number", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := auth.GenerateDeviceToken(device.ID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", device.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	// Expiration matches the JWT claims (24 hours)
	expiresAt := time.Now().Add(24 * time.Hour)

	logger.Info("Device authenticated",
		zap.String("device_id", device.ID),
		zap.String("serial_number", device.SerialNumber))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  device.ID,
	})
}

func listBooks(c echo.Context, catalog *library.Catalog) error {
	books := catalog.Books()
	out := make([]BookResponse, 0, len(books))
	for _, book := range books {
		out = append(out, BookResponse{
			ID:         book.ID,
			Title:      book.Title,
			Categories: book.CueTable().Categories(),
		})
	}
	return c.JSON(http.StatusOK, out)
}

func storyText(c echo.Context, catalog *library.Catalog, logger *zap.Logger) error {
	id := c.Param("id")

	book, err := catalog.Get(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "book_not_found",
			Message: "No book with id " + id,
		})
	}

	text, err := catalog.StoryText(id)
	if err != nil {
		logger.Error("Failed to read story text", zap.String("bookID", id), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "story_text_unavailable",
			Message: "Failed to read story text",
		})
	}

	return c.JSON(http.StatusOK, StoryTextResponse{
		ID:    book.ID,
		Title: book.Title,
		Text:  text,
	})
}

func listSessions(c echo.Context, reading *usecase.ReadingService, logger *zap.Logger) error {
	deviceID := c.QueryParam("device_id")
	if deviceID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_device_id",
			Message: "device_id query parameter is required",
		})
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	sessions, err := reading.History(c.Request().Context(), deviceID, limit)
	if err != nil {
		logger.Error("Failed to list sessions", zap.String("deviceID", deviceID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_unavailable",
			Message: "Failed to list reading sessions",
		})
	}

	return c.JSON(http.StatusOK, SessionsResponse{Sessions: sessions})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "device" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens are allowed for WebSocket connections",
		})
	}

	if claims.DeviceID == "" {
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "missing_device_id",
			Message: "Token does not identify a device",
		})
	}

	return websocket.HandleWebSocket(hub, c, claims.DeviceID, logger)
}
