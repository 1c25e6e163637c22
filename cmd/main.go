package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fablebox/server/adapters"
	"github.com/fablebox/server/adapters/audio"
	"github.com/fablebox/server/adapters/mongo"
	"github.com/fablebox/server/adapters/stt"
	"github.com/fablebox/server/domain/repositories"
	"github.com/fablebox/server/internal/api"
	"github.com/fablebox/server/internal/library"
	"github.com/fablebox/server/internal/websocket"
	"github.com/fablebox/server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load .env in development; env vars win over file values
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", zap.Error(err))
	}

	// Book library
	catalog := loadCatalog(logger)

	// Storage
	mongoClient, err := mongo.NewClient(logger)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	sessionRepo := mongo.NewSessionRepository(mongoClient.Database)
	deviceRepo := adapters.NewMemoryDeviceRepositoryWithTestDevices()

	// Speech to text
	var speechToText repositories.SpeechToText
	if os.Getenv("FABLEBOX_STT") == "mock" {
		speechToText = stt.NewMockSpeechToText(logger)
	} else {
		speechToText = &stt.GoogleSpeechToText{PhraseHints: catalog.PhraseHints()}
	}

	// Sound playback
	var player repositories.SoundPlayer
	if os.Getenv("FABLEBOX_PLAYER") == "mock" {
		player = audio.NewMockSoundPlayer(logger)
	} else {
		audioDir := os.Getenv("FABLEBOX_AUDIO_DIR")
		if audioDir == "" {
			audioDir = "Audio"
		}
		player = audio.NewBeepPlayer(audioDir, logger)
	}
	defer player.Close()

	// Usecase services
	readingService := usecase.NewReadingService(sessionRepo, player, catalog, logger)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// WebSocket hub
	hub := websocket.NewHub(speechToText, readingService, logger)
	go hub.Run()

	// Background session cleanup
	cleanup := websocket.NewSessionCleanupService(sessionRepo, logger)
	cleanup.Start()
	defer cleanup.Stop()

	// API routes
	api.InitRoutes(e, hub, deviceRepo, readingService, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Fablebox server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	if err := mongoClient.Close(ctx); err != nil {
		logger.Error("Failed to close MongoDB connection", zap.Error(err))
	}

	logger.Info("Server exited")
}

func loadCatalog(logger *zap.Logger) *library.Catalog {
	libraryDir := os.Getenv("FABLEBOX_LIBRARY_DIR")
	if libraryDir == "" {
		libraryDir = "Library"
	}

	if path := os.Getenv("FABLEBOX_CATALOG"); path != "" {
		catalog, err := library.Load(path)
		if err != nil {
			logger.Fatal("Failed to load book catalog", zap.String("path", path), zap.Error(err))
		}
		return catalog
	}

	catalog, err := library.Discover(libraryDir)
	if err != nil {
		logger.Fatal("Failed to load book catalog", zap.String("dir", libraryDir), zap.Error(err))
	}
	return catalog
}
