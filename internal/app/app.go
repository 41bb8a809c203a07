package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"objectscanner/internal/config"
	"objectscanner/internal/logger"
	"objectscanner/internal/repository/sqlite"
	"objectscanner/internal/routes"
	"objectscanner/internal/service/ai"
	"objectscanner/internal/service/ai/gocvnet"
	"objectscanner/internal/service/analysis"
	"objectscanner/internal/service/capture"
	"objectscanner/internal/service/capture/webcam"
	"objectscanner/internal/service/websocket"
)

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	closers    []func() error
	captures   *capture.Service
	hubService *websocket.HubService
	manager    *analysis.Manager
	router     http.Handler
}

// NewIdentifier builds the identification strategy selected by cfg.Backend.
// The returned close function releases the model when one was loaded.
func NewIdentifier(cfg *config.Config, logger *logger.Logger) (ai.Identifier, func() error, error) {
	switch cfg.Backend {
	case config.BackendRemote:
		return ai.NewRemoteIdentifier(cfg.RemoteEndpoint, nil, logger), func() error { return nil }, nil
	case config.BackendModel:
		loader := ai.NewModelLoader(gocvnet.Loader(gocvnet.Options{
			ModelPath:         cfg.ModelPath,
			ConfigPath:        cfg.ConfigPath,
			LabelsPath:        cfg.LabelsPath,
			MaxImageDimension: cfg.MaxImageDimension,
		}, logger))
		return ai.NewLocalIdentifier(loader, cfg.ConfidenceThreshold, logger), loader.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown identify backend %q", cfg.Backend)
	}
}

// NewDevice builds the camera selected by cfg.CameraSource.
func NewDevice(cfg *config.Config, logger *logger.Logger) (capture.Device, error) {
	switch cfg.CameraSource {
	case config.CameraWebcam:
		return webcam.NewDevice(cfg, logger), nil
	case config.CameraFile:
		return capture.NewFileDevice(cfg.CameraStillPath, cfg.MaxImageDimension), nil
	default:
		return nil, fmt.Errorf("unknown camera source %q", cfg.CameraSource)
	}
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	captureRepo := sqlite.NewCaptureRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	identifier, closeIdentifier, err := NewIdentifier(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	device, err := NewDevice(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	var library capture.MediaLibrary
	if cfg.MediaLibraryDirectory != "" {
		library = capture.NewDirectoryLibrary(cfg.MediaLibraryDirectory)
	}

	captures := capture.NewService(cfg, device, library, captureRepo, log)
	hub := websocket.NewHubService(log)
	mng := analysis.NewManager(identifier, detectionRepo, hub, log)

	router := routes.SetupRoutes(routes.Dependencies{
		Config:        cfg,
		Logger:        log,
		Captures:      captures,
		Analyses:      mng,
		Hub:           hub,
		CaptureRepo:   captureRepo,
		DetectionRepo: detectionRepo,
	})

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		closers:    []func() error{closeIdentifier, captures.Close},
		captures:   captures,
		hubService: hub,
		manager:    mng,
		router:     router,
	}, nil
}

// Run serves the API until SIGINT or SIGTERM, then shuts everything down.
func (a *App) Run() error {
	go a.hubService.Run()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: a.router,
	}

	fmt.Printf("🚀 Object Scanner\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📁 Images: %s\n", a.config.ImageDirectory)
	fmt.Printf("🤖 Backend: %s\n", a.config.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Error shutting down server: %v", err)
		}
	}

	a.close()
	return serveErr
}

func (a *App) close() {
	a.manager.Stop()
	a.hubService.Stop()
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Error("Error releasing resources: %v", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
	a.logger.Close()
}
