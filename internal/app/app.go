package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"fruitcounter/internal/config"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/repository"
	"fruitcounter/internal/repository/postgres"
	"fruitcounter/internal/repository/sqlite"
	"fruitcounter/internal/routes"
	"fruitcounter/internal/service"
	"fruitcounter/internal/service/ai"
	"fruitcounter/internal/service/report"
	"fruitcounter/internal/service/storage"
	"fruitcounter/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config      *config.Config
	logger      *logger.Logger
	history     repository.HistoryRepository
	detector    *ai.DetectorService
	fileService *storage.FileService
	hubService  *websocket.HubService
	manager     *service.Manager
}

// NewApp builds every component once. Call Close when done.
func NewApp(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*App, error) {
	model, err := ai.NewModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	if remote, ok := model.(*ai.RemoteModel); ok {
		if err := remote.CheckHealth(ctx); err != nil {
			logger.Warning("Inference service at %s not reachable yet: %v", cfg.InferenceURL, err)
		}
	}

	detector, err := ai.NewDetectorService(cfg, model, logger)
	if err != nil {
		model.Close()
		return nil, err
	}

	history, err := OpenHistory(ctx, cfg)
	if err != nil {
		detector.Close()
		return nil, err
	}

	renderer, err := report.NewRenderer(cfg.ResultDirectory, logger)
	if err != nil {
		history.Close()
		detector.Close()
		return nil, err
	}

	files, err := storage.NewFileService(cfg, logger)
	if err != nil {
		history.Close()
		detector.Close()
		return nil, err
	}

	hub := websocket.NewHubService(logger)

	return &App{
		config:      cfg,
		logger:      logger,
		history:     history,
		detector:    detector,
		fileService: files,
		hubService:  hub,
		manager:     service.NewManager(detector, history, renderer, files, hub, logger),
	}, nil
}

// OpenHistory opens the history store selected by cfg.StoreDriver.
func OpenHistory(ctx context.Context, cfg *config.Config) (repository.HistoryRepository, error) {
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		return postgres.Open(ctx, cfg.DatabaseURL)
	case "sqlite":
		return sqlite.Open(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func (a *App) Manager() *service.Manager {
	return a.manager
}

// Run starts the background services and serves HTTP until ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.hubService.Run(ctx)
	go a.fileService.Run(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           routes.SetupRoutes(a.manager, a.hubService, a.config, a.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.logger.Info("Fruit counter listening on http://localhost:%d (store=%s, model=%s)", a.config.Port, a.config.StoreDriver, a.config.ModelBackend)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the model and the history store.
func (a *App) Close() error {
	return errors.Join(a.detector.Close(), a.history.Close())
}
