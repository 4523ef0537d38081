package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/dto"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/model"
	"fruitcounter/internal/repository"
	"fruitcounter/internal/service/ai"
	"fruitcounter/internal/service/report"
	"fruitcounter/internal/service/stats"
	"fruitcounter/internal/service/storage"
	"fruitcounter/internal/service/websocket"
)

// Manager runs the upload -> detect -> persist pipeline and serves the
// history, statistics and report queries built on top of it.
type Manager struct {
	detector         *ai.DetectorService
	history          repository.HistoryRepository
	renderer         *report.Renderer
	fileService      *storage.FileService
	websocketService *websocket.HubService
	logger           *logger.Logger
}

// ProcessResult is the outcome of one processed image.
type ProcessResult struct {
	Record model.StatisticsRecord
	Entry  model.HistoryEntry
}

// NewManager wires the pipeline. fileService and websocketService may be
// nil when uploads or live updates are not needed (e.g. the CLI).
func NewManager(detector *ai.DetectorService, history repository.HistoryRepository, renderer *report.Renderer, fileService *storage.FileService, websocketService *websocket.HubService, logger *logger.Logger) *Manager {
	return &Manager{
		detector:         detector,
		history:          history,
		renderer:         renderer,
		fileService:      fileService,
		websocketService: websocketService,
		logger:           logger,
	}
}

// ProcessUpload stores r under a unique upload name and processes it.
// The stored upload is removed again when processing fails.
func (m *Manager) ProcessUpload(ctx context.Context, filename string, r io.Reader) (*ProcessResult, error) {
	if m.fileService == nil {
		return nil, errors.New("uploads are not enabled")
	}
	path, err := m.fileService.SaveUpload(filename, r)
	if err != nil {
		return nil, err
	}

	res, err := m.ProcessImage(ctx, path)
	if err != nil {
		// No history entry refers to the upload.
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			m.logger.Warning("Failed to remove upload %s: %v", path, rmErr)
		}
		return nil, err
	}
	return res, nil
}

// ProcessImage detects fruit in the image at path and records the result.
// When saving fails the annotated image is removed again.
func (m *Manager) ProcessImage(ctx context.Context, path string) (*ProcessResult, error) {
	start := time.Now()

	out, err := m.detector.Detect(ctx, path)
	if err != nil {
		m.logger.Error("Detection failed for %s: %v", filepath.Base(path), err)
		return nil, err
	}

	rec := stats.Summarize(out.Detections, path, out.AnnotatedPath)
	elapsed := time.Since(start).Seconds()

	entry, err := m.history.Save(ctx, filepath.Base(path), rec, elapsed)
	if err != nil {
		m.logger.Error("Failed to save request for %s: %v", filepath.Base(path), err)
		if rmErr := os.Remove(out.AnnotatedPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			m.logger.Warning("Failed to remove annotated image %s: %v", out.AnnotatedPath, rmErr)
		}
		return nil, apperr.Store("save", err)
	}

	m.logger.Info("Request %d: %d fruits in %s (%.2fs)", entry.ID, rec.TotalCount, entry.Filename, elapsed)
	m.broadcast(*entry)

	return &ProcessResult{Record: rec, Entry: *entry}, nil
}

func (m *Manager) broadcast(entry model.HistoryEntry) {
	if m.websocketService == nil {
		return
	}
	msg, err := json.Marshal(entry)
	if err != nil {
		m.logger.Error("Error encoding live update: %v", err)
		return
	}
	m.websocketService.Broadcast(msg)
}

// History returns up to limit entries, newest first. limit <= 0 means all.
func (m *Manager) History(ctx context.Context, limit int) ([]model.HistoryEntry, error) {
	entries, err := m.history.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Statistics aggregates the whole history.
func (m *Manager) Statistics(ctx context.Context) (model.Summary, error) {
	entries, err := m.history.ListAll(ctx)
	if err != nil {
		return model.Summary{}, err
	}
	return stats.Rollup(entries), nil
}

func (m *Manager) DailyStatistics(ctx context.Context) ([]model.DailyRollup, error) {
	return m.history.DailyStatistics(ctx)
}

// MaterializeDailyStatistics refreshes the stored per-day table.
func (m *Manager) MaterializeDailyStatistics(ctx context.Context) ([]model.DailyRollup, error) {
	return m.history.MaterializeDailyStatistics(ctx)
}

// Dashboard returns the most recent entries together with the rollups.
func (m *Manager) Dashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	entries, err := m.history.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	recent := entries
	if len(recent) > dto.DashboardHistoryLimit {
		recent = recent[:dto.DashboardHistoryLimit]
	}

	return &dto.DashboardResponse{
		History:    recent,
		DailyStats: stats.DailyRollups(entries),
		Summary:    stats.Rollup(entries),
	}, nil
}

// GenerateReport renders the most recent entry as formatName. The format
// is checked before anything else so a bad name never creates a file.
func (m *Manager) GenerateReport(ctx context.Context, formatName string) (string, error) {
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return "", err
	}

	entries, err := m.history.ListAll(ctx)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", &apperr.NoDataError{What: "report"}
	}

	latest := entries[0]
	return m.renderer.RenderSingle(latest.Record(), latest, format)
}

// GenerateHistoryReport renders every entry, newest first.
func (m *Manager) GenerateHistoryReport(ctx context.Context) (string, error) {
	entries, err := m.history.ListAll(ctx)
	if err != nil {
		return "", err
	}
	return m.renderer.RenderHistory(entries)
}

// CountVideo sums per-class counts over sampled frames of a video file.
func (m *Manager) CountVideo(ctx context.Context, path string, frameInterval int) (model.Counts, error) {
	return m.detector.CountFromVideo(ctx, path, frameInterval)
}
