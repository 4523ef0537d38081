package repository

import (
	"context"

	"fruitcounter/internal/model"
)

// HistoryRepository is the durable record of processed requests.
type HistoryRepository interface {
	// Save assigns id and timestamp and persists the entry atomically.
	Save(ctx context.Context, filename string, rec model.StatisticsRecord, processingTime float64) (*model.HistoryEntry, error)

	// ListAll returns every entry, newest first.
	ListAll(ctx context.Context) ([]model.HistoryEntry, error)

	// DailyStatistics returns per-date rollups, newest date first.
	DailyStatistics(ctx context.Context) ([]model.DailyRollup, error)

	// MaterializeDailyStatistics rewrites the statistics table from the
	// current history and returns the rows written.
	MaterializeDailyStatistics(ctx context.Context) ([]model.DailyRollup, error)

	Close() error
}
