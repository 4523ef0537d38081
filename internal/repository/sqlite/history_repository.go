package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/model"
	"fruitcounter/internal/service/stats"
)

// timestampLayout is fixed-width so that text ordering matches time ordering.
const timestampLayout = "2006-01-02 15:04:05.000000000"

// HistoryRepository implements repository.HistoryRepository for SQLite.
type HistoryRepository struct {
	db  *DB
	now func() time.Time
}

// NewHistoryRepository creates a new SQLite history repository.
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: time.Now}
}

// Open opens the database at path and returns a repository that owns it.
func Open(path string) (*HistoryRepository, error) {
	db, err := New(path)
	if err != nil {
		return nil, apperr.Store("open", err)
	}
	return NewHistoryRepository(db), nil
}

// Save inserts one request row in its own transaction.
func (r *HistoryRepository) Save(ctx context.Context, filename string, rec model.StatisticsRecord, processingTime float64) (*model.HistoryEntry, error) {
	counts, err := json.Marshal(rec.CountsByClass)
	if err != nil {
		return nil, apperr.Store("save", fmt.Errorf("failed to encode fruit counts: %w", err))
	}
	if processingTime < 0 {
		processingTime = 0
	}

	r.db.Lock()
	defer r.db.Unlock()

	ts := r.now().UTC()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Store("save", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO requests (timestamp, filename, total_fruits, fruit_counts, result_image, processing_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ts.Format(timestampLayout), filename, rec.TotalCount, string(counts), rec.AnnotatedImage, processingTime)
	if err != nil {
		return nil, apperr.Store("save", fmt.Errorf("failed to insert request: %w", err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, apperr.Store("save", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Store("save", fmt.Errorf("failed to commit: %w", err))
	}

	return &model.HistoryEntry{
		ID:             id,
		Timestamp:      ts,
		Filename:       filename,
		TotalCount:     rec.TotalCount,
		CountsByClass:  rec.CountsByClass.Clone(),
		ResultImage:    rec.AnnotatedImage,
		ProcessingTime: processingTime,
	}, nil
}

// ListAll returns every request, newest first.
func (r *HistoryRepository) ListAll(ctx context.Context) ([]model.HistoryEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT id, timestamp, filename, total_fruits, fruit_counts, result_image, processing_time
		FROM requests
		ORDER BY timestamp DESC, id DESC
	`)
	if err != nil {
		return nil, apperr.Store("list", fmt.Errorf("failed to query requests: %w", err))
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e      model.HistoryEntry
			ts     string
			counts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Filename, &e.TotalCount, &counts, &e.ResultImage, &e.ProcessingTime); err != nil {
			return nil, apperr.Store("list", fmt.Errorf("failed to scan request: %w", err))
		}
		if e.Timestamp, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, apperr.Store("list", fmt.Errorf("request %d: bad timestamp %q: %w", e.ID, ts, err))
		}
		if err := json.Unmarshal([]byte(counts), &e.CountsByClass); err != nil {
			return nil, apperr.Store("list", fmt.Errorf("request %d: bad fruit counts: %w", e.ID, err))
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list", err)
	}

	return entries, nil
}

// DailyStatistics computes per-date rollups from the full history.
func (r *HistoryRepository) DailyStatistics(ctx context.Context) ([]model.DailyRollup, error) {
	entries, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return stats.DailyRollups(entries), nil
}

// MaterializeDailyStatistics replaces the statistics table contents.
func (r *HistoryRepository) MaterializeDailyStatistics(ctx context.Context) ([]model.DailyRollup, error) {
	daily, err := r.DailyStatistics(ctx)
	if err != nil {
		return nil, err
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Store("materialize", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM statistics`); err != nil {
		return nil, apperr.Store("materialize", fmt.Errorf("failed to clear statistics: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO statistics (date, total_requests, total_fruits_detected, most_common_fruit)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return nil, apperr.Store("materialize", fmt.Errorf("failed to prepare statement: %w", err))
	}
	defer stmt.Close()

	for _, d := range daily {
		if _, err := stmt.ExecContext(ctx, d.Date, d.TotalRequests, d.TotalFruitsDetected, d.MostCommonFruit); err != nil {
			return nil, apperr.Store("materialize", fmt.Errorf("failed to insert statistics for %s: %w", d.Date, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Store("materialize", fmt.Errorf("failed to commit: %w", err))
	}
	return daily, nil
}

// Close closes the underlying database.
func (r *HistoryRepository) Close() error {
	return r.db.Close()
}
