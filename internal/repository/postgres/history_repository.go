// Package postgres stores request history in PostgreSQL through pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/model"
	"fruitcounter/internal/service/stats"
)

// fruit_counts is TEXT rather than JSONB: JSONB does not keep key order.
const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id BIGSERIAL PRIMARY KEY,
	timestamp TIMESTAMPTZ NOT NULL,
	filename TEXT NOT NULL,
	total_fruits INTEGER NOT NULL DEFAULT 0,
	fruit_counts TEXT NOT NULL,
	result_image TEXT NOT NULL DEFAULT '',
	processing_time DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS statistics (
	id BIGSERIAL PRIMARY KEY,
	date TEXT NOT NULL UNIQUE,
	total_requests INTEGER NOT NULL DEFAULT 0,
	total_fruits_detected INTEGER NOT NULL DEFAULT 0,
	most_common_fruit TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_requests_timestamp ON requests(timestamp);
`

// HistoryRepository implements repository.HistoryRepository for PostgreSQL.
type HistoryRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewPool connects to databaseURL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Open connects, migrates and returns a repository that owns the pool.
func Open(ctx context.Context, databaseURL string) (*HistoryRepository, error) {
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		return nil, apperr.Store("open", err)
	}
	repo, err := NewHistoryRepository(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

// NewHistoryRepository migrates the schema on pool.
func NewHistoryRepository(ctx context.Context, pool *pgxpool.Pool) (*HistoryRepository, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, apperr.Store("migrate", err)
	}
	return &HistoryRepository{pool: pool, now: time.Now}, nil
}

func (r *HistoryRepository) Save(ctx context.Context, filename string, rec model.StatisticsRecord, processingTime float64) (*model.HistoryEntry, error) {
	counts, err := json.Marshal(rec.CountsByClass)
	if err != nil {
		return nil, apperr.Store("save", fmt.Errorf("encode fruit counts: %w", err))
	}
	if processingTime < 0 {
		processingTime = 0
	}

	// Postgres keeps microseconds.
	ts := r.now().UTC().Truncate(time.Microsecond)

	var id int64
	err = r.pool.QueryRow(ctx, `
INSERT INTO requests (timestamp, filename, total_fruits, fruit_counts, result_image, processing_time)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id;
`, ts, filename, rec.TotalCount, string(counts), rec.AnnotatedImage, processingTime).Scan(&id)
	if err != nil {
		return nil, apperr.Store("save", fmt.Errorf("insert request: %w", err))
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

func (r *HistoryRepository) ListAll(ctx context.Context) ([]model.HistoryEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, timestamp, filename, total_fruits, fruit_counts, result_image, processing_time
FROM requests
ORDER BY timestamp DESC, id DESC;
`)
	if err != nil {
		return nil, apperr.Store("list", err)
	}
	defer rows.Close()

	entries := []model.HistoryEntry{}
	for rows.Next() {
		var (
			e      model.HistoryEntry
			counts string
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Filename, &e.TotalCount, &counts, &e.ResultImage, &e.ProcessingTime); err != nil {
			return nil, apperr.Store("list", err)
		}
		if err := json.Unmarshal([]byte(counts), &e.CountsByClass); err != nil {
			return nil, apperr.Store("list", fmt.Errorf("request %d: bad fruit counts: %w", e.ID, err))
		}
		e.Timestamp = e.Timestamp.UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list", err)
	}
	return entries, nil
}

func (r *HistoryRepository) DailyStatistics(ctx context.Context) ([]model.DailyRollup, error) {
	entries, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return stats.DailyRollups(entries), nil
}

// MaterializeDailyStatistics replaces the statistics table in one transaction.
func (r *HistoryRepository) MaterializeDailyStatistics(ctx context.Context) ([]model.DailyRollup, error) {
	daily, err := r.DailyStatistics(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, apperr.Store("materialize", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM statistics;`); err != nil {
		return nil, apperr.Store("materialize", err)
	}
	for _, d := range daily {
		_, err := tx.Exec(ctx, `
INSERT INTO statistics (date, total_requests, total_fruits_detected, most_common_fruit)
VALUES ($1, $2, $3, $4);
`, d.Date, d.TotalRequests, d.TotalFruitsDetected, d.MostCommonFruit)
		if err != nil {
			return nil, apperr.Store("materialize", fmt.Errorf("insert statistics for %s: %w", d.Date, err))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Store("materialize", err)
	}
	return daily, nil
}

func (r *HistoryRepository) Close() error {
	r.pool.Close()
	return nil
}
