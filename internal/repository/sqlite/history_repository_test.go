package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/model"
)

func openTestRepo(t *testing.T) (*HistoryRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "fruits.db")
	repo, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo, path
}

func record(pairs ...any) model.StatisticsRecord {
	counts := model.NewCounts(pairs...)
	return model.StatisticsRecord{
		TotalCount:     counts.Total(),
		CountsByClass:  counts,
		AnnotatedImage: "static/results/result_x.png",
	}
}

func TestSave_RoundTrip(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	rec := record("banana", 1, "apple", 2)
	saved, err := repo.Save(ctx, "bowl.jpg", rec, 0.4567)
	require.NoError(t, err)
	assert.Positive(t, saved.ID)
	assert.False(t, saved.Timestamp.IsZero())

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, saved.ID, got.ID)
	assert.True(t, saved.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, "bowl.jpg", got.Filename)
	assert.Equal(t, 3, got.TotalCount)
	assert.True(t, rec.CountsByClass.Equal(got.CountsByClass))
	assert.Equal(t, []string{"banana", "apple"}, got.CountsByClass.Keys())
	assert.Equal(t, "static/results/result_x.png", got.ResultImage)
	assert.InDelta(t, 0.4567, got.ProcessingTime, 1e-9)
}

func TestSave_EmptyCounts(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	_, err := repo.Save(ctx, "empty.png", model.StatisticsRecord{}, 0.1)
	require.NoError(t, err)

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].TotalCount)
	assert.Equal(t, 0, entries[0].CountsByClass.Len())
}

func TestNew_IsIdempotent(t *testing.T) {
	repo, path := openTestRepo(t)
	_, err := repo.Save(context.Background(), "a.png", record("apple", 1), 0.1)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	for i := 0; i < 2; i++ {
		reopened, err := Open(path)
		require.NoError(t, err)

		entries, err := reopened.ListAll(context.Background())
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		require.NoError(t, reopened.Close())
	}
}

func TestListAll_NewestFirst(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(2 * time.Second), base.Add(2 * time.Second), base.Add(time.Second)}
	for i, ts := range times {
		repo.now = func() time.Time { return ts }
		_, err := repo.Save(ctx, fmt.Sprintf("%d.png", i), record("apple", 1), 0)
		require.NoError(t, err)
	}

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Filename)
	}
	assert.Equal(t, []string{"2.png", "1.png", "3.png", "0.png"}, names)
}

func TestSave_Concurrent(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := repo.Save(ctx, fmt.Sprintf("img_%d.png", i), record("apple", i%3+1, "banana", 1), 0.01)
			if assert.NoError(t, err) {
				ids <- e.ID
			}
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	entries, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, entries, n)
	for _, e := range entries {
		assert.Equal(t, e.CountsByClass.Total(), e.TotalCount)
		assert.True(t, seen[e.ID])
	}
}

func TestMaterializeDailyStatistics(t *testing.T) {
	repo, _ := openTestRepo(t)
	ctx := context.Background()

	day1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	saves := []struct {
		at  time.Time
		rec model.StatisticsRecord
	}{
		{day1, record("apple", 2)},
		{day1.Add(time.Minute), record("banana", 2)},
		{day2, record("orange", 1)},
	}
	for _, s := range saves {
		repo.now = func() time.Time { return s.at }
		_, err := repo.Save(ctx, "x.png", s.rec, 0)
		require.NoError(t, err)
	}

	daily, err := repo.MaterializeDailyStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-03-02", daily[0].Date)
	assert.Equal(t, "apple", daily[1].MostCommonFruit)

	// Running it again replaces rather than appends.
	_, err = repo.MaterializeDailyStatistics(ctx)
	require.NoError(t, err)

	rows, err := repo.db.Conn().Query(`SELECT date, total_requests, total_fruits_detected, most_common_fruit FROM statistics ORDER BY date`)
	require.NoError(t, err)
	defer rows.Close()

	var got []model.DailyRollup
	for rows.Next() {
		var d model.DailyRollup
		require.NoError(t, rows.Scan(&d.Date, &d.TotalRequests, &d.TotalFruitsDetected, &d.MostCommonFruit))
		got = append(got, d)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []model.DailyRollup{
		{Date: "2024-03-01", TotalRequests: 2, TotalFruitsDetected: 4, MostCommonFruit: "apple"},
		{Date: "2024-03-02", TotalRequests: 1, TotalFruitsDetected: 1, MostCommonFruit: "orange"},
	}, got)
}

func TestSave_ClosedDatabaseIsStoreError(t *testing.T) {
	repo, _ := openTestRepo(t)
	require.NoError(t, repo.Close())

	_, err := repo.Save(context.Background(), "a.png", record("apple", 1), 0)
	var storeErr *apperr.StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "save", storeErr.Op)

	_, err = repo.ListAll(context.Background())
	assert.ErrorAs(t, err, &storeErr)
}
