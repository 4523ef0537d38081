package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/model"
)

var fixedNow = time.Date(2024, 3, 1, 14, 5, 9, 0, time.UTC)

func newTestRenderer(t *testing.T) (*Renderer, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "results")
	r, err := NewRenderer(dir, logger.Nop())
	require.NoError(t, err)
	r.now = func() time.Time { return fixedNow }
	return r, dir
}

func sampleEntry() (model.StatisticsRecord, model.HistoryEntry) {
	counts := model.NewCounts("apple", 2, "hot dog", 1)
	rec := model.StatisticsRecord{TotalCount: 3, CountsByClass: counts}
	entry := model.HistoryEntry{
		ID:             7,
		Timestamp:      fixedNow,
		Filename:       "static/uploads/20240301_140500_ab12cd34_bowl.jpg",
		TotalCount:     3,
		CountsByClass:  counts,
		ProcessingTime: 1.23456,
	}
	return rec, entry
}

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"pdf", Document},
		{"document", Document},
		{"PDF", Document},
		{"excel", Spreadsheet},
		{"xlsx", Spreadsheet},
		{"spreadsheet", Spreadsheet},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseFormat("csv")
	var formatErr *apperr.UnsupportedFormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "csv", formatErr.Format)
}

func TestRenderSingle_Spreadsheet(t *testing.T) {
	r, dir := newTestRenderer(t)
	rec, entry := sampleEntry()

	path, err := r.RenderSingle(rec, entry, Spreadsheet)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fruit_report_20240301_140509.xlsx"), path)

	assert.Equal(t, [][]string{
		{"Metric", "Value"},
		{"Total fruits", "3"},
		{"Image", "20240301_140500_ab12cd34_bowl.jpg"},
		{"Processing time (s)", "1.23"},
	}, readRows(t, path, summarySheet))

	assert.Equal(t, [][]string{
		{"Fruit", "Count"},
		{"Apple", "2"},
		{"Hot Dog", "1"},
	}, readRows(t, path, countsSheet))
}

func TestRenderSingle_Document(t *testing.T) {
	r, dir := newTestRenderer(t)
	rec, entry := sampleEntry()

	path, err := r.RenderSingle(rec, entry, Document)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fruit_report_20240301_140509.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
}

func TestRenderSingle_UnsupportedFormatCreatesNothing(t *testing.T) {
	r, dir := newTestRenderer(t)
	rec, entry := sampleEntry()

	_, err := r.RenderSingle(rec, entry, Format(42))
	var formatErr *apperr.UnsupportedFormatError
	require.ErrorAs(t, err, &formatErr)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRender_NeverOverwrites(t *testing.T) {
	r, dir := newTestRenderer(t)
	rec, entry := sampleEntry()

	first, err := r.RenderSingle(rec, entry, Spreadsheet)
	require.NoError(t, err)
	second, err := r.RenderSingle(rec, entry, Spreadsheet)
	require.NoError(t, err)
	third, err := r.RenderSingle(rec, entry, Spreadsheet)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "fruit_report_20240301_140509.xlsx"), first)
	assert.Equal(t, filepath.Join(dir, "fruit_report_20240301_140509_1.xlsx"), second)
	assert.Equal(t, filepath.Join(dir, "fruit_report_20240301_140509_2.xlsx"), third)
}

func TestRenderHistory(t *testing.T) {
	r, dir := newTestRenderer(t)
	_, entry := sampleEntry()
	older := entry
	older.ID = 6
	older.Filename = "a.png"
	older.TotalCount = 0
	older.ProcessingTime = 0.5
	older.Timestamp = fixedNow.Add(-time.Hour)

	path, err := r.RenderHistory([]model.HistoryEntry{entry, older})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history_report_20240301_140509.xlsx"), path)

	rows := readRows(t, path, historySheet)
	require.Len(t, rows, 3)
	assert.Equal(t, HistoryHeader, rows[0])
	assert.Equal(t, []string{"2024-03-01 14:05:09", entry.Filename, "3", "1.23456"}, rows[1])
	assert.Equal(t, []string{"2024-03-01 13:05:09", "a.png", "0", "0.5"}, rows[2])
}

func TestRenderHistory_EmptyHasHeaderOnly(t *testing.T) {
	r, _ := newTestRenderer(t)

	path, err := r.RenderHistory(nil)
	require.NoError(t, err)

	assert.Equal(t, [][]string{HistoryHeader}, readRows(t, path, historySheet))
}
