// Package stats turns detections into statistics records and folds
// history entries into global and per-day rollups.
//
// Both rollups aggregate entries in insertion order (ascending id) so the
// "most common fruit" tie-break is the same for the global and daily views.
package stats

import (
	"math"
	"sort"

	"fruitcounter/internal/model"
)

// DateLayout is the calendar-date format used for daily rollups.
const DateLayout = "2006-01-02"

// Summarize builds the statistics record for one image.
func Summarize(detections []model.Detection, sourcePath, annotatedPath string) model.StatisticsRecord {
	var counts model.Counts
	for _, det := range detections {
		counts.Add(det.Class, 1)
	}

	dets := make([]model.Detection, len(detections))
	copy(dets, detections)

	return model.StatisticsRecord{
		TotalCount:     len(detections),
		CountsByClass:  counts,
		Detections:     dets,
		AnnotatedImage: annotatedPath,
		SourceImage:    sourcePath,
	}
}

// Rollup aggregates entries into totals, per-class sums and the most
// common class. An empty input yields the "no data" sentinel.
func Rollup(entries []model.HistoryEntry) model.Summary {
	summary := model.Summary{
		TotalRequests:   len(entries),
		MostCommonFruit: model.MostCommon{Name: model.NoDataLabel},
	}

	for _, e := range insertionOrder(entries) {
		summary.TotalFruits += e.TotalCount
		summary.FruitStatistics.Merge(e.CountsByClass)
	}

	if name, count, ok := summary.FruitStatistics.MostCommon(); ok {
		summary.MostCommonFruit = model.MostCommon{Name: name, Count: count}
	}
	if summary.TotalRequests > 0 {
		summary.AverageFruitsPerRequest = round2(float64(summary.TotalFruits) / float64(summary.TotalRequests))
	}

	return summary
}

// DailyRollups groups entries by UTC calendar date, newest date first.
func DailyRollups(entries []model.HistoryEntry) []model.DailyRollup {
	type day struct {
		rollup model.DailyRollup
		counts model.Counts
	}

	days := make(map[string]*day)
	for _, e := range insertionOrder(entries) {
		date := e.Timestamp.UTC().Format(DateLayout)
		d, ok := days[date]
		if !ok {
			d = &day{rollup: model.DailyRollup{Date: date}}
			days[date] = d
		}
		d.rollup.TotalRequests++
		d.rollup.TotalFruitsDetected += e.TotalCount
		d.counts.Merge(e.CountsByClass)
	}

	out := make([]model.DailyRollup, 0, len(days))
	for _, d := range days {
		d.rollup.MostCommonFruit = model.NoDataLabel
		if name, count, ok := d.counts.MostCommon(); ok {
			d.rollup.MostCommonFruit = name
			d.rollup.MostCommonCount = count
		}
		out = append(out, d.rollup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })

	return out
}

// insertionOrder returns a copy of entries sorted by ascending id.
// Entries with equal ids keep their relative order.
func insertionOrder(entries []model.HistoryEntry) []model.HistoryEntry {
	ordered := make([]model.HistoryEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return ordered
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
