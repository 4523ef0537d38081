package model

import "time"

// NoDataLabel names the most common fruit when there is nothing to count.
const NoDataLabel = "no data"

// StatisticsRecord is the processed result of one image.
type StatisticsRecord struct {
	TotalCount     int         `json:"total_fruits"`
	CountsByClass  Counts      `json:"fruit_counts"`
	Detections     []Detection `json:"detections"`
	AnnotatedImage string      `json:"result_image"`
	SourceImage    string      `json:"original_image"`
}

// HistoryEntry is a persisted StatisticsRecord plus processing metadata.
type HistoryEntry struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Filename       string    `json:"filename"`
	TotalCount     int       `json:"total_fruits"`
	CountsByClass  Counts    `json:"fruit_counts"`
	ResultImage    string    `json:"result_image"`
	ProcessingTime float64   `json:"processing_time"`
}

// Record rebuilds the statistics record an entry was saved from.
// Per-detection data is not persisted, so Detections is empty.
func (e HistoryEntry) Record() StatisticsRecord {
	return StatisticsRecord{
		TotalCount:     e.TotalCount,
		CountsByClass:  e.CountsByClass.Clone(),
		AnnotatedImage: e.ResultImage,
	}
}

// MostCommon names a class and its aggregated count.
type MostCommon struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Summary aggregates many history entries.
type Summary struct {
	TotalRequests           int        `json:"total_requests"`
	TotalFruits             int        `json:"total_fruits"`
	FruitStatistics         Counts     `json:"fruit_statistics"`
	MostCommonFruit         MostCommon `json:"most_common_fruit"`
	AverageFruitsPerRequest float64    `json:"average_fruits_per_request"`
}

// DailyRollup summarizes the entries of one calendar date.
type DailyRollup struct {
	Date                string `json:"date"`
	TotalRequests       int    `json:"total_requests"`
	TotalFruitsDetected int    `json:"total_fruits_detected"`
	MostCommonFruit     string `json:"most_common_fruit"`
	MostCommonCount     int    `json:"most_common_count"`
}
