package dto

import (
	"math"
	"path"
	"path/filepath"

	"fruitcounter/internal/model"
)

// ResultsURLPrefix is where annotated images and reports are served.
const ResultsURLPrefix = "/static/results/"

// DashboardHistoryLimit is how many recent entries the dashboard shows.
const DashboardHistoryLimit = 10

// DetectionResponse is returned by POST /upload.
type DetectionResponse struct {
	ID             int64        `json:"id"`
	Total          int          `json:"total"`
	ByFruit        model.Counts `json:"by_fruit"`
	Detections     int          `json:"detections"`
	ResultImage    string       `json:"result_image"`
	ResultURL      string       `json:"result_url"`
	ProcessingTime float64      `json:"processing_time"`
}

// NewDetectionResponse formats a processed upload for the client.
func NewDetectionResponse(rec model.StatisticsRecord, entry model.HistoryEntry) DetectionResponse {
	return DetectionResponse{
		ID:             entry.ID,
		Total:          rec.TotalCount,
		ByFruit:        rec.CountsByClass,
		Detections:     len(rec.Detections),
		ResultImage:    rec.AnnotatedImage,
		ResultURL:      ArtifactURL(rec.AnnotatedImage),
		ProcessingTime: math.Round(entry.ProcessingTime*100) / 100,
	}
}

// ReportResponse is returned by the report endpoints.
type ReportResponse struct {
	ReportURL string `json:"report_url"`
	Filename  string `json:"filename"`
}

func NewReportResponse(reportPath string) ReportResponse {
	return ReportResponse{
		ReportURL: ArtifactURL(reportPath),
		Filename:  filepath.Base(reportPath),
	}
}

// DashboardResponse carries the data of the landing page.
type DashboardResponse struct {
	History    []model.HistoryEntry `json:"history"`
	DailyStats []model.DailyRollup  `json:"daily_stats"`
	Summary    model.Summary        `json:"summary"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ArtifactURL maps a file in the results directory to its public URL.
func ArtifactURL(filePath string) string {
	if filePath == "" {
		return ""
	}
	return path.Join(ResultsURLPrefix, filepath.Base(filePath))
}
