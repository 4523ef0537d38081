package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fruitcounter/internal/dto"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/service"
)

type reportRequest struct {
	Type string `json:"type"`
}

// GenerateReportHandler renders the latest request as {"type":"pdf"|"excel"}.
// A missing type means pdf.
func GenerateReportHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := reportRequest{Type: "pdf"}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeBadRequest(w, "Invalid JSON body", logger)
			return
		}
		if req.Type == "" {
			req.Type = "pdf"
		}

		path, err := manager.GenerateReport(r.Context(), req.Type)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewReportResponse(path), logger)
	}
}

func GenerateHistoryReportHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := manager.GenerateHistoryReport(r.Context())
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dto.NewReportResponse(path), logger)
	}
}
