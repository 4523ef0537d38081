package handler

import (
	"net/http"
	"strconv"

	"fruitcounter/internal/logger"
	"fruitcounter/internal/service"
)

// HistoryHandler returns saved requests, newest first. An optional
// ?limit=N caps the result.
func HistoryHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeBadRequest(w, "Invalid limit", logger)
				return
			}
			limit = n
		}

		entries, err := manager.History(r.Context(), limit)
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, entries, logger)
	}
}

func StatisticsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := manager.Statistics(r.Context())
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, summary, logger)
	}
}

func DailyStatisticsHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		daily, err := manager.DailyStatistics(r.Context())
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, daily, logger)
	}
}

// DashboardHandler returns the last entries plus daily and global rollups.
func DashboardHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dash, err := manager.Dashboard(r.Context())
		if err != nil {
			writeError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, dash, logger)
	}
}
