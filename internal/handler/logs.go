package handler

import (
	"net/http"
	"os"

	"fruitcounter/internal/logger"
)

// ShowLogsHandler serves the application log file as text/plain.
func ShowLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filePath := logger.LogPath()
		if filePath == "" {
			http.Error(w, "Log file not configured", http.StatusNotFound)
			return
		}
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.Error(w, "Log file not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")

		http.ServeFile(w, r, filePath)
	}
}

// ClearLogsHandler truncates the log file.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := logger.CleanLogs(); err != nil {
			http.Error(w, "Unable to clear logs", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
