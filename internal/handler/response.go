package handler

import (
	"encoding/json"
	"net/http"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/dto"
	"fruitcounter/internal/logger"
)

func writeJSON(w http.ResponseWriter, status int, v any, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// writeError maps err to a status code. Server-side failures are logged
// and reported without detail.
func writeError(w http.ResponseWriter, err error, logger *logger.Logger) {
	status := apperr.HTTPStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed: %v", err)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, dto.ErrorResponse{Error: msg}, logger)
}

func writeBadRequest(w http.ResponseWriter, msg string, logger *logger.Logger) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: msg}, logger)
}
