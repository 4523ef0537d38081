package handler

import (
	"errors"
	"net/http"

	"fruitcounter/internal/config"
	"fruitcounter/internal/dto"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/service"
	"fruitcounter/internal/service/storage"
)

// UploadHandler accepts a multipart "file", runs detection and returns the
// per-fruit counts.
func UploadHandler(manager *service.Manager, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				writeJSON(w, http.StatusRequestEntityTooLarge, dto.ErrorResponse{Error: "File too large"}, logger)
			default:
				writeBadRequest(w, "No file uploaded", logger)
			}
			return
		}
		defer file.Close()

		if header.Filename == "" {
			writeBadRequest(w, "No file selected", logger)
			return
		}

		res, err := manager.ProcessUpload(r.Context(), header.Filename, file)
		if err != nil {
			if errors.Is(err, storage.ErrInvalidFile) {
				writeBadRequest(w, "Invalid file type", logger)
				return
			}
			writeError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, dto.NewDetectionResponse(res.Record, res.Entry), logger)
	}
}
