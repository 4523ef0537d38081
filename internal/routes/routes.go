package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"fruitcounter/internal/config"
	"fruitcounter/internal/dto"
	"fruitcounter/internal/handler"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/middleware"
	"fruitcounter/internal/service"
	"fruitcounter/internal/service/websocket"
)

// StaticDirectory holds the HTML pages served for extension-less paths.
const StaticDirectory = "static"

// dynamicHTMLHandler serves /path as static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join(StaticDirectory, filepath.Clean("/"+path)+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers the API, the artifact file servers and the HTML pages.
func SetupRoutes(manager *service.Manager, hub *websocket.HubService, cfg *config.Config, logger *logger.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, chimw.RealIP, chimw.Recoverer, middleware.Logger(logger.Zerolog()))

	r.Get("/healthz", handler.HealthHandler(logger))

	// Artifacts
	r.Handle(dto.ResultsURLPrefix+"*", http.StripPrefix(dto.ResultsURLPrefix, http.FileServer(http.Dir(cfg.ResultDirectory))))
	r.Handle("/static/uploads/*", http.StripPrefix("/static/uploads/", http.FileServer(http.Dir(cfg.UploadDirectory))))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(StaticDirectory))))

	// Detection and history
	r.Post("/upload", handler.UploadHandler(manager, cfg, logger))
	r.Get("/history", handler.HistoryHandler(manager, logger))
	r.Get("/statistics", handler.StatisticsHandler(manager, logger))
	r.Get("/statistics/daily", handler.DailyStatisticsHandler(manager, logger))
	r.Get("/dashboard", handler.DashboardHandler(manager, logger))

	// Reports
	r.Post("/generate_report", handler.GenerateReportHandler(manager, logger))
	r.Get("/generate_history_report", handler.GenerateHistoryReportHandler(manager, logger))

	r.Get("/api/live", handler.LiveWebsocketHandler(hub, logger))

	// Logs
	r.Get("/logs", handler.ShowLogsHandler(logger))
	r.Post("/logs/clear", handler.ClearLogsHandler(logger))

	r.Get("/*", dynamicHTMLHandler)

	return r
}
