package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"fruitcounter/internal/config"
	"fruitcounter/internal/logger"
)

// AllowedExtensions lists the raster formats accepted for upload.
var AllowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
	"tiff": true,
}

// ErrInvalidFile is returned for empty names and disallowed extensions.
var ErrInvalidFile = errors.New("invalid file type")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileService stores uploads and periodically removes old artifacts.
type FileService struct {
	uploadDir string
	cleanDirs []string
	maxAge    time.Duration
	interval  time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewFileService creates the upload and result directories.
func NewFileService(cfg *config.Config, logger *logger.Logger) (*FileService, error) {
	for _, dir := range []string{cfg.UploadDirectory, cfg.ResultDirectory} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &FileService{
		uploadDir: cfg.UploadDirectory,
		cleanDirs: []string{cfg.UploadDirectory, cfg.ResultDirectory},
		maxAge:    cfg.FileMaxAge,
		interval:  cfg.CleanupInterval,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// AllowedFile reports whether filename has an accepted extension.
func AllowedFile(filename string) bool {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	return ext != "" && AllowedExtensions[strings.ToLower(ext)]
}

// SanitizeFilename reduces name to a safe base name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	return strings.Trim(name, "._")
}

// SaveUpload writes r under a unique, timestamp-prefixed name and returns
// the stored path.
func (s *FileService) SaveUpload(filename string, r io.Reader) (string, error) {
	if filename == "" || !AllowedFile(filename) {
		return "", ErrInvalidFile
	}
	clean := SanitizeFilename(filename)
	if !AllowedFile(clean) {
		return "", ErrInvalidFile
	}

	name := fmt.Sprintf("%s_%s_%s", s.now().Format("20060102_150405"), uuid.NewString()[:8], clean)
	path := filepath.Join(s.uploadDir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close upload: %w", err)
	}

	return path, nil
}

// Run removes expired files every interval until ctx is done.
func (s *FileService) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupOldFiles()
		}
	}
}

// CleanupOldFiles deletes regular files older than the configured max age
// from the upload and result directories. It returns the number removed.
func (s *FileService) CleanupOldFiles() int {
	removed := 0
	cutoff := s.now().Add(-s.maxAge)

	for _, dir := range s.cleanDirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				s.logger.Error("Error reading directory %s: %v", dir, err)
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warning("Error deleting %s: %v", path, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("Removed %d expired files", removed)
	}
	return removed
}
