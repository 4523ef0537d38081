package ai

import (
	"context"
	"fmt"
	"image"

	"fruitcounter/internal/config"
)

// RawDetection is one box as reported by the model, in source pixels.
type RawDetection struct {
	ClassID    int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Model is the object-detection capability. classIDs restricts the
// classes the model should report; implementations may ignore it.
type Model interface {
	Infer(ctx context.Context, img image.Image, classIDs []int) ([]RawDetection, error)
	Close() error
}

// concurrentModel is implemented by models that are safe to call from
// several goroutines at once.
type concurrentModel interface {
	SupportsConcurrentInference() bool
}

// NewModel builds the backend selected by cfg.ModelBackend.
func NewModel(cfg *config.Config) (Model, error) {
	switch cfg.ModelBackend {
	case "remote":
		return NewRemoteModel(cfg.InferenceURL, cfg.InferenceTimeout), nil
	case "gocv":
		m, err := NewGoCVModel(cfg.ModelPath, cfg.ModelInputSize)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.ModelBackend)
	}
}
