//go:build !gocv

package ai

import (
	"context"
	"errors"
	"image"

	"fruitcounter/internal/model"
)

// ErrGoCVDisabled is returned by gocv-backed features in builds without
// the gocv tag.
var ErrGoCVDisabled = errors.New("gocv build tag is not enabled")

// GoCVModel is unavailable without the gocv build tag.
type GoCVModel struct{}

// NewGoCVModel always fails without the gocv build tag.
func NewGoCVModel(modelPath string, inputSize int) (*GoCVModel, error) {
	return nil, ErrGoCVDisabled
}

func (m *GoCVModel) Infer(ctx context.Context, img image.Image, classIDs []int) ([]RawDetection, error) {
	return nil, ErrGoCVDisabled
}

func (m *GoCVModel) Close() error { return nil }

// CountFromVideo needs OpenCV video decoding.
func (s *DetectorService) CountFromVideo(ctx context.Context, videoPath string, frameInterval int) (model.Counts, error) {
	return model.Counts{}, ErrGoCVDisabled
}
