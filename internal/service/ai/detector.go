package ai

import (
	"context"
	"fmt"
	"image"
	"io"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/config"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/model"
)

// ResultPrefix is prepended to the source basename to name annotated images.
const ResultPrefix = "result_"

// DetectionOutput holds the retained detections and the annotated image.
type DetectionOutput struct {
	Detections    []model.Detection
	AnnotatedPath string
}

// DetectorService wraps a Model behind the fruit allow-list, confidence
// and overlap filters, and writes the annotated image.
type DetectorService struct {
	model      Model
	classes    map[int]string
	classIDs   []int
	confidence float64
	iou        float64
	resultDir  string
	frameStep  int
	maxPixels  int64
	logger     *logger.Logger

	concurrent bool
	inferMu    sync.Mutex
}

// NewDetectorService creates a detector around m using the thresholds and
// allow-list from cfg.
func NewDetectorService(cfg *config.Config, m Model, logger *logger.Logger) (*DetectorService, error) {
	if err := os.MkdirAll(cfg.ResultDirectory, 0755); err != nil {
		return nil, fmt.Errorf("create result directory: %w", err)
	}

	classes := make(map[int]string, len(cfg.Classes))
	for id, name := range cfg.Classes {
		classes[id] = name
	}

	s := &DetectorService{
		model:      m,
		classes:    classes,
		classIDs:   cfg.ClassIDs(),
		confidence: cfg.ConfidenceThreshold,
		iou:        cfg.IoUThreshold,
		resultDir:  cfg.ResultDirectory,
		frameStep:  cfg.VideoFrameStep,
		maxPixels:  cfg.MaxImagePixels,
		logger:     logger,
	}
	if cm, ok := m.(concurrentModel); ok {
		s.concurrent = cm.SupportsConcurrentInference()
	}

	s.logger.Info("Detector ready: %d classes, conf=%.2f, iou=%.2f", len(classes), s.confidence, s.iou)
	return s, nil
}

// Detect decodes the image at sourcePath, runs the model and writes the
// annotated copy to <resultDir>/result_<basename>, or result_<name>_N<ext>
// when that name is taken. Nothing is written unless the whole operation
// succeeds.
func (s *DetectorService) Detect(ctx context.Context, sourcePath string) (*DetectionOutput, error) {
	img, format, err := decodeFile(sourcePath, s.maxPixels)
	if err != nil {
		return nil, &apperr.DecodeError{Path: sourcePath, Err: err}
	}

	detections, err := s.detectImage(ctx, img)
	if err != nil {
		return nil, err
	}

	annotated := Annotate(img, detections)
	outPath, err := writeImage(filepath.Join(s.resultDir, ResultPrefix+filepath.Base(sourcePath)), annotated, format)
	if err != nil {
		return nil, &apperr.DetectionError{Op: "annotate", Err: err}
	}

	s.logger.Info("Detected %d objects in %s", len(detections), filepath.Base(sourcePath))
	return &DetectionOutput{Detections: detections, AnnotatedPath: outPath}, nil
}

// Close releases the underlying model.
func (s *DetectorService) Close() error {
	return s.model.Close()
}

func (s *DetectorService) detectImage(ctx context.Context, img image.Image) ([]model.Detection, error) {
	raw, err := s.infer(ctx, img)
	if err != nil {
		s.logger.Error("Model inference failed: %v", err)
		return nil, &apperr.DetectionError{Op: "infer", Err: err}
	}
	return s.filter(raw), nil
}

func (s *DetectorService) infer(ctx context.Context, img image.Image) ([]RawDetection, error) {
	if !s.concurrent {
		s.inferMu.Lock()
		defer s.inferMu.Unlock()
	}
	return s.model.Infer(ctx, img, s.classIDs)
}

// filter applies the allow-list, the confidence threshold and per-class
// non-maximum suppression. Survivors keep the model's order.
func (s *DetectorService) filter(raw []RawDetection) []model.Detection {
	candidates := make([]model.Detection, 0, len(raw))
	for _, r := range raw {
		name, ok := s.classes[r.ClassID]
		if !ok || r.Confidence < s.confidence {
			continue
		}
		box := model.BoundingBox{X1: r.X1, Y1: r.Y1, X2: r.X2, Y2: r.Y2}
		if !box.Valid() {
			continue
		}
		candidates = append(candidates, model.NewDetection(name, r.Confidence, box))
	}
	return suppress(candidates, s.iou)
}

// suppress drops every detection whose IoU with a more confident kept
// detection of the same class exceeds threshold.
func suppress(dets []model.Detection, threshold float64) []model.Detection {
	order := make([]int, len(dets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dets[order[a]].Confidence > dets[order[b]].Confidence
	})

	keep := make([]bool, len(dets))
	kept := make([]int, 0, len(dets))
	for _, i := range order {
		overlaps := false
		for _, k := range kept {
			if dets[k].Class == dets[i].Class && dets[k].Box.IoU(dets[i].Box) > threshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			keep[i] = true
			kept = append(kept, i)
		}
	}

	out := make([]model.Detection, 0, len(kept))
	for i, det := range dets {
		if keep[i] {
			out = append(out, det)
		}
	}
	return out
}

// decodeFile reads the header first and refuses images larger than
// maxPixels before any pixel buffer is allocated.
func decodeFile(path string, maxPixels int64) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, "", err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("image has no pixels")
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return nil, "", fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, maxPixels)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", err
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("image has no pixels")
	}
	return img, format, nil
}
