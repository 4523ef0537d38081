//go:build gocv

package ai

import (
	"context"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"fruitcounter/internal/model"
)

// minCandidateScore drops hopeless candidates before they reach the adapter.
const minCandidateScore = 0.05

// GoCVModel runs a YOLOv8 ONNX export through the OpenCV DNN module.
// The network output is [1, 4+numClasses, numCandidates] with boxes as
// centre x, centre y, width, height in input-size pixels.
type GoCVModel struct {
	net       gocv.Net
	inputSize int
}

// NewGoCVModel loads the network from modelPath.
func NewGoCVModel(modelPath string, inputSize int) (*GoCVModel, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNet(modelPath, "")
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &GoCVModel{net: net, inputSize: inputSize}, nil
}

// Infer runs one forward pass. gocv.Net is not safe for concurrent use,
// so GoCVModel does not advertise concurrent inference.
func (m *GoCVModel) Infer(ctx context.Context, img image.Image, classIDs []int) ([]RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert image to mat: %w", err)
	}
	defer mat.Close()

	// ImageToMatRGB stores pixels in OpenCV's BGR order; the network wants RGB.
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(m.inputSize, m.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	return decodeYOLO(output, mat.Cols(), mat.Rows(), m.inputSize, classIDs)
}

func decodeYOLO(output gocv.Mat, cols, rows, inputSize int, classIDs []int) ([]RawDetection, error) {
	dims := output.Size()
	if len(dims) != 3 || dims[1] <= 4 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	attrs, n := dims[1], dims[2]

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	allowed := make(map[int]bool, len(classIDs))
	for _, id := range classIDs {
		allowed[id] = true
	}

	sx := float64(cols) / float64(inputSize)
	sy := float64(rows) / float64(inputSize)

	var results []RawDetection
	for i := 0; i < n; i++ {
		best, bestScore := -1, float32(minCandidateScore)
		for c := 0; c < attrs-4; c++ {
			if len(allowed) > 0 && !allowed[c] {
				continue
			}
			if score := data[(4+c)*n+i]; score > bestScore {
				best, bestScore = c, score
			}
		}
		if best < 0 {
			continue
		}

		cx, cy := float64(data[i]), float64(data[n+i])
		w, h := float64(data[2*n+i]), float64(data[3*n+i])
		results = append(results, RawDetection{
			ClassID:    best,
			Confidence: float64(bestScore),
			X1:         (cx - w/2) * sx,
			Y1:         (cy - h/2) * sy,
			X2:         (cx + w/2) * sx,
			Y2:         (cy + h/2) * sy,
		})
	}
	return results, nil
}

func (m *GoCVModel) Close() error {
	return m.net.Close()
}

// CountFromVideo samples every frameInterval-th frame of the video and
// sums per-class counts over the sampled frames.
func (s *DetectorService) CountFromVideo(ctx context.Context, videoPath string, frameInterval int) (model.Counts, error) {
	if frameInterval <= 0 {
		frameInterval = s.frameStep
	}
	if frameInterval <= 0 {
		frameInterval = 1
	}

	capture, err := gocv.VideoCaptureFile(videoPath)
	if err != nil {
		return model.Counts{}, fmt.Errorf("open video %s: %w", videoPath, err)
	}
	defer capture.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	var total model.Counts
	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if ok := capture.Read(&frame); !ok || frame.Empty() {
			break
		}
		if i%frameInterval != 0 {
			continue
		}

		img, err := frame.ToImage()
		if err != nil {
			s.logger.Warning("Skipping frame %d: %v", i, err)
			continue
		}
		detections, err := s.detectImage(ctx, img)
		if err != nil {
			return total, err
		}
		for _, det := range detections {
			total.Add(det.Class, 1)
		}
	}

	s.logger.Info("Counted %d objects in video %s", total.Total(), videoPath)
	return total, nil
}
