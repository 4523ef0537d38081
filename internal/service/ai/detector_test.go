package ai

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fruitcounter/internal/apperr"
	"fruitcounter/internal/config"
	"fruitcounter/internal/logger"
	"fruitcounter/internal/model"
)

type fakeModel struct {
	detections []RawDetection
	err        error
	gotClasses []int
	calls      atomic.Int32
	active     atomic.Int32
	overlapped atomic.Bool
}

func (m *fakeModel) Infer(ctx context.Context, img image.Image, classIDs []int) ([]RawDetection, error) {
	if m.active.Add(1) > 1 {
		m.overlapped.Store(true)
	}
	defer m.active.Add(-1)
	m.calls.Add(1)
	m.gotClasses = classIDs
	return m.detections, m.err
}

func (m *fakeModel) Close() error { return nil }

func newTestDetector(t *testing.T, m Model) (*DetectorService, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.ResultDirectory = filepath.Join(t.TempDir(), "results")

	det, err := NewDetectorService(cfg, m, logger.Nop())
	require.NoError(t, err)
	return det, cfg
}

func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 30, B: 30, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestDetect_FiltersAndAnnotates(t *testing.T) {
	m := &fakeModel{detections: []RawDetection{
		{ClassID: 47, Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10},
		{ClassID: 47, Confidence: 0.3, X1: 20, Y1: 20, X2: 30, Y2: 30},
		{ClassID: 1, Confidence: 0.99, X1: 5, Y1: 5, X2: 40, Y2: 40},   // person: not a fruit
		{ClassID: 46, Confidence: 0.1, X1: 30, Y1: 30, X2: 50, Y2: 50}, // below threshold
		{ClassID: 47, Confidence: 0.8, X1: 1, Y1: 1, X2: 10, Y2: 10},   // duplicate of the first apple
	}}
	det, cfg := newTestDetector(t, m)
	src := writeTestPNG(t, t.TempDir(), "bowl.png", 64, 64)

	out, err := det.Detect(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, out.Detections, 2)
	assert.Equal(t, "apple", out.Detections[0].Class)
	assert.Equal(t, 0.9, out.Detections[0].Confidence)
	assert.Equal(t, 100.0, out.Detections[0].Area)
	assert.Equal(t, 0.3, out.Detections[1].Confidence)

	assert.Equal(t, filepath.Join(cfg.ResultDirectory, "result_bowl.png"), out.AnnotatedPath)
	assert.FileExists(t, out.AnnotatedPath)
	assert.Equal(t, cfg.ClassIDs(), m.gotClasses)

	f, err := os.Open(out.AnnotatedPath)
	require.NoError(t, err)
	defer f.Close()
	annotated, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{G: 255, A: 255}, color.RGBAModel.Convert(annotated.At(0, 5)))
}

func TestDetect_ModelErrorWritesNothing(t *testing.T) {
	m := &fakeModel{err: errors.New("cuda out of memory")}
	det, cfg := newTestDetector(t, m)
	src := writeTestPNG(t, t.TempDir(), "a.png", 8, 8)

	out, err := det.Detect(context.Background(), src)
	require.Error(t, err)
	assert.Nil(t, out)

	var detErr *apperr.DetectionError
	assert.ErrorAs(t, err, &detErr)

	entries, err := os.ReadDir(cfg.ResultDirectory)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDetect_UndecodableImage(t *testing.T) {
	m := &fakeModel{}
	det, cfg := newTestDetector(t, m)

	path := filepath.Join(t.TempDir(), "fake.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0644))

	_, err := det.Detect(context.Background(), path)

	var decodeErr *apperr.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, int32(0), m.calls.Load())

	entries, err := os.ReadDir(cfg.ResultDirectory)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// pngHeaderOnly returns a PNG signature plus an IHDR chunk claiming w x h
// RGBA pixels and no image data.
func pngHeaderOnly(w, h uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	binary.Write(&ihdr, binary.BigEndian, w)
	binary.Write(&ihdr, binary.BigEndian, h)
	ihdr.Write([]byte{8, 6, 0, 0, 0})

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(ihdr.Len()-4))
	buf.Write(ihdr.Bytes())
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return buf.Bytes()
}

func TestDetect_RejectsOversizedImage(t *testing.T) {
	m := &fakeModel{}
	det, cfg := newTestDetector(t, m)

	path := filepath.Join(t.TempDir(), "huge.png")
	require.NoError(t, os.WriteFile(path, pngHeaderOnly(100000, 100000), 0644))

	_, err := det.Detect(context.Background(), path)

	var decodeErr *apperr.DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.ErrorContains(t, err, "pixel limit")
	assert.Equal(t, 400, apperr.HTTPStatus(err))
	assert.Equal(t, int32(0), m.calls.Load())

	entries, err := os.ReadDir(cfg.ResultDirectory)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDetect_SameBasenameKeepsEarlierResult(t *testing.T) {
	m := &fakeModel{detections: []RawDetection{
		{ClassID: 47, Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10},
	}}
	det, cfg := newTestDetector(t, m)
	first := writeTestPNG(t, t.TempDir(), "bowl.png", 32, 32)
	second := writeTestPNG(t, t.TempDir(), "bowl.png", 48, 48)

	out1, err := det.Detect(context.Background(), first)
	require.NoError(t, err)
	before, err := os.ReadFile(out1.AnnotatedPath)
	require.NoError(t, err)

	out2, err := det.Detect(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.ResultDirectory, "result_bowl.png"), out1.AnnotatedPath)
	assert.Equal(t, filepath.Join(cfg.ResultDirectory, "result_bowl_1.png"), out2.AnnotatedPath)

	after, err := os.ReadFile(out1.AnnotatedPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(cfg.ResultDirectory)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWriteImage_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))

	_, err := writeImage(filepath.Join(dir, "result_a.webp"), img, "webp")
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDetect_SerializesNonConcurrentModel(t *testing.T) {
	m := &fakeModel{}
	det, _ := newTestDetector(t, m)
	dir := t.TempDir()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		src := writeTestPNG(t, dir, string(rune('a'+i))+".png", 8, 8)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := det.Detect(context.Background(), src)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(8), m.calls.Load())
	assert.False(t, m.overlapped.Load())
}

func TestSuppress_PerClass(t *testing.T) {
	box := model.BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 10}
	dets := []model.Detection{
		model.NewDetection("apple", 0.5, box),
		model.NewDetection("orange", 0.6, box),
		model.NewDetection("apple", 0.7, box),
		model.NewDetection("apple", 0.4, model.BoundingBox{X1: 50, Y1: 50, X2: 60, Y2: 60}),
	}

	got := suppress(dets, 0.45)

	require.Len(t, got, 3)
	assert.Equal(t, "orange", got[0].Class)
	assert.Equal(t, 0.7, got[1].Confidence)
	assert.Equal(t, 0.4, got[2].Confidence)
}

func TestFilter_DropsDegenerateBoxes(t *testing.T) {
	det, _ := newTestDetector(t, &fakeModel{})

	got := det.filter([]RawDetection{
		{ClassID: 47, Confidence: 0.9, X1: 10, Y1: 0, X2: 10, Y2: 5},
		{ClassID: 47, Confidence: 0.9, X1: 0, Y1: 8, X2: 5, Y2: 2},
		{ClassID: 47, Confidence: 0.25, X1: 0, Y1: 0, X2: 5, Y2: 5},
	})

	require.Len(t, got, 1)
	assert.Equal(t, 0.25, got[0].Confidence)
}

func TestLabel(t *testing.T) {
	det := model.NewDetection("apple", 0.876, model.BoundingBox{X2: 1, Y2: 1})
	assert.Equal(t, "apple: 0.88", Label(det))
}

func TestAnnotate_DoesNotModifySource(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 40))
	det := model.NewDetection("apple", 0.9, model.BoundingBox{X1: 2, Y1: 2, X2: 38, Y2: 38})

	out := Annotate(src, []model.Detection{det})

	assert.Equal(t, color.RGBA{}, src.RGBAAt(2, 2))
	assert.Equal(t, boxColor, out.RGBAAt(2, 2))
	assert.Equal(t, boxColor, out.RGBAAt(37, 30))
	assert.Equal(t, boxColor, out.RGBAAt(20, 37))
	assert.Equal(t, color.RGBA{}, out.RGBAAt(20, 30))
}
