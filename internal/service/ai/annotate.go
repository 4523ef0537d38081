package ai

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"

	"fruitcounter/internal/model"
)

const (
	boxThickness    = 2
	maxNameAttempts = 1000
)

var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Label returns the text drawn next to a detection box.
func Label(det model.Detection) string {
	return fmt.Sprintf("%s: %.2f", det.Class, det.Confidence)
}

// Annotate returns a copy of src with a rectangle and label per detection.
func Annotate(src image.Image, detections []model.Detection) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, src, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Src: image.NewUniform(boxColor), Face: face}

	for _, det := range detections {
		rect := image.Rect(int(det.Box.X1), int(det.Box.Y1), int(det.Box.X2), int(det.Box.Y2)).Add(bounds.Min)
		drawRect(dst, rect)

		// Baseline 10px above the box, or just inside it at the top edge.
		y := rect.Min.Y - 10
		if y-face.Ascent < bounds.Min.Y {
			y = rect.Min.Y + face.Ascent + boxThickness
		}
		drawer.Dot = fixed.P(rect.Min.X, y)
		drawer.DrawString(Label(det))
	}
	return dst
}

func drawRect(img *image.RGBA, r image.Rectangle) {
	fill := image.NewUniform(boxColor)
	t := boxThickness
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), fill, image.Point{}, draw.Src)
	}
}

// writeImage encodes img in format to a temp file in path's directory and
// links it under path, or under path with a _N suffix when path exists.
// Existing files are never replaced and on failure nothing is left behind.
// It returns the name actually written.
func writeImage(path string, img image.Image, format string) (string, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp_"+filepath.Base(path)+"_*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err = encodeImage(tmp, img, format); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode %s: %w", format, err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 0; i < maxNameAttempts; i++ {
		candidate := path
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		err = os.Link(tmp.Name(), candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("link annotated image: %w", err)
		}
	}
	return "", fmt.Errorf("no free name for %s after %d attempts", filepath.Base(path), maxNameAttempts)
}

func encodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "png":
		return png.Encode(w, img)
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tiff":
		return tiff.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported image format %q", format)
	}
}
