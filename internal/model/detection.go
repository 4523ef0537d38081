package model

import "encoding/json"

// BoundingBox is an axis-aligned box in source image pixels.
type BoundingBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// Valid reports whether the box has positive width and height.
func (b BoundingBox) Valid() bool {
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Area returns (x2-x1)*(y2-y1).
func (b BoundingBox) Area() float64 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

// IoU returns the intersection-over-union of two boxes.
func (b BoundingBox) IoU(o BoundingBox) float64 {
	ix1 := max(b.X1, o.X1)
	iy1 := max(b.Y1, o.Y1)
	ix2 := min(b.X2, o.X2)
	iy2 := min(b.Y2, o.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// MarshalJSON encodes the box as [x1, y1, x2, y2].
func (b BoundingBox) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]float64{b.X1, b.Y1, b.X2, b.Y2})
}

// UnmarshalJSON decodes a [x1, y1, x2, y2] array.
func (b *BoundingBox) UnmarshalJSON(data []byte) error {
	var v [4]float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = BoundingBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	return nil
}

// Detection is one recognized object instance.
type Detection struct {
	Class      string      `json:"fruit"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"bbox"`
	Area       float64     `json:"area"`
}

// NewDetection builds a Detection with its derived area.
func NewDetection(class string, confidence float64, box BoundingBox) Detection {
	return Detection{
		Class:      class,
		Confidence: confidence,
		Box:        box,
		Area:       box.Area(),
	}
}
