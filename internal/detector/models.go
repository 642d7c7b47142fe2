package detector

import (
	"image"
	"time"
)

// Category is one ranked guess for what a detected object is
type Category struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// BoundingBox is a box in source-image pixel coordinates
type BoundingBox struct {
	Left   float32 `json:"left"`
	Top    float32 `json:"top"`
	Right  float32 `json:"right"`
	Bottom float32 `json:"bottom"`
}

// Width returns the horizontal extent of the box
func (b BoundingBox) Width() float32 {
	return b.Right - b.Left
}

// Height returns the vertical extent of the box
func (b BoundingBox) Height() float32 {
	return b.Bottom - b.Top
}

// Detection is one recognized object instance. Categories are ordered by
// score, highest first. Detections are not modified after an engine returns them.
type Detection struct {
	BoundingBox BoundingBox `json:"box"`
	Categories  []Category  `json:"categories"`
}

// TopCategory returns the highest ranked category, or the zero Category when
// the detection carries none.
func (d Detection) TopCategory() Category {
	if len(d.Categories) == 0 {
		return Category{}
	}
	return d.Categories[0]
}

// Outcome is the result of one detection invocation. Err is set when the
// engine could not be initialized or inference failed; Detections is nil in
// both cases. Timing and post-rotation image size are always filled in.
type Outcome struct {
	Detections    []Detection
	Err           error
	InferenceTime time.Duration
	ImageHeight   int
	ImageWidth    int
	// Upright is the frame after rotation, as the detector saw it
	Upright image.Image
}

// UprightFrame returns the rotated frame Detect used, rotating src only when
// the outcome does not carry it
func (o Outcome) UprightFrame(src image.Image, rotationDegrees int) image.Image {
	if o.Upright != nil {
		return o.Upright
	}
	return Rotate(src, rotationDegrees)
}

// InferenceTimeMs returns the elapsed inference time in whole milliseconds
func (o Outcome) InferenceTimeMs() int64 {
	return o.InferenceTime.Milliseconds()
}

// OK reports whether the invocation produced results
func (o Outcome) OK() bool {
	return o.Err == nil
}
