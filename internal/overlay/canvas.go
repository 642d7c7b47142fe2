package overlay

import "image/color"

// Style selects how a shape is painted
type Style int

const (
	Fill Style = iota
	Stroke
)

// Paint holds the drawing attributes for one primitive
type Paint struct {
	Color       color.Color
	Style       Style
	StrokeWidth float64
	TextSize    float64
}

// Rect is an axis aligned rectangle in view pixels
type Rect struct {
	Left, Top, Right, Bottom float64
}

// Width returns the horizontal extent
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Canvas is the drawing surface a Renderer paints onto. Text is drawn with
// its baseline at y.
type Canvas interface {
	StrokeRect(r Rect, p Paint)
	FillRect(r Rect, p Paint)
	DrawText(text string, x, y float64, p Paint)
	TextBounds(text string, p Paint) (width, height float64)
}

const (
	// TextPadding is added to the measured label width and height
	TextPadding = 16

	BoxStrokeWidth          = 3
	LabelBackgroundTextSize = 30
	LabelTextSize           = 50
)

// BoundingBoxColor is the outline color of detection boxes
var BoundingBoxColor color.Color = color.RGBA{R: 0x03, G: 0xDA, B: 0xC5, A: 0xFF}

// DefaultBoxPaint returns the paint used for detection outlines
func DefaultBoxPaint() Paint {
	return Paint{Color: BoundingBoxColor, Style: Stroke, StrokeWidth: BoxStrokeWidth}
}

// DefaultTextBackgroundPaint returns the paint used to measure and fill the
// label background
func DefaultTextBackgroundPaint() Paint {
	return Paint{Color: color.Black, Style: Fill, TextSize: LabelBackgroundTextSize}
}

// DefaultTextPaint returns the paint used for label text
func DefaultTextPaint() Paint {
	return Paint{Color: color.White, Style: Fill, TextSize: LabelTextSize}
}
