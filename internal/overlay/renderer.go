package overlay

import (
	"fmt"
	"math"

	"go-carlost-detector/internal/detector"
)

// state is replaced as a whole on every update
type state struct {
	results     []detector.Detection
	imageWidth  int
	imageHeight int
	scale       float64
}

// Renderer draws detection boxes and labels scaled from image space into a
// view. It is not safe for concurrent use; RenderLoop owns one from a single
// goroutine.
type Renderer struct {
	viewWidth  int
	viewHeight int
	state      state

	boxPaint            Paint
	textBackgroundPaint Paint
	textPaint           Paint

	// Invalidate is called whenever a redraw is needed
	Invalidate func()
}

// NewRenderer creates a renderer for a view of the given pixel size
func NewRenderer(viewWidth, viewHeight int) *Renderer {
	r := &Renderer{
		viewWidth:  viewWidth,
		viewHeight: viewHeight,
		state:      state{scale: 1},
	}
	r.initPaints()
	return r
}

func (r *Renderer) initPaints() {
	r.boxPaint = DefaultBoxPaint()
	r.textBackgroundPaint = DefaultTextBackgroundPaint()
	r.textPaint = DefaultTextPaint()
}

func (r *Renderer) invalidate() {
	if r.Invalidate != nil {
		r.Invalidate()
	}
}

// Resize records a new view size. The scale is recomputed on the next SetResults.
func (r *Renderer) Resize(viewWidth, viewHeight int) {
	r.viewWidth = viewWidth
	r.viewHeight = viewHeight
}

// ViewSize returns the current view size
func (r *Renderer) ViewSize() (width, height int) {
	return r.viewWidth, r.viewHeight
}

// Scale returns the factor applied to boxes on the next Draw
func (r *Renderer) Scale() float64 {
	return r.state.scale
}

// Results returns the detections that will be drawn
func (r *Renderer) Results() []detector.Detection {
	return r.state.results
}

// SetResults replaces the held results and recomputes the scale against the
// current view size. A view that has not been laid out yields a degenerate
// scale of zero or infinity.
func (r *Renderer) SetResults(results []detector.Detection, imageHeight, imageWidth int) {
	held := make([]detector.Detection, len(results))
	copy(held, results)
	r.state = state{
		results:     held,
		imageWidth:  imageWidth,
		imageHeight: imageHeight,
		scale:       ScaleFactor(r.viewWidth, r.viewHeight, imageWidth, imageHeight),
	}
	r.invalidate()
}

// Clear resets paints to their defaults and drops all results
func (r *Renderer) Clear() {
	r.state = state{scale: 1}
	r.initPaints()
	r.invalidate()
}

// Draw paints every held result in order: the scaled box outline, a label
// background sized to the text plus padding and the label text itself.
func (r *Renderer) Draw(c Canvas) {
	for _, result := range r.state.results {
		box := ScaleBox(result.BoundingBox, r.state.scale)
		c.StrokeRect(box, r.boxPaint)

		text := LabelText(result)
		textWidth, textHeight := c.TextBounds(text, r.textBackgroundPaint)
		c.FillRect(Rect{
			Left:   box.Left,
			Top:    box.Top,
			Right:  box.Left + textWidth + TextPadding,
			Bottom: box.Top + textHeight + TextPadding,
		}, r.textBackgroundPaint)

		c.DrawText(text, box.Left, box.Top+textHeight, r.textPaint)
	}
}

// ScaleFactor returns the fill scale that maps an image onto a view
func ScaleFactor(viewWidth, viewHeight, imageWidth, imageHeight int) float64 {
	return math.Max(
		float64(viewWidth)/float64(imageWidth),
		float64(viewHeight)/float64(imageHeight),
	)
}

// ScaleBox multiplies every edge of box by scale
func ScaleBox(box detector.BoundingBox, scale float64) Rect {
	return Rect{
		Left:   float64(box.Left) * scale,
		Top:    float64(box.Top) * scale,
		Right:  float64(box.Right) * scale,
		Bottom: float64(box.Bottom) * scale,
	}
}

// LabelText formats the top category as "<label> <score>" with two decimals
func LabelText(d detector.Detection) string {
	top := d.TopCategory()
	return fmt.Sprintf("%s %.2f", top.Label, top.Score)
}
