package overlay

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce   sync.Once
	regular    *truetype.Font
	regularErr error
)

// Font returns the Go regular font used for labels
func Font() (*truetype.Font, error) {
	fontOnce.Do(func() {
		regular, regularErr = truetype.Parse(goregular.TTF)
	})
	return regular, regularErr
}

// GGCanvas is a Canvas backed by an in-memory gg context
type GGCanvas struct {
	dc    *gg.Context
	font  *truetype.Font
	faces map[float64]font.Face
}

// NewGGCanvas creates a transparent canvas of the given size
func NewGGCanvas(width, height int) (*GGCanvas, error) {
	f, err := Font()
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	return &GGCanvas{
		dc:    gg.NewContext(width, height),
		font:  f,
		faces: make(map[float64]font.Face),
	}, nil
}

// DrawBackground paints frame under the overlay, scaled by scale from its
// top-left corner so it lines up with boxes scaled by the same factor.
func (c *GGCanvas) DrawBackground(frame image.Image, scale float64) {
	if frame == nil || scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return
	}
	b := frame.Bounds()
	w := int(float64(b.Dx())*scale + 0.5)
	h := int(float64(b.Dy())*scale + 0.5)
	if w <= 0 || h <= 0 {
		return
	}
	c.dc.DrawImage(imaging.Resize(frame, w, h, imaging.Linear), 0, 0)
}

func (c *GGCanvas) face(size float64) font.Face {
	if f, ok := c.faces[size]; ok {
		return f
	}
	f := truetype.NewFace(c.font, &truetype.Options{Size: size})
	c.faces[size] = f
	return f
}

func (c *GGCanvas) setColor(p Paint) {
	if p.Color == nil {
		c.dc.SetColor(color.Black)
		return
	}
	c.dc.SetColor(p.Color)
}

// StrokeRect outlines r
func (c *GGCanvas) StrokeRect(r Rect, p Paint) {
	c.setColor(p)
	c.dc.SetLineWidth(p.StrokeWidth)
	c.dc.DrawRectangle(r.Left, r.Top, r.Width(), r.Height())
	c.dc.Stroke()
}

// FillRect fills r
func (c *GGCanvas) FillRect(r Rect, p Paint) {
	c.setColor(p)
	c.dc.DrawRectangle(r.Left, r.Top, r.Width(), r.Height())
	c.dc.Fill()
}

// DrawText draws text with its baseline at y
func (c *GGCanvas) DrawText(text string, x, y float64, p Paint) {
	c.dc.SetFontFace(c.face(p.TextSize))
	c.setColor(p)
	c.dc.DrawString(text, x, y)
}

// TextBounds measures text at the paint's text size
func (c *GGCanvas) TextBounds(text string, p Paint) (width, height float64) {
	c.dc.SetFontFace(c.face(p.TextSize))
	return c.dc.MeasureString(text)
}

// EncodePNG writes the canvas as a PNG
func (c *GGCanvas) EncodePNG(w io.Writer) error {
	return c.dc.EncodePNG(w)
}
