package overlay

import (
	"bytes"
	"context"
	"image"
	"sync"
	"time"

	"go-carlost-detector/internal/detector"
	"go-carlost-detector/internal/logger"
)

// Update is a new set of results to show over a frame
type Update struct {
	Results     []detector.Detection
	ImageHeight int
	ImageWidth  int
	// Frame is the upright source frame; nil renders a transparent overlay
	Frame image.Image
}

// Snapshot is the most recently rendered overlay
type Snapshot struct {
	PNG        []byte
	Version    uint64
	Detections int
	RenderedAt time.Time
}

type command struct {
	update *Update
	clear  bool
}

// RenderLoop owns a Renderer on a single goroutine. Other goroutines hand
// work to it through Post and PostClear and read the latest
// rendered PNG through Snapshot.
type RenderLoop struct {
	renderer *Renderer
	commands chan command
	done     chan struct{}

	dirty bool
	frame image.Image

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewRenderLoop creates a loop for a view of the given size
func NewRenderLoop(viewWidth, viewHeight int) *RenderLoop {
	l := &RenderLoop{
		renderer: NewRenderer(viewWidth, viewHeight),
		commands: make(chan command, 16),
		done:     make(chan struct{}),
	}
	l.renderer.Invalidate = func() { l.dirty = true }
	return l
}

// Run processes posted commands until ctx is cancelled
func (l *RenderLoop) Run(ctx context.Context) {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-l.commands:
			l.apply(cmd)
			if l.dirty {
				l.dirty = false
				l.redraw()
			}
		}
	}
}

func (l *RenderLoop) apply(cmd command) {
	switch {
	case cmd.clear:
		l.frame = nil
		l.renderer.Clear()
	case cmd.update != nil:
		l.frame = cmd.update.Frame
		l.renderer.SetResults(cmd.update.Results, cmd.update.ImageHeight, cmd.update.ImageWidth)
	}
}

func (l *RenderLoop) redraw() {
	w, h := l.renderer.ViewSize()
	png, err := renderPNG(l.renderer, l.frame, w, h)
	if err != nil {
		logger.WithError(err).Error("Failed to render overlay")
		return
	}

	l.mu.Lock()
	l.snapshot = Snapshot{
		PNG:        png,
		Version:    l.snapshot.Version + 1,
		Detections: len(l.renderer.Results()),
		RenderedAt: time.Now(),
	}
	l.mu.Unlock()
}

func (l *RenderLoop) post(ctx context.Context, cmd command) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.commands <- cmd:
		return true
	case <-l.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Post hands new results to the loop. It returns false when the loop has
// stopped or ctx ends first.
func (l *RenderLoop) Post(ctx context.Context, u Update) bool {
	return l.post(ctx, command{update: &u})
}

// PostClear asks the loop to clear the overlay
func (l *RenderLoop) PostClear(ctx context.Context) bool {
	return l.post(ctx, command{clear: true})
}

// Snapshot returns the latest rendered overlay. Version is zero before the
// first redraw.
func (l *RenderLoop) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshot
}

// RenderPNG draws results for a one-off view and returns the PNG bytes
func RenderPNG(results []detector.Detection, imageHeight, imageWidth int, frame image.Image, viewWidth, viewHeight int) ([]byte, error) {
	r := NewRenderer(viewWidth, viewHeight)
	r.SetResults(results, imageHeight, imageWidth)
	return renderPNG(r, frame, viewWidth, viewHeight)
}

func renderPNG(r *Renderer, frame image.Image, width, height int) ([]byte, error) {
	canvas, err := NewGGCanvas(width, height)
	if err != nil {
		return nil, err
	}
	canvas.DrawBackground(frame, r.Scale())
	r.Draw(canvas)

	var buf bytes.Buffer
	if err := canvas.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
