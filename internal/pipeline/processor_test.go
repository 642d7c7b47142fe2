package pipeline

import (
	"context"
	"errors"
	"image"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-carlost-detector/internal/detector"
	apperrors "go-carlost-detector/internal/errors"
	"go-carlost-detector/internal/notify"
	"go-carlost-detector/internal/overlay"
	"go-carlost-detector/internal/strategy"
)

type scriptedDetector struct {
	mu       sync.Mutex
	outcomes []detector.Outcome
	calls    int
	release  chan struct{}
}

func (d *scriptedDetector) Detect(ctx context.Context, img image.Image, rotationDegrees int) detector.Outcome {
	if d.release != nil {
		<-d.release
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	o := d.outcomes[d.calls%len(d.outcomes)]
	d.calls++
	return o
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Publish(ctx context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) Name() string { return "recording" }
func (n *recordingNotifier) Close() error { return nil }

func (n *recordingNotifier) snapshot() []notify.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Message, len(n.messages))
	copy(out, n.messages)
	return out
}

type recordingSink struct {
	updates atomic.Int64
	last    atomic.Value
}

func (s *recordingSink) Post(ctx context.Context, u overlay.Update) bool {
	s.last.Store(u)
	s.updates.Add(1)
	return true
}

func labeled(label string, score float32) detector.Detection {
	return detector.Detection{
		BoundingBox: detector.BoundingBox{Left: 1, Top: 1, Right: 5, Bottom: 5},
		Categories:  []detector.Category{{Label: label, Score: score}},
	}
}

func testFrame() Frame {
	return NewFrame(image.NewRGBA(image.Rect(0, 0, 8, 4)), 0)
}

func waitIdle(t *testing.T, p *Processor, completedOrFailed int64) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := p.Stats()
		if s.Completed+s.Failed >= completedOrFailed && !s.Active {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d processed frames, stats %+v", completedOrFailed, p.Stats())
}

func noInterval() Options {
	opts := DefaultOptions()
	opts.DetectInterval = 0
	return opts
}

func TestProcessor_DropsWhileInFlight(t *testing.T) {
	det := &scriptedDetector{
		outcomes: []detector.Outcome{{Detections: []detector.Detection{labeled("cup", 0.9)}}},
		release:  make(chan struct{}),
	}
	p := NewProcessor(det, nil, nil, nil, nil, noInterval())
	defer p.Close()

	if !p.Submit(testFrame()) {
		t.Fatal("Expected first frame to be accepted")
	}
	if p.Submit(testFrame()) {
		t.Error("Expected second frame to be dropped while first is in flight")
	}

	close(det.release)
	waitIdle(t, p, 1)

	if !p.Submit(testFrame()) {
		t.Error("Expected frame to be accepted once idle")
	}
	waitIdle(t, p, 2)

	stats := p.Stats()
	if stats.Submitted != 3 || stats.Dropped != 1 || stats.Completed != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.LastSeq != 3 {
		t.Errorf("Expected last processed seq 3, got %d", stats.LastSeq)
	}
}

func TestProcessor_DetectInterval(t *testing.T) {
	det := &scriptedDetector{outcomes: []detector.Outcome{{}}}
	opts := DefaultOptions()
	opts.DetectInterval = time.Hour
	p := NewProcessor(det, nil, nil, nil, nil, opts)
	defer p.Close()

	if !p.Submit(testFrame()) {
		t.Fatal("Expected first frame to be accepted")
	}
	waitIdle(t, p, 1)

	if p.Submit(testFrame()) {
		t.Error("Expected frame inside the detect interval to be dropped")
	}
	if p.Stats().Active {
		t.Error("Expected processor to be idle after an interval drop")
	}
}

func TestProcessor_PipelineStages(t *testing.T) {
	det := &scriptedDetector{outcomes: []detector.Outcome{
		{Detections: []detector.Detection{labeled("bag", 0.8)}, ImageHeight: 4, ImageWidth: 8},
		{Detections: []detector.Detection{labeled("person", 0.9), labeled("bag", 0.8)}, ImageHeight: 4, ImageWidth: 8},
		{Detections: []detector.Detection{labeled("bag", 0.8), labeled("phone", 0.7), labeled("seat", 0.99)}, ImageHeight: 4, ImageWidth: 8},
	}}
	tracker := strategy.NewTracker(strategy.NewPresenceStrategy("person"), true)
	notifier := &recordingNotifier{}
	sink := &recordingSink{}
	opts := noInterval()
	opts.ExcludeLabels = []string{"seat"}
	p := NewProcessor(det, tracker, notifier, sink, nil, opts)
	defer p.Close()

	for i := 1; i <= 3; i++ {
		if !p.Submit(testFrame()) {
			t.Fatalf("Expected frame %d to be accepted", i)
		}
		waitIdle(t, p, int64(i))
	}

	messages := notifier.snapshot()
	if len(messages) != 4 {
		t.Fatalf("Expected 3 labels messages and 1 lost items message, got %d", len(messages))
	}
	if messages[0].Text != "bag/" || messages[1].Text != "person/bag/" {
		t.Errorf("Unexpected labels texts %q, %q", messages[0].Text, messages[1].Text)
	}
	if messages[2].Text != "bag/phone/" {
		t.Errorf("Expected excluded label to be filtered, got %q", messages[2].Text)
	}
	lost := messages[3]
	if lost.Type != notify.LostItemsMessage || !reflect.DeepEqual(lost.Labels, []string{"phone"}) {
		t.Errorf("Expected lost phone, got %+v", lost)
	}

	if sink.updates.Load() != 3 {
		t.Errorf("Expected 3 overlay updates, got %d", sink.updates.Load())
	}
	last := sink.last.Load().(overlay.Update)
	if len(last.Results) != 2 || last.ImageWidth != 8 || last.Frame == nil {
		t.Errorf("Unexpected last overlay update %+v", last)
	}
}

func TestProcessor_OverlayUsesUprightFrame(t *testing.T) {
	upright := image.NewRGBA(image.Rect(0, 0, 4, 8))
	det := &scriptedDetector{outcomes: []detector.Outcome{
		{Detections: []detector.Detection{labeled("bag", 0.8)}, ImageHeight: 8, ImageWidth: 4, Upright: upright},
		{ImageHeight: 8, ImageWidth: 4},
	}}
	sink := &recordingSink{}
	p := NewProcessor(det, strategy.NewTracker(strategy.NewPresenceStrategy("person"), false), nil, sink, nil, noInterval())
	defer p.Close()

	p.Submit(NewFrame(image.NewRGBA(image.Rect(0, 0, 8, 4)), 90))
	waitIdle(t, p, 1)
	if got := sink.last.Load().(overlay.Update).Frame; got != image.Image(upright) {
		t.Error("Expected overlay to reuse the frame the detector rotated")
	}

	p.Submit(NewFrame(image.NewRGBA(image.Rect(0, 0, 8, 4)), 90))
	waitIdle(t, p, 2)
	frame := sink.last.Load().(overlay.Update).Frame
	if b := frame.Bounds(); b.Dx() != 4 || b.Dy() != 8 {
		t.Errorf("Expected rotated 4x8 frame, got %v", b)
	}
}

func TestProcessor_NoLabelFallback(t *testing.T) {
	det := &scriptedDetector{outcomes: []detector.Outcome{{}}}
	notifier := &recordingNotifier{}
	p := NewProcessor(det, nil, notifier, nil, nil, noInterval())
	defer p.Close()

	p.Submit(testFrame())
	waitIdle(t, p, 1)

	messages := notifier.snapshot()
	if len(messages) != 1 || messages[0].Text != "none" {
		t.Errorf("Expected a single 'none' message, got %+v", messages)
	}
}

func TestProcessor_Failures(t *testing.T) {
	det := &scriptedDetector{outcomes: []detector.Outcome{
		{Err: apperrors.NewEngineInitError("init", errors.New("missing model")), ImageHeight: 4, ImageWidth: 8},
		{Err: apperrors.NewInferenceError("inference", errors.New("bad tensor"))},
	}}
	notifier := &recordingNotifier{}
	sink := &recordingSink{}
	p := NewProcessor(det, nil, notifier, sink, nil, noInterval())
	defer p.Close()

	p.Submit(testFrame())
	waitIdle(t, p, 1)
	p.Submit(testFrame())
	waitIdle(t, p, 2)

	if p.Stats().Failed != 2 {
		t.Errorf("Expected 2 failed frames, got %d", p.Stats().Failed)
	}
	if len(notifier.snapshot()) != 0 {
		t.Error("Expected no notifications for failed frames")
	}
	if sink.updates.Load() != 1 {
		t.Errorf("Expected only the init failure to clear the overlay, got %d updates", sink.updates.Load())
	}
}

func TestProcessor_SubmitAfterClose(t *testing.T) {
	p := NewProcessor(&scriptedDetector{outcomes: []detector.Outcome{{}}}, nil, nil, nil, nil, noInterval())
	p.Close()

	if p.Submit(testFrame()) {
		t.Error("Expected submit after close to be rejected")
	}
}
