package pipeline

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"go-carlost-detector/internal/detector"
	apperrors "go-carlost-detector/internal/errors"
	"go-carlost-detector/internal/logger"
	"go-carlost-detector/internal/notify"
	"go-carlost-detector/internal/observer"
	"go-carlost-detector/internal/overlay"
	"go-carlost-detector/internal/strategy"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultDetectInterval is the minimum spacing between accepted frames
const DefaultDetectInterval = 500 * time.Millisecond

// Frame is one camera frame waiting for detection
type Frame struct {
	ID        uuid.UUID
	Seq       uint64
	Image     image.Image
	Rotation  int
	Timestamp time.Time
}

// NewFrame wraps img with a fresh ID and the current time
func NewFrame(img image.Image, rotation int) Frame {
	return Frame{
		ID:        uuid.New(),
		Image:     img,
		Rotation:  rotation,
		Timestamp: time.Now(),
	}
}

// Detector runs one frame through the detection engine
type Detector interface {
	Detect(ctx context.Context, img image.Image, rotationDegrees int) detector.Outcome
}

// BoardingTracker turns per-frame labels into boarding verdicts
type BoardingTracker interface {
	Observe(labels []string) strategy.Verdict
}

// OverlaySink receives results to draw
type OverlaySink interface {
	Post(ctx context.Context, u overlay.Update) bool
}

// Options configures a Processor
type Options struct {
	DetectInterval time.Duration
	ExcludeLabels  []string
	NoLabelText    string
	FrameTimeout   time.Duration
}

// DefaultOptions returns the defaults used by the cabin camera
func DefaultOptions() Options {
	return Options{
		DetectInterval: DefaultDetectInterval,
		NoLabelText:    "none",
		FrameTimeout:   10 * time.Second,
	}
}

// Stats are cumulative frame counters
type Stats struct {
	Submitted int64  `json:"submitted"`
	Dropped   int64  `json:"dropped"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
	Active    bool   `json:"active"`
	LastSeq   uint64 `json:"last_seq"`
}

// Processor accepts at most one frame at a time and no more often than the
// detect interval. Frames arriving while one is in flight are dropped, not
// queued.
type Processor struct {
	detector Detector
	tracker  BoardingTracker
	notifier notify.Notifier
	overlay  OverlaySink
	events   observer.Subject
	opts     Options

	limiter *rate.Limiter
	pool    *WorkerPool
	busy    atomic.Bool
	seq     atomic.Uint64

	submitted atomic.Int64
	dropped   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	lastSeq   atomic.Uint64
}

// NewProcessor wires the stages of the frame pipeline. tracker, notifier,
// sink and events may be nil.
func NewProcessor(det Detector, tracker BoardingTracker, notifier notify.Notifier, sink OverlaySink, events observer.Subject, opts Options) *Processor {
	limit := rate.Inf
	if opts.DetectInterval > 0 {
		limit = rate.Every(opts.DetectInterval)
	}
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultOptions().FrameTimeout
	}

	pool := NewWorkerPool(1)
	pool.Start()

	return &Processor{
		detector: det,
		tracker:  tracker,
		notifier: notifier,
		overlay:  sink,
		events:   events,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		pool:     pool,
	}
}

// Submit offers a frame for detection. It returns false when the frame was
// dropped because another frame is in flight or the detect interval has not
// elapsed.
func (p *Processor) Submit(frame Frame) bool {
	p.submitted.Add(1)
	frame.Seq = p.seq.Add(1)
	if frame.ID == uuid.Nil {
		frame.ID = uuid.New()
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	if !p.busy.CompareAndSwap(false, true) {
		p.drop(frame, "in_flight")
		return false
	}
	if !p.limiter.Allow() {
		p.busy.Store(false)
		p.drop(frame, "interval")
		return false
	}

	accepted := p.pool.TrySubmit(func() {
		defer p.busy.Store(false)
		p.process(frame)
	})
	if !accepted {
		p.busy.Store(false)
		p.drop(frame, "closed")
		return false
	}

	p.publish(observer.DetectionEvent{
		EventType: observer.FrameAccepted,
		FrameID:   frame.ID.String(),
		Success:   true,
	})
	return true
}

func (p *Processor) drop(frame Frame, reason string) {
	p.dropped.Add(1)
	p.publish(observer.DetectionEvent{
		EventType: observer.FrameDropped,
		FrameID:   frame.ID.String(),
		Metadata:  map[string]interface{}{"reason": reason},
	})
}

func (p *Processor) publish(event observer.DetectionEvent) {
	if p.events == nil {
		return
	}
	p.events.NotifyObservers(context.Background(), event)
}

func (p *Processor) process(frame Frame) {
	ctx, cancel := context.WithTimeout(context.Background(), p.opts.FrameTimeout)
	defer cancel()

	frameID := frame.ID.String()
	outcome := p.detector.Detect(ctx, frame.Image, frame.Rotation)
	p.lastSeq.Store(frame.Seq)

	if outcome.Err != nil {
		p.failed.Add(1)
		eventType := observer.DetectionFailed
		if apperrors.IsType(outcome.Err, apperrors.ErrorTypeEngineInit) {
			eventType = observer.EngineInitFailed
		}
		p.publish(observer.DetectionEvent{
			EventType:     eventType,
			FrameID:       frameID,
			InferenceTime: outcome.InferenceTime,
			ErrorMessage:  outcome.Err.Error(),
		})
		if eventType == observer.EngineInitFailed {
			p.post(ctx, frame, nil, outcome)
		}
		return
	}

	results := detector.FilterExcluded(outcome.Detections, p.opts.ExcludeLabels)
	labels := detector.Labels(results)

	var verdict strategy.Verdict
	if p.tracker != nil {
		verdict = p.tracker.Observe(labels)
	}

	if p.notifier != nil {
		if err := p.notifier.Publish(ctx, notify.NewLabelsMessage(frameID, labels, p.opts.NoLabelText)); err != nil {
			logger.WithError(err).WithField("frame_id", frameID).Warn("Failed to publish labels")
		}
		if len(verdict.LostItems) > 0 {
			if err := p.notifier.Publish(ctx, notify.NewLostItemsMessage(frameID, verdict.LostItems)); err != nil {
				logger.WithError(err).WithField("frame_id", frameID).Error("Failed to publish lost items")
			}
		}
	}
	if len(verdict.LostItems) > 0 {
		p.publish(observer.DetectionEvent{
			EventType: observer.LostItemsFound,
			FrameID:   frameID,
			Labels:    verdict.LostItems,
			Success:   true,
		})
	}

	p.post(ctx, frame, results, outcome)
	p.completed.Add(1)

	p.publish(observer.DetectionEvent{
		EventType:     observer.DetectionCompleted,
		FrameID:       frameID,
		InferenceTime: outcome.InferenceTime,
		Detections:    len(results),
		Labels:        labels,
		Success:       true,
	})

	logger.WithFields(logrus.Fields{
		"frame_id":          frameID,
		"seq":               frame.Seq,
		"labels":            labels,
		"inference_time_ms": outcome.InferenceTimeMs(),
		"state":             verdict.State,
	}).Debug("Frame processed")
}

func (p *Processor) post(ctx context.Context, frame Frame, results []detector.Detection, outcome detector.Outcome) {
	if p.overlay == nil {
		return
	}
	p.overlay.Post(ctx, overlay.Update{
		Results:     results,
		ImageHeight: outcome.ImageHeight,
		ImageWidth:  outcome.ImageWidth,
		Frame:       outcome.UprightFrame(frame.Image, frame.Rotation),
	})
}

// Stats returns the current counters
func (p *Processor) Stats() Stats {
	return Stats{
		Submitted: p.submitted.Load(),
		Dropped:   p.dropped.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Active:    p.busy.Load(),
		LastSeq:   p.lastSeq.Load(),
	}
}

// Close stops accepting frames and waits for the in-flight frame
func (p *Processor) Close() {
	p.pool.Close()
}
