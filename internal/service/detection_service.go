package service

import (
	"context"
	"errors"
	"image"
	"strings"
	"time"

	"go-carlost-detector/internal/detector"
	apperrors "go-carlost-detector/internal/errors"
	"go-carlost-detector/internal/logger"
	"go-carlost-detector/internal/notify"
	"go-carlost-detector/internal/observer"
	"go-carlost-detector/internal/overlay"
	"go-carlost-detector/internal/pipeline"
	"go-carlost-detector/internal/repository"
	"go-carlost-detector/internal/strategy"
	"go-carlost-detector/pkg/models"
	"go-carlost-detector/pkg/validation"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DetectionService is the application surface used by the HTTP transport
type DetectionService interface {
	// Synchronous detection
	Detect(ctx context.Context, img image.Image, rotation int) (*models.DetectResponse, error)
	DetectURL(ctx context.Context, frameURL string, rotation int) (*models.DetectResponse, error)
	RenderOverlay(ctx context.Context, img image.Image, rotation, viewWidth, viewHeight int) ([]byte, error)
	RenderOverlayURL(ctx context.Context, frameURL string, rotation, viewWidth, viewHeight int) ([]byte, error)

	// Streaming pipeline
	Ingest(img image.Image, rotation int) (string, error)
	Snapshot() overlay.Snapshot

	// Tracking and engine control
	Status() models.StatusResponse
	SetTracking(req models.TrackingRequest) (strategy.TrackerStatus, error)
	SetCabinSignals(doorOpen, seatOccupied bool) (strategy.TrackerStatus, error)
	ClearEngine()
	Metrics() map[string]interface{}
}

// Invoker is the detection engine owner the service drives
type Invoker interface {
	Detect(ctx context.Context, img image.Image, rotationDegrees int) detector.Outcome
	HasEngine() bool
	ClearEngine()
	Options() detector.Options
}

// FrameProcessor accepts frames for asynchronous detection
type FrameProcessor interface {
	Submit(frame pipeline.Frame) bool
	Stats() pipeline.Stats
}

// SnapshotSource provides the latest rendered overlay
type SnapshotSource interface {
	Snapshot() overlay.Snapshot
}

// Dependencies are the collaborators of the detection service. Processor,
// Overlay, Events, Metrics and Hub may be nil.
type Dependencies struct {
	Invoker   Invoker
	Frames    repository.FrameRepository
	Tracker   *strategy.Tracker
	Processor FrameProcessor
	Overlay   SnapshotSource
	Events    observer.Subject
	Metrics   *observer.MetricsObserver
	Hub       *notify.Hub
}

// Options holds service level settings
type Options struct {
	ExcludeLabels []string
	NoLabelText   string
	PersonLabel   string
	ViewWidth     int
	ViewHeight    int
	Limits        validation.FrameLimits
}

type detectionService struct {
	deps Dependencies
	opts Options
}

// NewDetectionService creates a new detection service
func NewDetectionService(deps Dependencies, opts Options) DetectionService {
	if opts.Limits == (validation.FrameLimits{}) {
		opts.Limits = validation.DefaultFrameLimits()
	}
	return &detectionService{
		deps: deps,
		opts: opts,
	}
}

// Detect runs one frame through the engine without touching tracking state
func (s *detectionService) Detect(ctx context.Context, img image.Image, rotation int) (*models.DetectResponse, error) {
	if err := s.validateFrame(img, rotation); err != nil {
		return nil, err
	}

	frameID := uuid.NewString()
	outcome := s.deps.Invoker.Detect(ctx, img, rotation)
	if outcome.Err != nil {
		s.publishFailure(frameID, outcome)
		return nil, outcome.Err
	}

	results := detector.FilterExcluded(outcome.Detections, s.opts.ExcludeLabels)
	labels := detector.Labels(results)
	s.publish(observer.DetectionEvent{
		EventType:     observer.DetectionCompleted,
		FrameID:       frameID,
		InferenceTime: outcome.InferenceTime,
		Detections:    len(results),
		Labels:        labels,
		Success:       true,
	})

	if results == nil {
		results = []detector.Detection{}
	}
	if labels == nil {
		labels = []string{}
	}
	return &models.DetectResponse{
		FrameID:         frameID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Detections:      results,
		Labels:          labels,
		LabelText:       notify.JoinLabels(labels, s.opts.NoLabelText),
		InferenceTimeMs: outcome.InferenceTimeMs(),
		ImageHeight:     outcome.ImageHeight,
		ImageWidth:      outcome.ImageWidth,
	}, nil
}

// DetectURL fetches a frame and runs it through Detect
func (s *detectionService) DetectURL(ctx context.Context, frameURL string, rotation int) (*models.DetectResponse, error) {
	img, err := s.fetch(ctx, frameURL)
	if err != nil {
		return nil, err
	}
	return s.Detect(ctx, img, rotation)
}

// RenderOverlay draws the detections of one frame over it and returns a PNG.
// An engine that failed to load renders the frame with no boxes.
func (s *detectionService) RenderOverlay(ctx context.Context, img image.Image, rotation, viewWidth, viewHeight int) ([]byte, error) {
	if viewWidth == 0 && viewHeight == 0 {
		viewWidth, viewHeight = s.opts.ViewWidth, s.opts.ViewHeight
	}
	if err := s.opts.Limits.ValidateView(viewWidth, viewHeight); err != nil {
		return nil, err
	}
	if err := s.validateFrame(img, rotation); err != nil {
		return nil, err
	}

	outcome := s.deps.Invoker.Detect(ctx, img, rotation)
	var results []detector.Detection
	if outcome.Err != nil {
		s.publishFailure(uuid.NewString(), outcome)
		if !apperrors.IsType(outcome.Err, apperrors.ErrorTypeEngineInit) {
			return nil, outcome.Err
		}
	} else {
		results = detector.FilterExcluded(outcome.Detections, s.opts.ExcludeLabels)
	}

	png, err := overlay.RenderPNG(results, outcome.ImageHeight, outcome.ImageWidth,
		outcome.UprightFrame(img, rotation), viewWidth, viewHeight)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to render overlay", err)
	}
	return png, nil
}

// RenderOverlayURL fetches a frame and runs it through RenderOverlay
func (s *detectionService) RenderOverlayURL(ctx context.Context, frameURL string, rotation, viewWidth, viewHeight int) ([]byte, error) {
	img, err := s.fetch(ctx, frameURL)
	if err != nil {
		return nil, err
	}
	return s.RenderOverlay(ctx, img, rotation, viewWidth, viewHeight)
}

// Ingest hands a frame to the pipeline. The frame ID is returned even when
// the frame is dropped.
func (s *detectionService) Ingest(img image.Image, rotation int) (string, error) {
	if s.deps.Processor == nil {
		return "", apperrors.NewInternalError("frame pipeline is not running", nil)
	}
	if err := s.validateFrame(img, rotation); err != nil {
		return "", err
	}

	frame := pipeline.NewFrame(img, rotation)
	if !s.deps.Processor.Submit(frame) {
		return frame.ID.String(), apperrors.NewBusyError("frame dropped, detection in progress", nil)
	}
	return frame.ID.String(), nil
}

// Snapshot returns the latest overlay rendered by the pipeline
func (s *detectionService) Snapshot() overlay.Snapshot {
	if s.deps.Overlay == nil {
		return overlay.Snapshot{}
	}
	return s.deps.Overlay.Snapshot()
}

// Status reports engine, tracker and pipeline state
func (s *detectionService) Status() models.StatusResponse {
	opts := s.deps.Invoker.Options()
	status := models.StatusResponse{
		EngineLoaded:   s.deps.Invoker.HasEngine(),
		ModelName:      opts.ModelName,
		ScoreThreshold: opts.ScoreThreshold,
		MaxResults:     opts.MaxResults,
	}
	if s.deps.Tracker != nil {
		status.Tracker = s.deps.Tracker.Status()
	}
	if s.deps.Processor != nil {
		status.Pipeline = s.deps.Processor.Stats()
	}
	snap := s.Snapshot()
	status.Overlay = models.OverlayStatus{
		Version:    snap.Version,
		Detections: snap.Detections,
		RenderedAt: snap.RenderedAt,
	}
	if s.deps.Hub != nil {
		status.Subscribers = s.deps.Hub.Subscribers()
	}
	return status
}

// SetTracking switches lost item tracking and optionally the strategy
func (s *detectionService) SetTracking(req models.TrackingRequest) (strategy.TrackerStatus, error) {
	if s.deps.Tracker == nil {
		return strategy.TrackerStatus{}, apperrors.NewInternalError("tracking is not configured", nil)
	}
	if req.Active == nil {
		return strategy.TrackerStatus{}, apperrors.NewValidationError("active is required", nil)
	}

	if name := strings.TrimSpace(req.Strategy); name != "" {
		next, err := strategy.New(name, s.opts.PersonLabel)
		if err != nil {
			return strategy.TrackerStatus{}, apperrors.NewValidationError(err.Error(), err)
		}
		if next.GetStrategyName() != s.deps.Tracker.Status().Strategy {
			s.deps.Tracker.SetStrategy(next)
		}
	}
	if req.Reset {
		s.deps.Tracker.Reset()
	}
	s.deps.Tracker.SetActive(*req.Active)

	status := s.deps.Tracker.Status()
	logger.WithFields(logrus.Fields{
		"active":   status.Active,
		"strategy": status.Strategy,
		"reset":    req.Reset,
	}).Info("Tracking updated")
	return status, nil
}

// SetCabinSignals forwards door and seat signals to the boarding strategy
func (s *detectionService) SetCabinSignals(doorOpen, seatOccupied bool) (strategy.TrackerStatus, error) {
	if s.deps.Tracker == nil {
		return strategy.TrackerStatus{}, apperrors.NewInternalError("tracking is not configured", nil)
	}
	if !s.deps.Tracker.SetSignals(doorOpen, seatOccupied) {
		return strategy.TrackerStatus{}, apperrors.NewValidationError(
			"boarding strategy "+s.deps.Tracker.Status().Strategy+" does not use cabin signals", nil)
	}
	return s.deps.Tracker.Status(), nil
}

// ClearEngine releases the engine; the next frame loads it again
func (s *detectionService) ClearEngine() {
	s.deps.Invoker.ClearEngine()
	s.publish(observer.DetectionEvent{
		EventType: observer.EngineCleared,
		Success:   true,
	})
}

// Metrics returns the aggregated event counters
func (s *detectionService) Metrics() map[string]interface{} {
	if s.deps.Metrics == nil {
		return map[string]interface{}{}
	}
	return s.deps.Metrics.GetMetrics()
}

func (s *detectionService) validateFrame(img image.Image, rotation int) error {
	if err := validation.ValidateRotation(rotation); err != nil {
		return err
	}
	return s.opts.Limits.ValidateFrame(img)
}

func (s *detectionService) fetch(ctx context.Context, frameURL string) (image.Image, error) {
	if s.deps.Frames == nil {
		return nil, apperrors.NewInternalError("frame sources are not configured", nil)
	}
	img, err := s.deps.Frames.FetchFrame(ctx, frameURL)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidFrameURL) || apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, err
		}
		var fetchErr *apperrors.AppError
		if errors.Is(err, context.DeadlineExceeded) {
			fetchErr = apperrors.NewTimeoutError("Frame fetch timeout", err)
		} else {
			fetchErr = apperrors.NewNetworkError("Failed to fetch frame", err)
		}
		s.publish(observer.DetectionEvent{
			EventType:    observer.FrameFetchFailed,
			ErrorMessage: fetchErr.Error(),
			Metadata:     map[string]interface{}{"url": frameURL},
		})
		return nil, fetchErr
	}

	s.publish(observer.DetectionEvent{
		EventType: observer.FrameFetched,
		Success:   true,
		Metadata:  map[string]interface{}{"url": frameURL},
	})
	return img, nil
}

func (s *detectionService) publishFailure(frameID string, outcome detector.Outcome) {
	eventType := observer.DetectionFailed
	if apperrors.IsType(outcome.Err, apperrors.ErrorTypeEngineInit) {
		eventType = observer.EngineInitFailed
	}
	s.publish(observer.DetectionEvent{
		EventType:     eventType,
		FrameID:       frameID,
		InferenceTime: outcome.InferenceTime,
		ErrorMessage:  outcome.Err.Error(),
	})
}

func (s *detectionService) publish(event observer.DetectionEvent) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.NotifyObservers(context.Background(), event)
}
