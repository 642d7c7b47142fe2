package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DetectionEvent represents a frame lifecycle event
type DetectionEvent struct {
	EventType     EventType              `json:"event_type"`
	Timestamp     time.Time              `json:"timestamp"`
	FrameID       string                 `json:"frame_id,omitempty"`
	InferenceTime time.Duration          `json:"inference_time"`
	Detections    int                    `json:"detections"`
	Labels        []string               `json:"labels,omitempty"`
	Success       bool                   `json:"success"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of detection event
type EventType string

const (
	// FrameAccepted when a frame is handed to the detector
	FrameAccepted EventType = "frame_accepted"
	// FrameDropped when a frame arrives while another is in flight
	FrameDropped EventType = "frame_dropped"
	// DetectionCompleted when inference returns results
	DetectionCompleted EventType = "detection_completed"
	// DetectionFailed when inference returns an error
	DetectionFailed EventType = "detection_failed"
	// EngineInitFailed when the detection engine cannot be loaded
	EngineInitFailed EventType = "engine_init_failed"
	// EngineCleared when the engine handle is released
	EngineCleared EventType = "engine_cleared"
	// LostItemsFound when a passenger leaves items behind
	LostItemsFound EventType = "lost_items_found"
	// FrameFetched when a frame is downloaded from a URL
	FrameFetched EventType = "frame_fetched"
	// FrameFetchFailed when a frame download fails
	FrameFetchFailed EventType = "frame_fetch_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event DetectionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event DetectionEvent)
}

// LoggingObserver logs detection events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles detection events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event DetectionEvent) {
	fields := logrus.Fields{
		"event_type":        event.EventType,
		"frame_id":          event.FrameID,
		"inference_time_ms": event.InferenceTime.Milliseconds(),
		"detections":        event.Detections,
		"success":           event.Success,
	}

	if len(event.Labels) > 0 {
		fields["labels"] = event.Labels
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case DetectionCompleted:
		entry.Info("Detection completed")
	case DetectionFailed:
		entry.Error("Detection failed")
	case EngineInitFailed:
		entry.Error("Detection engine failed to initialize")
	case LostItemsFound:
		entry.Warn("Lost items found")
	case FrameFetchFailed:
		entry.Error("Frame fetch failed")
	case FrameAccepted, FrameDropped, FrameFetched:
		entry.Debug("Frame event")
	default:
		entry.Info("Detection event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects metrics from detection events
type MetricsObserver struct {
	mu                 sync.RWMutex
	framesAccepted     int64
	framesDropped      int64
	detections         int64
	failedDetections   int64
	engineInitFailures int64
	lostItemEvents     int64
	objectsDetected    int64
	totalInferenceTime time.Duration
}

// NewMetricsObserver creates a new metrics observer
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

// OnEvent handles detection events by collecting metrics
func (o *MetricsObserver) OnEvent(ctx context.Context, event DetectionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case FrameAccepted:
		o.framesAccepted++
	case FrameDropped:
		o.framesDropped++
	case DetectionCompleted:
		o.detections++
		o.objectsDetected += int64(event.Detections)
		o.totalInferenceTime += event.InferenceTime
	case DetectionFailed:
		o.failedDetections++
	case EngineInitFailed:
		o.engineInitFailures++
	case LostItemsFound:
		o.lostItemEvents++
	}
}

// GetObserverName returns the observer name
func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// GetMetrics returns current metrics
func (o *MetricsObserver) GetMetrics() map[string]interface{} {
	o.mu.RLock()
	defer o.mu.RUnlock()

	avgInferenceTime := time.Duration(0)
	if o.detections > 0 {
		avgInferenceTime = o.totalInferenceTime / time.Duration(o.detections)
	}

	return map[string]interface{}{
		"frames_accepted":         o.framesAccepted,
		"frames_dropped":          o.framesDropped,
		"successful_detections":   o.detections,
		"failed_detections":       o.failedDetections,
		"engine_init_failures":    o.engineInitFailures,
		"lost_item_events":        o.lostItemEvents,
		"objects_detected":        o.objectsDetected,
		"avg_inference_time_ms":   avgInferenceTime.Milliseconds(),
		"total_inference_time_ms": o.totalInferenceTime.Milliseconds(),
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event. Observers run on
// their own goroutines; a panicking observer is logged and ignored.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event DetectionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		go func(obs Observer) {
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}
