package detector

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	apperrors "go-carlost-detector/internal/errors"
	"go-carlost-detector/internal/logger"

	"github.com/sirupsen/logrus"
)

// EngineInitFailedMessage is reported when the engine cannot be constructed
const EngineInitFailedMessage = "Object detector failed to initialize. See error logs for details"

// ErrEngineAbsent is wrapped by outcomes produced while no engine is loaded
var ErrEngineAbsent = errors.New("detection engine is not loaded")

// Invoker owns a lazily constructed detection engine and runs frames through it
type Invoker struct {
	mu     sync.Mutex
	loader EngineLoader
	opts   Options
	engine Engine
}

// NewInvoker creates an invoker. No engine is loaded until the first Detect call.
func NewInvoker(loader EngineLoader, opts Options) *Invoker {
	return &Invoker{
		loader: loader,
		opts:   opts,
	}
}

// Options returns the options the engine is constructed with
func (i *Invoker) Options() Options {
	return i.opts
}

// HasEngine reports whether an engine handle is currently loaded
func (i *Invoker) HasEngine() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.engine != nil
}

// Detect rotates img upright, runs it through the engine and reports the
// detections together with inference time and the post-rotation size.
// A failed engine construction is reported in the outcome and retried on the
// next call.
func (i *Invoker) Detect(ctx context.Context, img image.Image, rotationDegrees int) Outcome {
	i.mu.Lock()
	defer i.mu.Unlock()

	var outcome Outcome
	if i.engine == nil {
		if err := i.setupEngine(ctx); err != nil {
			outcome.Err = err
		}
	}

	start := time.Now()
	upright := Rotate(img, rotationDegrees)

	if i.engine != nil {
		detections, err := i.engine.Detect(ctx, upright)
		if err != nil {
			logger.WithError(err).Error("Object detection failed")
			outcome.Err = apperrors.NewInferenceError("object detection failed", err)
		} else {
			outcome.Detections = Postprocess(detections, i.opts.ScoreThreshold, i.opts.MaxResults)
		}
	} else if outcome.Err == nil {
		outcome.Err = apperrors.NewEngineInitError(EngineInitFailedMessage, ErrEngineAbsent)
	}

	outcome.InferenceTime = time.Since(start)
	outcome.Upright = upright
	bounds := upright.Bounds()
	outcome.ImageHeight = bounds.Dy()
	outcome.ImageWidth = bounds.Dx()

	logger.WithFields(logrus.Fields{
		"rotation":          rotationDegrees,
		"detections":        len(outcome.Detections),
		"inference_time_ms": outcome.InferenceTimeMs(),
		"image_height":      outcome.ImageHeight,
		"image_width":       outcome.ImageWidth,
	}).Debug("Detect finished")

	return outcome
}

// ClearEngine releases the engine handle. The next Detect call loads a new one.
func (i *Invoker) ClearEngine() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.engine == nil {
		return
	}
	if err := i.engine.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close detection engine")
	}
	i.engine = nil
}

func (i *Invoker) setupEngine(ctx context.Context) error {
	engine, err := i.loader.Load(ctx, i.opts)
	if err != nil {
		logger.WithError(err).WithField("model", i.opts.ModelName).
			Error("Detection engine failed to load model")
		return apperrors.NewEngineInitError(EngineInitFailedMessage, err)
	}
	i.engine = engine
	logger.WithFields(logrus.Fields{
		"model":           i.opts.ModelName,
		"score_threshold": i.opts.ScoreThreshold,
		"max_results":     i.opts.MaxResults,
	}).Info("Detection engine loaded")
	return nil
}

// Dispatch delivers an outcome to a callback-style listener. An engine
// initialization failure is reported through OnError and followed by
// OnResults with nil results; an inference failure is reported through
// OnError only.
func Dispatch(outcome Outcome, listener Listener) {
	if listener == nil {
		return
	}
	if outcome.Err != nil {
		var appErr *apperrors.AppError
		if errors.As(outcome.Err, &appErr) {
			listener.OnError(appErr.Message)
		} else {
			listener.OnError(outcome.Err.Error())
		}
		if apperrors.IsType(outcome.Err, apperrors.ErrorTypeInference) {
			return
		}
	}
	listener.OnResults(outcome.Detections, outcome.InferenceTimeMs(), outcome.ImageHeight, outcome.ImageWidth)
}
