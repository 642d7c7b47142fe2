package container

import (
	"context"
	"fmt"
	"net/http"

	"go-carlost-detector/internal/config"
	"go-carlost-detector/internal/detector"
	"go-carlost-detector/internal/factory"
	"go-carlost-detector/internal/logger"
	"go-carlost-detector/internal/notify"
	"go-carlost-detector/internal/observer"
	"go-carlost-detector/internal/overlay"
	"go-carlost-detector/internal/pipeline"
	"go-carlost-detector/internal/repository"
	"go-carlost-detector/internal/service"
	"go-carlost-detector/internal/strategy"
	"go-carlost-detector/internal/transport"
	"go-carlost-detector/pkg/validation"

	"github.com/sirupsen/logrus"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	invoker    *detector.Invoker
	frames     repository.FrameRepository
	events     *observer.EventPublisher
	metrics    *observer.MetricsObserver
	hub        *notify.Hub
	notifier   *notify.Multi
	tracker    *strategy.Tracker
	renderLoop *overlay.RenderLoop
	processor  *pipeline.Processor
	service    service.DetectionService
	handler    http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory(cfg)

	labels, err := loadLabels(cfg)
	if err != nil {
		return nil, err
	}

	opts := detector.DefaultOptions().
		WithScoreThreshold(float32(cfg.ScoreThreshold)).
		WithMaxResults(cfg.MaxResults).
		WithModelName(cfg.ModelName).
		WithNumThreads(cfg.NumThreads).
		WithLabels(labels)

	var models repository.ModelRepository
	if factory.EngineType(cfg.Engine) == factory.TFLiteEngine {
		models, err = components.ModelFactory.CreateModelRepository(factory.ModelSourceType(cfg.ModelSource))
		if err != nil {
			return nil, fmt.Errorf("failed to create model repository: %w", err)
		}
	}
	loader, err := components.EngineFactory.CreateLoader(factory.EngineType(cfg.Engine), models)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine loader: %w", err)
	}
	invoker := detector.NewInvoker(loader, opts)

	router, err := components.StorageFactory.CreateRouter()
	if err != nil {
		return nil, fmt.Errorf("failed to create frame storage: %w", err)
	}
	frames := repository.NewURLFrameRepository(router, frameValidator(cfg))

	events := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	hub := notify.NewHub()
	notifier := components.NotifierFactory.CreateNotifiers(hub)

	boarding, err := strategy.New(cfg.BoardingStrategy, cfg.PersonLabel)
	if err != nil {
		return nil, err
	}
	tracker := strategy.NewTracker(boarding, cfg.TrackingActive)

	renderLoop := overlay.NewRenderLoop(cfg.ViewWidth, cfg.ViewHeight)

	processor := pipeline.NewProcessor(invoker, tracker, notifier, renderLoop, events, pipeline.Options{
		DetectInterval: cfg.DetectInterval,
		ExcludeLabels:  cfg.ExcludeLabels,
		NoLabelText:    cfg.NoLabelText,
		FrameTimeout:   cfg.FrameTimeout,
	})

	svc := service.NewDetectionService(service.Dependencies{
		Invoker:   invoker,
		Frames:    frames,
		Tracker:   tracker,
		Processor: processor,
		Overlay:   renderLoop,
		Events:    events,
		Metrics:   metrics,
		Hub:       hub,
	}, service.Options{
		ExcludeLabels: cfg.ExcludeLabels,
		NoLabelText:   cfg.NoLabelText,
		PersonLabel:   cfg.PersonLabel,
		ViewWidth:     cfg.ViewWidth,
		ViewHeight:    cfg.ViewHeight,
	})
	handler := transport.NewHandler(svc, hub, cfg)

	logger.WithFields(logrus.Fields{
		"engine":    cfg.Engine,
		"model":     cfg.ModelName,
		"strategy":  boarding.GetStrategyName(),
		"tracking":  cfg.TrackingActive,
		"notifiers": notifier.Len(),
	}).Info("Container initialized")

	return &Container{
		config:     cfg,
		invoker:    invoker,
		frames:     frames,
		events:     events,
		metrics:    metrics,
		hub:        hub,
		notifier:   notifier,
		tracker:    tracker,
		renderLoop: renderLoop,
		processor:  processor,
		service:    svc,
		handler:    handler,
	}, nil
}

// loadLabels reads the label map and warns about configured labels the
// model does not know
func loadLabels(cfg *config.Config) (*detector.LabelMap, error) {
	if cfg.LabelsFile == "" {
		return nil, nil
	}
	labels, err := detector.LoadLabelMap(cfg.LabelsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	names := append([]string{cfg.PersonLabel}, cfg.ExcludeLabels...)
	for name, suggestion := range labels.UnknownLabels(names) {
		logger.WithFields(logrus.Fields{
			"label":      name,
			"suggestion": suggestion,
		}).Warn("Configured label is not a model class")
	}
	return labels, nil
}

func frameValidator(cfg *config.Config) *validation.URLValidator {
	schemes := []string{"http", "https"}
	if cfg.FrameDir != "" {
		schemes = append(schemes, "file")
	}
	return validation.NewURLValidatorWithOptions(schemes, cfg.FrameHosts)
}

// Start runs the background render loop until ctx is cancelled
func (c *Container) Start(ctx context.Context) {
	go c.renderLoop.Run(ctx)
}

// Close drains the frame pipeline and releases the engine and notifiers
func (c *Container) Close() error {
	c.processor.Close()
	c.invoker.ClearEngine()
	return c.notifier.Close()
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

