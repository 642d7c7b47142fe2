package detector

import (
	"context"
	"image"
)

// Engine is a loaded, ready-to-use object detection model. Implementations
// are not reentrant; the Invoker serializes calls.
type Engine interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
	Close() error
}

// EngineLoader constructs an Engine from the model asset named in Options
type EngineLoader interface {
	Load(ctx context.Context, opts Options) (Engine, error)
}

// ModelSource provides the raw bytes of a bundled model asset
type ModelSource interface {
	LoadModel(ctx context.Context, name string) ([]byte, error)
}

// Listener receives detection outcomes in callback form
type Listener interface {
	OnError(message string)
	OnResults(results []Detection, inferenceTimeMs int64, imageHeight, imageWidth int)
}
