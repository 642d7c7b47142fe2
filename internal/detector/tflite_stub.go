//go:build !tflite

package detector

import (
	"context"
	"errors"
)

// ErrTFLiteDisabled is returned by the loader when the binary was built
// without the TensorFlow Lite runtime
var ErrTFLiteDisabled = errors.New("tflite build tag is not enabled")

// TFLiteLoader is a placeholder that always fails to load. Build with
// -tags tflite to link the TensorFlow Lite runtime.
type TFLiteLoader struct {
	Models ModelSource
}

// NewTFLiteLoader creates a loader that reads model assets from models
func NewTFLiteLoader(models ModelSource) *TFLiteLoader {
	return &TFLiteLoader{Models: models}
}

// Load always fails with ErrTFLiteDisabled
func (l *TFLiteLoader) Load(ctx context.Context, opts Options) (Engine, error) {
	return nil, ErrTFLiteDisabled
}
