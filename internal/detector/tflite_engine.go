//go:build tflite

package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"

	"go-carlost-detector/internal/logger"

	tflite "github.com/mattn/go-tflite"
	"github.com/nfnt/resize"
)

// TFLiteLoader builds engines backed by the TensorFlow Lite C runtime
type TFLiteLoader struct {
	Models ModelSource
}

// NewTFLiteLoader creates a loader that reads model assets from models
func NewTFLiteLoader(models ModelSource) *TFLiteLoader {
	return &TFLiteLoader{Models: models}
}

type tfliteEngine struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	inputWidth  int
	inputHeight int
	inputType   tflite.TensorType
	labels      *LabelMap
}

// Load reads the model asset and prepares an interpreter for it
func (l *TFLiteLoader) Load(ctx context.Context, opts Options) (Engine, error) {
	if l.Models == nil {
		return nil, errors.New("no model source configured")
	}
	data, err := l.Models.LoadModel(ctx, opts.ModelName)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", opts.ModelName, err)
	}

	model := tflite.NewModel(data)
	if model == nil {
		return nil, fmt.Errorf("failed to create model from %s", opts.ModelName)
	}

	numThreads := opts.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}
	options := tflite.NewInterpreterOptions()
	if options == nil {
		model.Delete()
		return nil, errors.New("interpreter options failed to be created")
	}
	options.SetNumThread(numThreads)
	options.SetErrorReporter(func(msg string, _ interface{}) {
		logger.WithField("model", opts.ModelName).Warn(msg)
	}, nil)

	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, errors.New("failed to create interpreter")
	}

	e := &tfliteEngine{
		model:       model,
		options:     options,
		interpreter: interpreter,
		labels:      opts.Labels,
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		e.Close()
		return nil, errors.New("failed to allocate tensors")
	}

	input := interpreter.GetInputTensor(0)
	e.inputHeight = input.Dim(1)
	e.inputWidth = input.Dim(2)
	e.inputType = input.Type()

	if n := interpreter.GetOutputTensorCount(); n < 4 {
		e.Close()
		return nil, fmt.Errorf("model has %d output tensors, expected 4", n)
	}
	return e, nil
}

// Detect resizes img to the model input and decodes the SSD outputs
func (e *tfliteEngine) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	resized := resize.Resize(uint(e.inputWidth), uint(e.inputHeight), img, resize.Bilinear)

	input := e.interpreter.GetInputTensor(0)
	var status tflite.Status
	switch e.inputType {
	case tflite.UInt8:
		status = input.CopyFromBuffer(rgbBytes(resized))
	case tflite.Float32:
		status = input.CopyFromBuffer(rgbFloats(resized))
	default:
		return nil, fmt.Errorf("unsupported input tensor type %v", e.inputType)
	}
	if status != tflite.OK {
		return nil, errors.New("copying to buffer failed")
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return nil, errors.New("invoke failed")
	}

	boxes := e.interpreter.GetOutputTensor(0).Float32s()
	classes := e.interpreter.GetOutputTensor(1).Float32s()
	scores := e.interpreter.GetOutputTensor(2).Float32s()
	count := e.interpreter.GetOutputTensor(3).Float32s()
	if len(count) == 0 {
		return nil, errors.New("model returned no detection count")
	}

	return decodeSSD(boxes, classes, scores, int(count[0]), bounds.Dx(), bounds.Dy(), e.labels), nil
}

// Close deletes the interpreter, options and model
func (e *tfliteEngine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	return nil
}

func rgbBytes(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out
}

func rgbFloats(img image.Image) []float32 {
	b := img.Bounds()
	out := make([]float32, 0, b.Dx()*b.Dy()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out,
				(float32(r>>8)-127.5)/127.5,
				(float32(g>>8)-127.5)/127.5,
				(float32(bl>>8)-127.5)/127.5,
			)
		}
	}
	return out
}
