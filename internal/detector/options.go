package detector

// Options configures engine construction and result post-processing
type Options struct {
	// Detections whose top score is below this value are dropped
	ScoreThreshold float32
	// Upper bound on the number of detections returned per frame
	MaxResults int
	// Name of the bundled model asset
	ModelName string
	// Interpreter threads; 0 uses the CPU count
	NumThreads int
	// Class index to label mapping; nil reports class indices as labels
	Labels *LabelMap
}

// DefaultOptions returns the defaults used by the cabin camera
func DefaultOptions() Options {
	return Options{
		ScoreThreshold: 0.5,
		MaxResults:     5,
		ModelName:      "model.tflite",
		NumThreads:     0,
	}
}

// WithScoreThreshold sets the confidence threshold
func (opts Options) WithScoreThreshold(threshold float32) Options {
	opts.ScoreThreshold = threshold
	return opts
}

// WithMaxResults sets the maximum result count
func (opts Options) WithMaxResults(n int) Options {
	opts.MaxResults = n
	return opts
}

// WithModelName sets the model asset name
func (opts Options) WithModelName(name string) Options {
	opts.ModelName = name
	return opts
}

// WithNumThreads sets the interpreter thread count
func (opts Options) WithNumThreads(n int) Options {
	opts.NumThreads = n
	return opts
}

// WithLabels attaches a label map
func (opts Options) WithLabels(labels *LabelMap) Options {
	opts.Labels = labels
	return opts
}
