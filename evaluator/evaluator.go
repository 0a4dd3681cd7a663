// Package evaluator scores student embedding models against a teacher during distillation.
package evaluator

import (
	"context"
)

// Metrics maps metric names to values. Metrics follow a higher-is-better
// convention so callers can select checkpoints by maximizing the primary metric.
type Metrics map[string]float64

// Run identifies where in a training loop an evaluation happens.
// Epoch and Steps of -1 mean the evaluation runs outside a training loop.
// OutputPath is the directory for CSV logs; empty disables CSV output.
type Run struct {
	Epoch      int
	Steps      int
	OutputPath string
}

// NoTraining is the Run used when evaluating outside a training loop.
var NoTraining = Run{Epoch: -1, Steps: -1}

// Evaluator scores a student model at a point in training.
type Evaluator interface {
	Evaluate(ctx context.Context, student *Model, run Run) (Metrics, error)
	// PrimaryMetric returns the key in the returned Metrics that callers
	// should maximize when selecting checkpoints.
	PrimaryMetric() string
}

// config holds settings shared by the corpus-based evaluators.
type config struct {
	name        string
	batchSize   int
	truncateDim int
	writeCSV    bool
	progress    func(done, total int)
}

func newConfig(opts []Option) config {
	c := config{batchSize: 32, writeCSV: true}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// Option configures a corpus-based evaluator.
type Option func(*config)

// WithName labels the evaluator; the label prefixes metric names and the CSV file name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithBatchSize sets how many sentences are embedded per encoder call (default 32).
func WithBatchSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithTruncateDim truncates teacher and student embeddings to the same width before comparison.
func WithTruncateDim(d int) Option {
	return func(c *config) {
		c.truncateDim = d
	}
}

// WithWriteCSV enables or disables the CSV log (default enabled).
func WithWriteCSV(write bool) Option {
	return func(c *config) {
		c.writeCSV = write
	}
}

// WithProgress sets a per-batch progress callback passed to encoders.
func WithProgress(fn func(done, total int)) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// prefixed returns name_key when name is set, key otherwise.
func prefixed(name, key string) string {
	if name == "" {
		return key
	}
	return name + "_" + key
}
