package evaluator

import (
	"sync"

	"github.com/distill-go/distill/encoder"
)

// Model is an embedding model under evaluation: an encoder plus the metrics
// evaluators have recorded against it. Name is passed to the encoder as the
// model identifier on every request.
type Model struct {
	Name    string
	Encoder encoder.Encoder

	mu      sync.Mutex
	metrics map[string]float64
}

// NewModel creates a model handle for the given encoder.
func NewModel(name string, enc encoder.Encoder) *Model {
	return &Model{Name: name, Encoder: enc}
}

// RecordMetrics merges the given metrics into the model's recorded metadata.
func (m *Model) RecordMetrics(metrics Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.metrics == nil {
		m.metrics = make(map[string]float64, len(metrics))
	}
	for k, v := range metrics {
		m.metrics[k] = v
	}
}

// Metrics returns a copy of all metrics recorded against the model.
func (m *Model) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(Metrics, len(m.metrics))
	for k, v := range m.metrics {
		out[k] = v
	}
	return out
}
