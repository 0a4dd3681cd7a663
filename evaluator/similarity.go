package evaluator

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/distill-go/distill/core"
	"github.com/distill-go/distill/encoder"
)

// Similarity scores a student by the mean cosine similarity between teacher
// embeddings of the source sentences and student embeddings of the paired
// targets. 1.0 means the student reproduces the teacher's directions exactly.
type Similarity struct {
	cfg     config
	source  core.Matrix
	targets []string
	csvFile string
}

// NewSimilarity embeds the corpus source sentences with the teacher and returns the evaluator.
func NewSimilarity(ctx context.Context, teacher *Model, corpus *core.Corpus, opts ...Option) (*Similarity, error) {
	if teacher == nil || teacher.Encoder == nil {
		return nil, fmt.Errorf("similarity evaluator: teacher model is required")
	}
	if err := corpus.Validate(); err != nil {
		return nil, fmt.Errorf("similarity evaluator: %w", err)
	}
	cfg := newConfig(opts)
	resp, err := teacher.Encoder.Encode(ctx, encoder.Request{
		Sentences:   corpus.Source,
		Model:       teacher.Name,
		BatchSize:   cfg.batchSize,
		TruncateDim: cfg.truncateDim,
		Progress:    cfg.progress,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity evaluator: embed source: %w", err)
	}
	return &Similarity{
		cfg:     cfg,
		source:  resp.Embeddings,
		targets: append([]string(nil), corpus.Target...),
		csvFile: "similarity_evaluation_" + cfg.name + "_results.csv",
	}, nil
}

// Evaluate embeds the targets with the student and reports the mean pairwise cosine.
func (e *Similarity) Evaluate(ctx context.Context, student *Model, run Run) (Metrics, error) {
	if student == nil || student.Encoder == nil {
		return nil, fmt.Errorf("similarity evaluator: student model is required")
	}
	resp, err := student.Encoder.Encode(ctx, encoder.Request{
		Sentences:   e.targets,
		Model:       student.Name,
		BatchSize:   e.cfg.batchSize,
		TruncateDim: e.cfg.truncateDim,
		Progress:    e.cfg.progress,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity evaluator: embed target: %w", err)
	}
	if err := core.SameShape(e.source, resp.Embeddings); err != nil {
		return nil, fmt.Errorf("similarity evaluator: %w", err)
	}
	var sum float64
	for i := range e.source {
		sum += cosineSimilarity(e.source[i], resp.Embeddings[i])
	}
	mean := 0.0
	if len(e.source) > 0 {
		mean = sum / float64(len(e.source))
	}

	if e.cfg.writeCSV && run.OutputPath != "" {
		path := filepath.Join(run.OutputPath, e.csvFile)
		row := []string{
			strconv.Itoa(run.Epoch),
			strconv.Itoa(run.Steps),
			strconv.FormatFloat(mean, 'f', -1, 64),
		}
		if err := appendCSV(path, []string{"epoch", "steps", "cosine"}, row); err != nil {
			return nil, fmt.Errorf("similarity evaluator: write csv: %w", err)
		}
	}

	metrics := Metrics{prefixed(e.cfg.name, "mean_cosine"): mean}
	student.RecordMetrics(metrics)
	return metrics, nil
}

// PrimaryMetric implements Evaluator.
func (e *Similarity) PrimaryMetric() string {
	return prefixed(e.cfg.name, "mean_cosine")
}

// cosineSimilarity returns the cosine similarity between two vectors (assumed same length).
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
