package evaluator

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/distill-go/distill/core"
	"github.com/distill-go/distill/encoder"
)

// MSE computes the mean squared error (x100) between teacher embeddings of the
// source sentences and student embeddings of the target sentences. The teacher
// side is embedded once at construction; each Evaluate call re-embeds the
// targets with the student. The reported primary metric is the negated MSE, so
// higher is better and checkpoint selection can maximize it.
//
// For multilingual distillation the source sentences are typically English and
// the targets their translations.
//
// CSV appends are not guarded against concurrent writers; the evaluator is
// meant for a single-process training loop.
type MSE struct {
	cfg     config
	source  core.Matrix
	targets []string
	csvFile string
}

// NewMSE embeds the corpus source sentences with the teacher and returns the evaluator.
func NewMSE(ctx context.Context, teacher *Model, corpus *core.Corpus, opts ...Option) (*MSE, error) {
	if teacher == nil || teacher.Encoder == nil {
		return nil, fmt.Errorf("mse evaluator: teacher model is required")
	}
	if err := corpus.Validate(); err != nil {
		return nil, fmt.Errorf("mse evaluator: %w", err)
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
		return nil, fmt.Errorf("mse evaluator: embed source: %w", err)
	}
	return &MSE{
		cfg:     cfg,
		source:  resp.Embeddings,
		targets: append([]string(nil), corpus.Target...),
		csvFile: "mse_evaluation_" + cfg.name + "_results.csv",
	}, nil
}

// Evaluate embeds the target sentences with the student and reports the negated MSE.
// The metric is also recorded on the student model, and a CSV row is appended
// when run.OutputPath is set and CSV output is enabled.
func (e *MSE) Evaluate(ctx context.Context, student *Model, run Run) (Metrics, error) {
	if student == nil || student.Encoder == nil {
		return nil, fmt.Errorf("mse evaluator: student model is required")
	}
	resp, err := student.Encoder.Encode(ctx, encoder.Request{
		Sentences:   e.targets,
		Model:       student.Name,
		BatchSize:   e.cfg.batchSize,
		TruncateDim: e.cfg.truncateDim,
		Progress:    e.cfg.progress,
	})
	if err != nil {
		return nil, fmt.Errorf("mse evaluator: embed target: %w", err)
	}
	if err := core.SameShape(e.source, resp.Embeddings); err != nil {
		return nil, fmt.Errorf("mse evaluator: %w", err)
	}
	mse := 100 * meanSquaredDiff(e.source, resp.Embeddings)

	if e.cfg.writeCSV && run.OutputPath != "" {
		path := filepath.Join(run.OutputPath, e.csvFile)
		row := []string{
			strconv.Itoa(run.Epoch),
			strconv.Itoa(run.Steps),
			strconv.FormatFloat(mse, 'f', -1, 64),
		}
		if err := appendCSV(path, []string{"epoch", "steps", "MSE"}, row); err != nil {
			return nil, fmt.Errorf("mse evaluator: write csv: %w", err)
		}
	}

	metrics := Metrics{prefixed(e.cfg.name, "negative_mse"): -mse}
	student.RecordMetrics(metrics)
	return metrics, nil
}

// PrimaryMetric implements Evaluator.
func (e *MSE) PrimaryMetric() string {
	return prefixed(e.cfg.name, "negative_mse")
}

// SourceDim returns the width of the cached teacher embeddings.
func (e *MSE) SourceDim() int {
	return e.source.Dim()
}

// meanSquaredDiff averages the squared element-wise difference over all matrix
// elements, accumulating in float64. Shapes must match.
func meanSquaredDiff(a, b core.Matrix) float64 {
	var sum float64
	var n int
	for i := range a {
		for j := range a[i] {
			d := float64(a[i][j]) - float64(b[i][j])
			sum += d * d
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
