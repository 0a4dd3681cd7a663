package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/distill-go/distill/evaluator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEvaluator struct {
	metrics evaluator.Metrics
	primary string
	err     error
	calls   int
}

func (f *fixedEvaluator) Evaluate(ctx context.Context, student *evaluator.Model, run evaluator.Run) (evaluator.Metrics, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.metrics, nil
}

func (f *fixedEvaluator) PrimaryMetric() string { return f.primary }

func TestPipeline_Sequential(t *testing.T) {
	p := New("eval").
		Step("mse", &fixedEvaluator{metrics: evaluator.Metrics{"negative_mse": -1}}).
		Step("cosine", &fixedEvaluator{metrics: evaluator.Metrics{"mean_cosine": 0.9}})

	res, err := p.Execute(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.NoError(t, err)
	assert.Equal(t, -1.0, res.Get("mse")["negative_mse"])
	assert.Equal(t, 0.9, res.Get("cosine")["mean_cosine"])

	merged := res.Merged()
	assert.Equal(t, -1.0, merged["mse.negative_mse"])
}

func TestPipeline_Parallel(t *testing.T) {
	a := &fixedEvaluator{metrics: evaluator.Metrics{"a": 1}}
	b := &fixedEvaluator{metrics: evaluator.Metrics{"b": 2}}
	p := New("eval").Parallel(
		PipelineStep("a", a),
		PipelineStep("b", b),
	)
	res, err := p.Execute(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Get("a")["a"])
	assert.Equal(t, 2.0, res.Get("b")["b"])
}

func TestPipeline_StepError(t *testing.T) {
	p := New("eval").Step("bad", &fixedEvaluator{err: errors.New("boom")})
	_, err := p.Execute(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `pipeline step "bad"`)
}

func TestPipeline_Fallback(t *testing.T) {
	fallback := &fixedEvaluator{metrics: evaluator.Metrics{"fallback": 1}}
	p := New("eval").Step("main",
		&fixedEvaluator{err: errors.New("boom")},
		WithFallback(fallback),
	)
	res, err := p.Execute(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Get("main")["fallback"])
}

func TestPipeline_Retry(t *testing.T) {
	flaky := &fixedEvaluator{err: errors.New("boom")}
	p := New("eval").Step("flaky", flaky,
		WithRetry(2, ExponentialBackoff(time.Millisecond, 2*time.Millisecond)))
	_, err := p.Execute(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.Error(t, err)
	assert.Equal(t, 3, flaky.calls)
}

func TestPipeline_Condition(t *testing.T) {
	skipped := &fixedEvaluator{metrics: evaluator.Metrics{"x": 1}}
	p := New("eval").
		Step("first", &fixedEvaluator{metrics: evaluator.Metrics{"first": 1}}).
		Step("skipped", skipped, WithCondition(func(ctx context.Context, result *Result) bool {
			return false
		}))
	res, err := p.Execute(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.NoError(t, err)
	assert.Equal(t, 0, skipped.calls)
	assert.Nil(t, res.Get("skipped"))
}
