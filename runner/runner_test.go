package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/distill-go/distill/analytics"
	"github.com/distill-go/distill/evaluator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyEvaluator fails a fixed number of times before succeeding.
type flakyEvaluator struct {
	failures int
	calls    int
	metrics  evaluator.Metrics
}

func (f *flakyEvaluator) Evaluate(ctx context.Context, student *evaluator.Model, run evaluator.Run) (evaluator.Metrics, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient")
	}
	return f.metrics, nil
}

func (f *flakyEvaluator) PrimaryMetric() string { return "negative_mse" }

func TestRunner_SucceedsFirstTry(t *testing.T) {
	ev := &flakyEvaluator{metrics: evaluator.Metrics{"negative_mse": -2.5}}
	r := New(ev)
	res, err := r.Run(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempts)
	assert.Equal(t, -2.5, res.Primary)
}

func TestRunner_RetriesThenSucceeds(t *testing.T) {
	ev := &flakyEvaluator{failures: 2, metrics: evaluator.Metrics{"negative_mse": -1.0}}
	r := New(ev, WithRetry(3, ExponentialBackoff(time.Millisecond, 5*time.Millisecond)))
	res, err := r.Run(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
}

func TestRunner_ExhaustsRetries(t *testing.T) {
	ev := &flakyEvaluator{failures: 10}
	r := New(ev, WithRetry(2, ExponentialBackoff(time.Millisecond, 5*time.Millisecond)))
	_, err := r.Run(context.Background(), evaluator.NewModel("s", nil), evaluator.NoTraining)
	assert.Error(t, err)
	assert.Equal(t, 3, ev.calls)
}

func TestRunner_RecordsHistoryPositiveMSE(t *testing.T) {
	ev := &flakyEvaluator{metrics: evaluator.Metrics{"negative_mse": -3.5}}
	store := analytics.NewMemoryStore(0)
	r := New(ev, WithHistory(store, "mse-dev"))
	_, err := r.Run(context.Background(), evaluator.NewModel("student-1", nil), evaluator.Run{Epoch: 2, Steps: 100})
	require.NoError(t, err)

	aggs, err := store.Query(context.Background(), analytics.Query{Evaluator: "mse-dev"})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, int64(1), aggs[0].SuccessCount)
	// The negated primary metric is stored as a positive MSE.
	assert.InDelta(t, 3.5, aggs[0].BestMSE, 1e-9)
}

func TestRunner_RecordsFailure(t *testing.T) {
	ev := &flakyEvaluator{failures: 10}
	store := analytics.NewMemoryStore(0)
	r := New(ev, WithHistory(store, "mse-dev"))
	_, err := r.Run(context.Background(), evaluator.NewModel("student-1", nil), evaluator.NoTraining)
	assert.Error(t, err)

	aggs, qerr := store.Query(context.Background(), analytics.Query{})
	require.NoError(t, qerr)
	require.Len(t, aggs, 1)
	assert.Equal(t, int64(1), aggs[0].Runs)
	assert.Equal(t, int64(0), aggs[0].SuccessCount)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(time.Second, 10*time.Second)
	assert.Equal(t, time.Second, b(1))
	assert.Equal(t, 2*time.Second, b(2))
	assert.Equal(t, 4*time.Second, b(3))
	assert.Equal(t, 10*time.Second, b(10))
}
