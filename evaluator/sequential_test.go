package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedEvaluator struct {
	metrics Metrics
	primary string
}

func (f fixedEvaluator) Evaluate(ctx context.Context, student *Model, run Run) (Metrics, error) {
	return f.metrics, nil
}

func (f fixedEvaluator) PrimaryMetric() string { return f.primary }

func TestSequential_MergesMetrics(t *testing.T) {
	seq := NewSequential(
		fixedEvaluator{metrics: Metrics{"a": 1, "shared": 1}, primary: "a"},
		fixedEvaluator{metrics: Metrics{"b": 2, "shared": 2}, primary: "b"},
	)
	metrics, err := seq.Evaluate(context.Background(), NewModel("s", nil), NoTraining)
	require.NoError(t, err)
	assert.Equal(t, 1.0, metrics["a"])
	assert.Equal(t, 2.0, metrics["b"])
	// Later evaluators win on collisions.
	assert.Equal(t, 2.0, metrics["shared"])
	assert.Equal(t, "b", seq.PrimaryMetric())
}

func TestSequential_Empty(t *testing.T) {
	seq := NewSequential()
	_, err := seq.Evaluate(context.Background(), NewModel("s", nil), NoTraining)
	assert.Error(t, err)
	assert.Equal(t, "", seq.PrimaryMetric())
}
