package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarity_IdenticalIsOne(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1, 2, 3}, "src-b": {4, 5, 6},
		"tgt-a": {1, 2, 3}, "tgt-b": {4, 5, 6},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	sim, err := NewSimilarity(ctx, teacher, testCorpus())
	require.NoError(t, err)
	metrics, err := sim.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, metrics["mean_cosine"], 1e-9)
	assert.Equal(t, "mean_cosine", sim.PrimaryMetric())
}

func TestSimilarity_Orthogonal(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1, 0}, "src-b": {0, 1},
		"tgt-a": {0, 1}, "tgt-b": {1, 0},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	sim, err := NewSimilarity(ctx, teacher, testCorpus(), WithName("dev"))
	require.NoError(t, err)
	metrics, err := sim.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, metrics["dev_mean_cosine"], 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 1}, []float32{2, 2}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity(nil, nil))
}
