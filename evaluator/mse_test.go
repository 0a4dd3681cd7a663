package evaluator

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/distill-go/distill/core"
	"github.com/distill-go/distill/encoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEncoder returns fixed vectors per sentence from a lookup table.
type stubEncoder struct {
	vectors map[string][]float32
}

func (s stubEncoder) Encode(ctx context.Context, req encoder.Request) (*encoder.Response, error) {
	out := make(core.Matrix, len(req.Sentences))
	for i, sent := range req.Sentences {
		out[i] = append([]float32(nil), s.vectors[sent]...)
	}
	if req.TruncateDim > 0 {
		out = out.Truncate(req.TruncateDim)
	}
	return &encoder.Response{Embeddings: out, Model: req.Model}, nil
}

func testCorpus() *core.Corpus {
	return &core.Corpus{
		ID: "c1", Version: "1.0.0",
		Source: []string{"src-a", "src-b"},
		Target: []string{"tgt-a", "tgt-b"},
	}
}

func TestMSE_IdenticalEmbeddingsZero(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1, 2, 3}, "src-b": {4, 5, 6},
		"tgt-a": {1, 2, 3}, "tgt-b": {4, 5, 6},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	mse, err := NewMSE(ctx, teacher, testCorpus())
	require.NoError(t, err)
	metrics, err := mse.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
	assert.InDelta(t, 0, metrics["negative_mse"], 1e-9)
}

func TestMSE_NegatedMetric(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1, 0}, "src-b": {0, 1},
		"tgt-a": {0, 0}, "tgt-b": {0, 0},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	mse, err := NewMSE(ctx, teacher, testCorpus())
	require.NoError(t, err)
	metrics, err := mse.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
	// mean squared diff = 0.5, scaled x100 and negated
	assert.InDelta(t, -50.0, metrics["negative_mse"], 1e-9)
	assert.LessOrEqual(t, metrics["negative_mse"], 0.0)
	assert.Equal(t, "negative_mse", mse.PrimaryMetric())
}

func TestMSE_NamePrefixesMetric(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1}, "src-b": {2}, "tgt-a": {1}, "tgt-b": {2},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	mse, err := NewMSE(ctx, teacher, testCorpus(), WithName("en-de"))
	require.NoError(t, err)
	metrics, err := mse.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
	_, ok := metrics["en-de_negative_mse"]
	assert.True(t, ok)
	assert.Equal(t, "en-de_negative_mse", mse.PrimaryMetric())
}

func TestMSE_RecordsMetricsOnStudent(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1}, "src-b": {2}, "tgt-a": {1}, "tgt-b": {2},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	mse, err := NewMSE(ctx, teacher, testCorpus())
	require.NoError(t, err)
	_, err = mse.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
	recorded := student.Metrics()
	_, ok := recorded["negative_mse"]
	assert.True(t, ok)
}

func TestMSE_CSVTwoRunsOneHeader(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1}, "src-b": {2}, "tgt-a": {1}, "tgt-b": {2},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	mse, err := NewMSE(ctx, teacher, testCorpus(), WithName("dev"))
	require.NoError(t, err)

	_, err = mse.Evaluate(ctx, student, Run{Epoch: 1, Steps: 100, OutputPath: dir})
	require.NoError(t, err)
	_, err = mse.Evaluate(ctx, student, Run{Epoch: 2, Steps: 200, OutputPath: dir})
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "mse_evaluation_dev_results.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"epoch", "steps", "MSE"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "100", rows[1][1])
	assert.Equal(t, "2", rows[2][0])
}

func TestMSE_NoCSVWithoutOutputPath(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1}, "src-b": {2}, "tgt-a": {1}, "tgt-b": {2},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	mse, err := NewMSE(ctx, teacher, testCorpus())
	require.NoError(t, err)
	_, err = mse.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
}

func TestMSE_TruncateDim(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{
		"src-a": {1, 2, 3, 4}, "src-b": {5, 6, 7, 8},
		"tgt-a": {1, 2, 0, 0}, "tgt-b": {5, 6, 0, 0},
	}}
	teacher := NewModel("teacher", enc)
	student := NewModel("student", enc)

	mse, err := NewMSE(ctx, teacher, testCorpus(), WithTruncateDim(2))
	require.NoError(t, err)
	assert.Equal(t, 2, mse.SourceDim())
	metrics, err := mse.Evaluate(ctx, student, NoTraining)
	require.NoError(t, err)
	// Within the first two dimensions the student matches the teacher exactly.
	assert.InDelta(t, 0, metrics["negative_mse"], 1e-9)
}

func TestMSE_DimMismatch(t *testing.T) {
	ctx := context.Background()
	teacher := NewModel("teacher", stubEncoder{vectors: map[string][]float32{
		"src-a": {1, 2, 3}, "src-b": {4, 5, 6},
	}})
	student := NewModel("student", stubEncoder{vectors: map[string][]float32{
		"tgt-a": {1, 2}, "tgt-b": {4, 5},
	}})

	mse, err := NewMSE(ctx, teacher, testCorpus())
	require.NoError(t, err)
	_, err = mse.Evaluate(ctx, student, NoTraining)
	assert.ErrorIs(t, err, core.ErrDimMismatch)
}

func TestMSE_InvalidCorpus(t *testing.T) {
	ctx := context.Background()
	enc := stubEncoder{vectors: map[string][]float32{}}
	teacher := NewModel("teacher", enc)

	_, err := NewMSE(ctx, teacher, &core.Corpus{})
	assert.ErrorIs(t, err, core.ErrEmptyCorpus)

	_, err = NewMSE(ctx, teacher, &core.Corpus{Source: []string{"a", "b"}, Target: []string{"x"}})
	assert.ErrorIs(t, err, core.ErrLengthMismatch)
}
