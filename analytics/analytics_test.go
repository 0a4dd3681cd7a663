package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecordAndQuery(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	require.NoError(t, store.Record(ctx, RunRecord{Evaluator: "mse", Model: "m1", MSE: 2.0, DurationMs: 100, Success: true}))
	require.NoError(t, store.Record(ctx, RunRecord{Evaluator: "mse", Model: "m1", MSE: 1.0, DurationMs: 200, Success: true}))
	require.NoError(t, store.Record(ctx, RunRecord{Evaluator: "mse", Model: "m1", Success: false, DurationMs: 50}))

	aggs, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	a := aggs[0]
	assert.Equal(t, "all", a.Key)
	assert.Equal(t, int64(3), a.Runs)
	assert.Equal(t, int64(2), a.SuccessCount)
	assert.Equal(t, 1.0, a.BestMSE)
	assert.InDelta(t, 1.5, a.AvgMSE, 1e-9)
}

func TestMemoryStore_GroupByModel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	store.Record(ctx, RunRecord{Evaluator: "mse", Model: "m1", MSE: 1.0, Success: true})
	store.Record(ctx, RunRecord{Evaluator: "mse", Model: "m2", MSE: 2.0, Success: true})

	aggs, err := store.Query(ctx, Query{GroupBy: "model"})
	require.NoError(t, err)
	assert.Len(t, aggs, 2)
	keys := map[string]bool{}
	for _, a := range aggs {
		keys[a.Key] = true
	}
	assert.True(t, keys["m1"])
	assert.True(t, keys["m2"])
}

func TestMemoryStore_Filters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	old := time.Now().Add(-48 * time.Hour)
	store.Record(ctx, RunRecord{Evaluator: "mse", Model: "m1", MSE: 1.0, Success: true, At: old})
	store.Record(ctx, RunRecord{Evaluator: "cosine", Model: "m1", MSE: 2.0, Success: true})

	aggs, err := store.Query(ctx, Query{Evaluator: "cosine"})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, int64(1), aggs[0].Runs)

	recent, err := store.Query(ctx, Query{From: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(1), recent[0].Runs)
}

func TestMemoryStore_Bounded(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(2)
	for i := 0; i < 5; i++ {
		store.Record(ctx, RunRecord{Evaluator: "mse", Model: "m1", Success: true})
	}
	aggs, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, int64(2), aggs[0].Runs)
}
