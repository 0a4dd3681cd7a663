package encoder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/distill-go/distill/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEncoder returns a fixed matrix and counts calls.
type countingEncoder struct {
	calls int
	err   error
}

func (c *countingEncoder) Encode(ctx context.Context, req Request) (*Response, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	out := make(core.Matrix, len(req.Sentences))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return &Response{Embeddings: out, Model: req.Model, Usage: Usage{TotalTokens: 5}}, nil
}

func TestMetricsMiddleware(t *testing.T) {
	inner := &countingEncoder{}
	mw, counters := Metrics()
	enc := Chain(inner, mw)

	_, err := enc.Encode(context.Background(), Request{Sentences: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), counters.Requests())
	assert.Equal(t, uint64(2), counters.Sentences())
	assert.Equal(t, uint64(5), counters.Tokens())
	assert.Equal(t, uint64(0), counters.Errors())
}

func TestMetricsMiddleware_CountsErrors(t *testing.T) {
	inner := &countingEncoder{err: errors.New("boom")}
	mw, counters := Metrics()
	enc := Chain(inner, mw)

	_, err := enc.Encode(context.Background(), Request{Sentences: []string{"a"}})
	assert.Error(t, err)
	assert.Equal(t, uint64(1), counters.Errors())
}

func TestCacheMiddleware_SecondCallHits(t *testing.T) {
	inner := &countingEncoder{}
	enc := Chain(inner, CacheMiddleware(NewInMemoryCache(), time.Minute))
	req := Request{Sentences: []string{"a"}, Model: "m"}

	first, err := enc.Encode(context.Background(), req)
	require.NoError(t, err)
	second, err := enc.Encode(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first.Embeddings, second.Embeddings)
	assert.Equal(t, first.Usage, second.Usage)
}

func TestCacheMiddleware_KeyDependsOnModelAndDim(t *testing.T) {
	inner := &countingEncoder{}
	enc := Chain(inner, CacheMiddleware(NewInMemoryCache(), time.Minute))

	_, err := enc.Encode(context.Background(), Request{Sentences: []string{"a"}, Model: "m1"})
	require.NoError(t, err)
	_, err = enc.Encode(context.Background(), Request{Sentences: []string{"a"}, Model: "m2"})
	require.NoError(t, err)
	_, err = enc.Encode(context.Background(), Request{Sentences: []string{"a"}, Model: "m1", TruncateDim: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestLoggingMiddleware(t *testing.T) {
	var lines []string
	logf := func(format string, args ...interface{}) {
		lines = append(lines, format)
	}
	inner := &countingEncoder{}
	enc := Chain(inner, Logging(logf))
	_, err := enc.Encode(context.Background(), Request{Sentences: []string{"a"}})
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestChain_Order(t *testing.T) {
	inner := &countingEncoder{}
	mw1, c1 := Metrics()
	mw2, c2 := Metrics()
	enc := Chain(inner, mw1, mw2)
	_, err := enc.Encode(context.Background(), Request{Sentences: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), c1.Requests())
	assert.Equal(t, uint64(1), c2.Requests())
}
