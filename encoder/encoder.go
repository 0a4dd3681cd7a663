// Package encoder defines the embedding-encoder interface and API client implementations.
package encoder

import (
	"context"

	"github.com/distill-go/distill/core"
)

// Request is the unified request for embedding a list of sentences.
type Request struct {
	Sentences []string
	Model     string
	// BatchSize is the number of sentences sent per API call (default 32).
	BatchSize int
	// TruncateDim cuts embeddings to this width; 0 keeps the model's native dimension.
	TruncateDim int
	// Progress, when set, is called after each batch with sentences done so far.
	Progress func(done, total int)
}

// Usage reports token counts billed for an encode call.
type Usage struct {
	PromptTokens int
	TotalTokens  int
}

// Response is the unified embedding response.
type Response struct {
	Embeddings core.Matrix
	Model      string
	Usage      Usage
}

// Encoder is the unified interface for embedding models.
type Encoder interface {
	Encode(ctx context.Context, req Request) (*Response, error)
}

const defaultBatchSize = 32

// batches splits sentences per req.BatchSize and reports progress between calls.
// fn embeds one batch and returns its vectors plus usage.
func batches(ctx context.Context, req Request, fn func(ctx context.Context, batch []string) (core.Matrix, Usage, error)) (*Response, error) {
	size := req.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	total := len(req.Sentences)
	out := &Response{Embeddings: make(core.Matrix, 0, total), Model: req.Model}
	for start := 0; start < total; start += size {
		end := start + size
		if end > total {
			end = total
		}
		vecs, usage, err := fn(ctx, req.Sentences[start:end])
		if err != nil {
			return nil, err
		}
		out.Embeddings = append(out.Embeddings, vecs...)
		out.Usage.PromptTokens += usage.PromptTokens
		out.Usage.TotalTokens += usage.TotalTokens
		if req.Progress != nil {
			req.Progress(end, total)
		}
	}
	if req.TruncateDim > 0 {
		out.Embeddings = out.Embeddings.Truncate(req.TruncateDim)
	}
	return out, nil
}
