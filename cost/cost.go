// Package cost provides token counting and cost estimation for embedding requests.
package cost

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/distill-go/distill/encoder"
)

// Estimator estimates cost for embedding a batch of sentences.
type Estimator struct {
	model        string
	pricePer1M   float64
	tokenCounter TokenCounter
}

// TokenCounter estimates token count for text (e.g. ~4 chars per token for English).
type TokenCounter interface {
	CountTokens(text string) int
}

// SimpleCounter uses a rough heuristic: one token per four runes.
type SimpleCounter struct{}

func (SimpleCounter) CountTokens(text string) int {
	n := 0
	for range text {
		n++
	}
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// EstimatorOption configures the estimator.
type EstimatorOption func(*Estimator)

// WithTokenCounter sets a custom token counter.
func WithTokenCounter(tc TokenCounter) EstimatorOption {
	return func(e *Estimator) {
		e.tokenCounter = tc
	}
}

// NewEstimator creates an estimator for a model with given pricing (per 1M tokens, USD).
func NewEstimator(model string, pricePer1M float64, opts ...EstimatorOption) *Estimator {
	e := &Estimator{
		model:        model,
		pricePer1M:   pricePer1M,
		tokenCounter: SimpleCounter{},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Estimate returns the estimated token count and cost in USD for embedding the sentences.
func (e *Estimator) Estimate(ctx context.Context, sentences []string) (tokens int, totalUSD float64) {
	if e.tokenCounter != nil {
		for _, s := range sentences {
			tokens += e.tokenCounter.CountTokens(s)
		}
	}
	totalUSD = (float64(tokens) / 1_000_000) * e.pricePer1M
	return tokens, totalUSD
}

// Tracker records cost per request (from actual usage in encoder responses).
type Tracker struct {
	totalTokens  atomic.Uint64
	mu           sync.Mutex
	totalCostUSD float64
	modelPricing map[string]float64 // per 1M tokens
}

// NewTracker creates a cost tracker. Register model pricing with RegisterModel.
func NewTracker() *Tracker {
	return &Tracker{modelPricing: make(map[string]float64)}
}

// RegisterModel sets pricing (per 1M tokens) for a model.
func (t *Tracker) RegisterModel(model string, pricePer1M float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.modelPricing[model] = pricePer1M
}

// Record records usage from an encode response and returns the cost in USD.
func (t *Tracker) Record(model string, usage encoder.Usage) float64 {
	tokens := usage.TotalTokens
	if tokens == 0 {
		tokens = usage.PromptTokens
	}
	t.totalTokens.Add(uint64(tokens))
	t.mu.Lock()
	defer t.mu.Unlock()
	price, ok := t.modelPricing[model]
	if !ok {
		return 0
	}
	cost := (float64(tokens) / 1_000_000) * price
	t.totalCostUSD += cost
	return cost
}

// TotalTokens returns the total tokens recorded.
func (t *Tracker) TotalTokens() uint64 {
	return t.totalTokens.Load()
}

// TotalCostUSD returns total cost in USD.
func (t *Tracker) TotalCostUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalCostUSD
}
