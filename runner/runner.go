// Package runner executes evaluators with retries, timeouts, and run history recording.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/distill-go/distill/analytics"
	"github.com/distill-go/distill/evaluator"
)

// BackoffFunc returns the delay before retry attempt n (1-based).
type BackoffFunc func(attempt int) time.Duration

// ExponentialBackoff doubles the delay each attempt, capped at max.
func ExponentialBackoff(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// Runner wraps an evaluator with retry, timeout, and optional history recording.
type Runner struct {
	Evaluator   evaluator.Evaluator
	MaxRetries  int
	Backoff     BackoffFunc
	BaseTimeout time.Duration
	History     analytics.Store
	HistoryName string
}

// Option configures a Runner.
type Option func(*Runner)

// WithRetry sets the retry count and backoff strategy.
func WithRetry(maxRetries int, backoff BackoffFunc) Option {
	return func(r *Runner) {
		r.MaxRetries = maxRetries
		r.Backoff = backoff
	}
}

// WithTimeout bounds each evaluation (including retries) by the given duration.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.BaseTimeout = d }
}

// WithHistory records each run outcome to the given store under the given
// evaluator name.
func WithHistory(store analytics.Store, name string) Option {
	return func(r *Runner) {
		r.History = store
		r.HistoryName = name
	}
}

// New creates a Runner around the given evaluator.
func New(ev evaluator.Evaluator, opts ...Option) *Runner {
	r := &Runner{
		Evaluator: ev,
		Backoff:   ExponentialBackoff(time.Second, 30*time.Second),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of a successful Run.
type Result struct {
	Metrics  evaluator.Metrics
	Primary  float64
	Attempts int
	Duration time.Duration
}

// Run evaluates the student, retrying on failure. The outcome is recorded to
// History when configured, on both success and final failure.
func (r *Runner) Run(ctx context.Context, student *evaluator.Model, run evaluator.Run) (*Result, error) {
	if r.BaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.BaseTimeout)
		defer cancel()
	}

	start := time.Now()
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempts = attempt
				r.record(ctx, student, run, 0, time.Since(start), false)
				return nil, fmt.Errorf("runner after %d attempts: %w", attempts, lastErr)
			case <-time.After(r.Backoff(attempt)):
			}
		}
		attempts = attempt + 1
		metrics, err := r.Evaluator.Evaluate(ctx, student, run)
		if err != nil {
			lastErr = err
			continue
		}
		elapsed := time.Since(start)
		primary := metrics[r.Evaluator.PrimaryMetric()]
		r.record(ctx, student, run, primary, elapsed, true)
		return &Result{
			Metrics:  metrics,
			Primary:  primary,
			Attempts: attempts,
			Duration: elapsed,
		}, nil
	}
	r.record(ctx, student, run, 0, time.Since(start), false)
	return nil, fmt.Errorf("runner after %d attempts: %w", attempts, lastErr)
}

// record writes a RunRecord when history is configured. Negated metrics
// (e.g. negative_mse) are stored as positive MSE so lower stays better.
func (r *Runner) record(ctx context.Context, student *evaluator.Model, run evaluator.Run, primary float64, elapsed time.Duration, ok bool) {
	if r.History == nil {
		return
	}
	name := r.HistoryName
	if name == "" {
		name = r.Evaluator.PrimaryMetric()
	}
	mse := primary
	if strings.HasSuffix(r.Evaluator.PrimaryMetric(), "negative_mse") {
		mse = -primary
	}
	rec := analytics.RunRecord{
		Evaluator:  name,
		Model:      student.Name,
		Epoch:      run.Epoch,
		Steps:      run.Steps,
		MSE:        mse,
		DurationMs: elapsed.Milliseconds(),
		Success:    ok,
		At:         time.Now(),
	}
	// Recording is best-effort.
	_ = r.History.Record(ctx, rec)
}
