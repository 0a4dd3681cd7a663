// Package pipeline provides multi-step evaluation pipelines with sequential/parallel execution.
package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/distill-go/distill/evaluator"
	"github.com/distill-go/distill/runner"
)

// Result holds metrics from pipeline steps (keyed by step name).
type Result struct {
	outputs map[string]evaluator.Metrics
}

// Get returns the metrics of a step by name.
func (r *Result) Get(step string) evaluator.Metrics {
	if r.outputs == nil {
		return nil
	}
	return r.outputs[step]
}

// All returns a copy of all step metrics.
func (r *Result) All() map[string]evaluator.Metrics {
	if r.outputs == nil {
		return nil
	}
	m := make(map[string]evaluator.Metrics, len(r.outputs))
	for k, v := range r.outputs {
		m[k] = v
	}
	return m
}

// Merged returns all step metrics flattened into one map, keys prefixed with
// the step name ("step.metric").
func (r *Result) Merged() evaluator.Metrics {
	out := make(evaluator.Metrics)
	for step, metrics := range r.outputs {
		for k, v := range metrics {
			out[step+"."+k] = v
		}
	}
	return out
}

// StepOption configures a pipeline step.
type StepOption func(*stepDef)

// WithRetry sets retry count and backoff for this step.
func WithRetry(maxRetries int, backoff runner.BackoffFunc) StepOption {
	return func(s *stepDef) {
		s.maxRetries = maxRetries
		s.backoff = backoff
	}
}

// WithTimeout sets a per-step timeout.
func WithTimeout(d time.Duration) StepOption {
	return func(s *stepDef) {
		s.timeout = d
	}
}

// WithFallback sets a fallback evaluator used when the main step fails after retries.
func WithFallback(ev evaluator.Evaluator) StepOption {
	return func(s *stepDef) {
		s.fallback = ev
	}
}

// WithCondition runs this step only when the condition returns true (given current pipeline result).
func WithCondition(cond func(ctx context.Context, result *Result) bool) StepOption {
	return func(s *stepDef) {
		s.condition = cond
	}
}

type stepDef struct {
	name       string
	eval       evaluator.Evaluator
	maxRetries int
	backoff    runner.BackoffFunc
	timeout    time.Duration
	fallback   evaluator.Evaluator
	condition  func(ctx context.Context, result *Result) bool
}

// StepDef is a step definition for use in Parallel. Create with PipelineStep.
type StepDef struct {
	Name       string
	Evaluator  evaluator.Evaluator
	MaxRetries int
	Backoff    runner.BackoffFunc
	Timeout    time.Duration
	Fallback   evaluator.Evaluator
	Condition  func(ctx context.Context, result *Result) bool
}

func (s StepDef) toInternal() stepDef {
	return stepDef{
		name: s.Name, eval: s.Evaluator, maxRetries: s.MaxRetries, backoff: s.Backoff,
		timeout: s.Timeout, fallback: s.Fallback, condition: s.Condition,
	}
}

// node is either a single step or a parallel group.
type node struct {
	parallel bool
	steps    []stepDef
}

// Pipeline represents a multi-step evaluation flow against one student model.
type Pipeline struct {
	name  string
	nodes []node
}

// New creates a new pipeline with the given name.
func New(name string) *Pipeline {
	return &Pipeline{name: name}
}

// Step adds a sequential step.
func (p *Pipeline) Step(name string, ev evaluator.Evaluator, opts ...StepOption) *Pipeline {
	s := stepDef{name: name, eval: ev}
	for _, o := range opts {
		o(&s)
	}
	p.nodes = append(p.nodes, node{parallel: false, steps: []stepDef{s}})
	return p
}

// Parallel adds a group of steps that run in parallel (same student, outputs merged).
// Use PipelineStep to build each step: Parallel(PipelineStep("a", evA), PipelineStep("b", evB)).
func (p *Pipeline) Parallel(steps ...StepDef) *Pipeline {
	if len(steps) == 0 {
		return p
	}
	defs := make([]stepDef, len(steps))
	for i := range steps {
		defs[i] = steps[i].toInternal()
	}
	p.nodes = append(p.nodes, node{parallel: true, steps: defs})
	return p
}

// PipelineStep returns a step definition for use in Parallel.
func PipelineStep(name string, ev evaluator.Evaluator, opts ...StepOption) StepDef {
	s := stepDef{name: name, eval: ev}
	for _, o := range opts {
		o(&s)
	}
	return StepDef{
		Name: s.name, Evaluator: s.eval, MaxRetries: s.maxRetries, Backoff: s.backoff,
		Timeout: s.timeout, Fallback: s.fallback, Condition: s.condition,
	}
}

// Execute runs the pipeline against the student for the given run position.
func (p *Pipeline) Execute(ctx context.Context, student *evaluator.Model, run evaluator.Run) (*Result, error) {
	result := &Result{outputs: make(map[string]evaluator.Metrics)}
	for _, n := range p.nodes {
		if n.parallel {
			outputs, err := p.runParallel(ctx, n.steps, student, run, result)
			if err != nil {
				return nil, err
			}
			for k, v := range outputs {
				result.outputs[k] = v
			}
		} else {
			for _, s := range n.steps {
				if s.condition != nil && !s.condition(ctx, result) {
					continue
				}
				metrics, err := p.runStep(ctx, &s, student, run)
				if err != nil {
					return nil, fmt.Errorf("pipeline step %q: %w", s.name, err)
				}
				result.outputs[s.name] = metrics
			}
		}
	}
	return result, nil
}

func (p *Pipeline) runStep(ctx context.Context, s *stepDef, student *evaluator.Model, run evaluator.Run) (evaluator.Metrics, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		metrics, err := s.eval.Evaluate(ctx, student, run)
		if err == nil {
			return metrics, nil
		}
		lastErr = err
		if attempt == s.maxRetries {
			if s.fallback != nil {
				metrics, err := s.fallback.Evaluate(ctx, student, run)
				if err != nil {
					return nil, fmt.Errorf("step and fallback failed: %w", lastErr)
				}
				return metrics, nil
			}
			return nil, lastErr
		}
		if s.backoff != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff(attempt + 1)):
			}
		}
	}
	return nil, lastErr
}

func (p *Pipeline) runParallel(ctx context.Context, steps []stepDef, student *evaluator.Model, run evaluator.Run, result *Result) (map[string]evaluator.Metrics, error) {
	type pair struct {
		name string
		val  evaluator.Metrics
		err  error
	}
	out := make(map[string]evaluator.Metrics)
	var wg sync.WaitGroup
	ch := make(chan pair, len(steps))
	for _, s := range steps {
		if s.condition != nil && !s.condition(ctx, result) {
			continue
		}
		wg.Add(1)
		go func(s stepDef) {
			defer wg.Done()
			val, err := p.runStep(ctx, &s, student, run)
			ch <- pair{s.name, val, err}
		}(s)
	}
	wg.Wait()
	close(ch)
	for pr := range ch {
		if pr.err != nil {
			return nil, pr.err
		}
		out[pr.name] = pr.val
	}
	return out, nil
}

// ExponentialBackoff is a convenience for pipeline steps.
func ExponentialBackoff(base, max time.Duration) runner.BackoffFunc {
	return func(attempt int) time.Duration {
		d := base * time.Duration(math.Pow(2, float64(attempt-1)))
		if d > max {
			return max
		}
		return d
	}
}
