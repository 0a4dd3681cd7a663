package evaluator

import (
	"context"
	"fmt"
)

// Sequential runs several evaluators in order and merges their metrics.
// Later evaluators win on key collisions. The primary metric is the last
// evaluator's primary metric.
type Sequential struct {
	evals []Evaluator
}

// NewSequential creates a sequential evaluator over the given evaluators.
func NewSequential(evals ...Evaluator) *Sequential {
	return &Sequential{evals: evals}
}

// Evaluate implements Evaluator.
func (s *Sequential) Evaluate(ctx context.Context, student *Model, run Run) (Metrics, error) {
	if len(s.evals) == 0 {
		return nil, fmt.Errorf("sequential evaluator: no evaluators configured")
	}
	merged := make(Metrics)
	for _, ev := range s.evals {
		metrics, err := ev.Evaluate(ctx, student, run)
		if err != nil {
			return nil, err
		}
		for k, v := range metrics {
			merged[k] = v
		}
	}
	return merged, nil
}

// PrimaryMetric implements Evaluator.
func (s *Sequential) PrimaryMetric() string {
	if len(s.evals) == 0 {
		return ""
	}
	return s.evals[len(s.evals)-1].PrimaryMetric()
}
