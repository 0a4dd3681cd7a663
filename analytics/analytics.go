// Package analytics provides evaluation run recording and aggregate queries for observability.
package analytics

import (
	"context"
	"sync"
	"time"
)

// RunRecord is a single recorded evaluation (evaluator name, model, training
// position, MSE reading, duration, success).
type RunRecord struct {
	Evaluator  string
	Model      string
	Epoch      int
	Steps      int
	MSE        float64
	DurationMs int64
	Success    bool
	At         time.Time
}

// Store is the interface for recording and querying evaluation runs.
type Store interface {
	Record(ctx context.Context, r RunRecord) error
	Query(ctx context.Context, q Query) ([]Aggregate, error)
}

// Query filters and groups runs for aggregation.
type Query struct {
	Evaluator string
	Model     string
	From      time.Time
	To        time.Time
	GroupBy   string // "evaluator", "model", "day", "hour"
	Limit     int
}

// Aggregate is a bucketed aggregate (e.g. per model or per day). BestMSE is the
// minimum MSE over successful runs in the bucket (lower is better).
type Aggregate struct {
	Key           string
	Runs          int64
	SuccessCount  int64
	BestMSE       float64
	AvgMSE        float64
	AvgDurationMs float64
}

// MemoryStore is an in-memory implementation (bounded slice, no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	max     int
	records []RunRecord
}

// NewMemoryStore creates an in-memory store that keeps at most max records (0 = unbounded).
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{max: max, records: make([]RunRecord, 0, 256)}
}

// Record implements Store.
func (m *MemoryStore) Record(ctx context.Context, r RunRecord) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	if m.max > 0 && len(m.records) > m.max {
		m.records = m.records[len(m.records)-m.max:]
	}
	return nil
}

// Query implements Store. GroupBy "evaluator" groups by evaluator name,
// "model" by model, "day"/"hour" by timestamp bucket.
func (m *MemoryStore) Query(ctx context.Context, q Query) ([]Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return aggregate(m.records, q), nil
}

// aggregate applies the query filters and grouping to records in memory.
// Shared by MemoryStore and RedisStore.
func aggregate(records []RunRecord, q Query) []Aggregate {
	agg := make(map[string]*Aggregate)
	sums := make(map[string]float64)
	durSums := make(map[string]float64)
	for _, r := range records {
		if q.Evaluator != "" && r.Evaluator != q.Evaluator {
			continue
		}
		if q.Model != "" && r.Model != q.Model {
			continue
		}
		if !q.From.IsZero() && r.At.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && r.At.After(q.To) {
			continue
		}
		k := groupKey(r, q.GroupBy)
		a := agg[k]
		if a == nil {
			a = &Aggregate{Key: k}
			agg[k] = a
		}
		a.Runs++
		durSums[k] += float64(r.DurationMs)
		if r.Success {
			if a.SuccessCount == 0 || r.MSE < a.BestMSE {
				a.BestMSE = r.MSE
			}
			a.SuccessCount++
			sums[k] += r.MSE
		}
	}
	out := make([]Aggregate, 0, len(agg))
	for k, a := range agg {
		if a.SuccessCount > 0 {
			a.AvgMSE = sums[k] / float64(a.SuccessCount)
		}
		if a.Runs > 0 {
			a.AvgDurationMs = durSums[k] / float64(a.Runs)
		}
		out = append(out, *a)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func groupKey(r RunRecord, groupBy string) string {
	switch groupBy {
	case "evaluator":
		return r.Evaluator
	case "model":
		return r.Model
	case "day":
		return r.At.Format("2006-01-02")
	case "hour":
		return r.At.Format("2006-01-02-15")
	default:
		return "all"
	}
}
