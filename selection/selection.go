// Package selection provides best-checkpoint tracking and candidate comparison.
package selection

import (
	"math"
	"sync"
	"time"
)

// Checkpoint is one recorded evaluation of a student checkpoint.
type Checkpoint struct {
	Model string
	Epoch int
	Steps int
	Score float64
	At    time.Time
}

// OnBestFunc is called when a checkpoint improves on the best so far.
type OnBestFunc func(c Checkpoint)

// Tracker keeps the best checkpoint seen so far by primary metric score
// (higher is better; negated metrics like negative_mse already satisfy this).
type Tracker struct {
	mu       sync.RWMutex
	minDelta float64
	onBest   OnBestFunc
	best     *Checkpoint
	history  []Checkpoint
}

// NewTracker creates a tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// WithMinDelta requires a new score to beat the best by at least delta before counting as an improvement.
func (t *Tracker) WithMinDelta(delta float64) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.minDelta = delta
	return t
}

// WithOnBest sets a callback invoked each time the best checkpoint changes (e.g. to save the model).
func (t *Tracker) WithOnBest(cb OnBestFunc) *Tracker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onBest = cb
	return t
}

// Record adds a checkpoint score and returns true if it is a new best.
func (t *Tracker) Record(c Checkpoint) bool {
	if c.At.IsZero() {
		c.At = time.Now()
	}
	t.mu.Lock()
	t.history = append(t.history, c)
	improved := t.best == nil || c.Score > t.best.Score+t.minDelta
	var cb OnBestFunc
	if improved {
		best := c
		t.best = &best
		cb = t.onBest
	}
	t.mu.Unlock()
	if cb != nil {
		cb(c)
	}
	return improved
}

// Best returns the best checkpoint and true if any was recorded.
func (t *Tracker) Best() (Checkpoint, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.best == nil {
		return Checkpoint{}, false
	}
	return *t.best, true
}

// History returns a copy of all recorded checkpoints in order.
func (t *Tracker) History() []Checkpoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Checkpoint, len(t.history))
	copy(out, t.history)
	return out
}

// OnWinnerFunc is called when a comparison has a statistically significant winner (once).
type OnWinnerFunc func(winnerName string)

// Comparison compares candidate student models by their per-run scores and
// declares a winner once the difference in means is significant.
type Comparison struct {
	mu            sync.RWMutex
	name          string
	candidates    []candidate
	minSampleSize int64
	onWinner      OnWinnerFunc
	winnerFired   bool
}

type candidate struct {
	name   string
	scores []float64
}

// NewComparison creates a comparison with the given name.
func NewComparison(name string) *Comparison {
	return &Comparison{name: name}
}

// Candidate adds a candidate model by name.
func (c *Comparison) Candidate(name string) *Comparison {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.candidates = append(c.candidates, candidate{name: name})
	return c
}

// WithMinSampleSize sets the minimum runs per candidate before considering a winner.
func (c *Comparison) WithMinSampleSize(n int64) *Comparison {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.minSampleSize = n
	return c
}

// WithOnWinner sets a callback invoked once when a winner emerges.
func (c *Comparison) WithOnWinner(cb OnWinnerFunc) *Comparison {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onWinner = cb
	return c
}

// RecordScore records a run score for a candidate (higher is better).
// If a winner emerges and WithOnWinner was set, the callback is invoked once.
func (c *Comparison) RecordScore(candidateName string, score float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.candidates {
		if c.candidates[i].name == candidateName {
			c.candidates[i].scores = append(c.candidates[i].scores, score)
			if !c.winnerFired && c.onWinner != nil && c.sampledLocked() {
				if idx, ok := c.winnerLocked(); ok {
					c.winnerFired = true
					name := c.candidates[idx].name
					c.mu.Unlock()
					c.onWinner(name)
					c.mu.Lock()
				}
			}
			return
		}
	}
}

// HasWinner returns true if min sample size is met and one candidate is significantly better.
func (c *Comparison) HasWinner() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.candidates) < 2 {
		return false
	}
	if !c.sampledLocked() {
		return false
	}
	_, ok := c.winnerLocked()
	return ok
}

func (c *Comparison) sampledLocked() bool {
	for _, cd := range c.candidates {
		if int64(len(cd.scores)) < c.minSampleSize {
			return false
		}
	}
	return true
}

func (c *Comparison) winnerLocked() (int, bool) {
	bestIdx := -1
	bestMean := math.Inf(-1)
	for i := range c.candidates {
		if len(c.candidates[i].scores) == 0 {
			continue
		}
		m := mean(c.candidates[i].scores)
		if m > bestMean {
			bestMean = m
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return 0, false
	}
	// Two-sample z-test of the best mean against each other candidate.
	bestVar := variance(c.candidates[bestIdx].scores, bestMean)
	bestN := float64(len(c.candidates[bestIdx].scores))
	for i := range c.candidates {
		if i == bestIdx || len(c.candidates[i].scores) == 0 {
			continue
		}
		m2 := mean(c.candidates[i].scores)
		v2 := variance(c.candidates[i].scores, m2)
		se := math.Sqrt(bestVar/bestN + v2/float64(len(c.candidates[i].scores)))
		if se == 0 {
			if bestMean <= m2 {
				return bestIdx, false
			}
			continue
		}
		if (bestMean-m2)/se < 1.96 {
			return bestIdx, false
		}
	}
	return bestIdx, true
}

// Winner returns the name of the winning candidate and true if there is one.
func (c *Comparison) Winner() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx, ok := c.winnerLocked()
	if !ok {
		return "", false
	}
	return c.candidates[idx].name, true
}

// Stats returns per-candidate run counts and mean scores.
func (c *Comparison) Stats() (names []string, counts []int64, means []float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names = make([]string, len(c.candidates))
	counts = make([]int64, len(c.candidates))
	means = make([]float64, len(c.candidates))
	for i := range c.candidates {
		names[i] = c.candidates[i].name
		counts[i] = int64(len(c.candidates[i].scores))
		if len(c.candidates[i].scores) > 0 {
			means[i] = mean(c.candidates[i].scores)
		}
	}
	return names, counts, means
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs)-1)
}
