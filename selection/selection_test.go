package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_BestAndHistory(t *testing.T) {
	tr := NewTracker()
	assert.True(t, tr.Record(Checkpoint{Model: "s", Epoch: 1, Score: -50}))
	assert.True(t, tr.Record(Checkpoint{Model: "s", Epoch: 2, Score: -20}))
	assert.False(t, tr.Record(Checkpoint{Model: "s", Epoch: 3, Score: -30}))

	best, ok := tr.Best()
	require.True(t, ok)
	assert.Equal(t, 2, best.Epoch)
	assert.Len(t, tr.History(), 3)
}

func TestTracker_MinDelta(t *testing.T) {
	tr := NewTracker().WithMinDelta(1.0)
	assert.True(t, tr.Record(Checkpoint{Score: 0}))
	assert.False(t, tr.Record(Checkpoint{Score: 0.5}))
	assert.True(t, tr.Record(Checkpoint{Score: 2}))
}

func TestTracker_OnBest(t *testing.T) {
	var fired []float64
	tr := NewTracker().WithOnBest(func(c Checkpoint) {
		fired = append(fired, c.Score)
	})
	tr.Record(Checkpoint{Score: 1})
	tr.Record(Checkpoint{Score: 0.5})
	tr.Record(Checkpoint{Score: 2})
	assert.Equal(t, []float64{1, 2}, fired)
}

func TestTracker_EmptyBest(t *testing.T) {
	_, ok := NewTracker().Best()
	assert.False(t, ok)
}

func TestComparison_Winner(t *testing.T) {
	c := NewComparison("candidates").
		Candidate("a").
		Candidate("b").
		WithMinSampleSize(5)

	// Candidate a is clearly better, with some variance in both.
	aScores := []float64{-10, -11, -9, -10.5, -9.5}
	bScores := []float64{-30, -31, -29, -30.5, -29.5}
	for i := range aScores {
		c.RecordScore("a", aScores[i])
		c.RecordScore("b", bScores[i])
	}
	require.True(t, c.HasWinner())
	winner, ok := c.Winner()
	require.True(t, ok)
	assert.Equal(t, "a", winner)
}

func TestComparison_NoWinnerBelowSampleSize(t *testing.T) {
	c := NewComparison("candidates").
		Candidate("a").
		Candidate("b").
		WithMinSampleSize(10)
	c.RecordScore("a", -10)
	c.RecordScore("b", -30)
	assert.False(t, c.HasWinner())
}

func TestComparison_NoWinnerWhenClose(t *testing.T) {
	c := NewComparison("candidates").
		Candidate("a").
		Candidate("b").
		WithMinSampleSize(3)
	for _, s := range []float64{-10, -12, -8} {
		c.RecordScore("a", s)
	}
	for _, s := range []float64{-11, -9, -10} {
		c.RecordScore("b", s)
	}
	assert.False(t, c.HasWinner())
}

func TestComparison_OnWinnerFiresOnce(t *testing.T) {
	var winners []string
	c := NewComparison("candidates").
		Candidate("a").
		Candidate("b").
		WithMinSampleSize(0).
		WithOnWinner(func(name string) { winners = append(winners, name) })
	for i := 0; i < 5; i++ {
		c.RecordScore("a", -10)
		c.RecordScore("b", -30+float64(i))
	}
	assert.Len(t, winners, 1)
	assert.Equal(t, "a", winners[0])
}

func TestComparison_Stats(t *testing.T) {
	c := NewComparison("candidates").Candidate("a").Candidate("b")
	c.RecordScore("a", -10)
	c.RecordScore("a", -20)
	names, counts, means := c.Stats()
	assert.Equal(t, []string{"a", "b"}, names)
	assert.Equal(t, []int64{2, 0}, counts)
	assert.InDelta(t, -15, means[0], 1e-9)
}
