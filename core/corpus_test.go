package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorpus_Validate(t *testing.T) {
	c := &Corpus{Source: []string{"a", "b"}, Target: []string{"x", "y"}}
	assert.NoError(t, c.Validate())

	empty := &Corpus{}
	assert.ErrorIs(t, empty.Validate(), ErrEmptyCorpus)

	mismatch := &Corpus{Source: []string{"a", "b"}, Target: []string{"x"}}
	assert.ErrorIs(t, mismatch.Validate(), ErrLengthMismatch)
}

func TestCorpus_Pairs(t *testing.T) {
	c := &Corpus{Source: []string{"a", "b"}, Target: []string{"x", "y"}}
	assert.Equal(t, 2, c.Pairs())
	assert.Equal(t, Pair{Source: "b", Target: "y"}, c.PairAt(1))
}

func TestCorpus_Copy(t *testing.T) {
	c := &Corpus{
		ID: "c1", Version: "1.0.0",
		Source:   []string{"a"},
		Target:   []string{"x"},
		Metadata: map[string]interface{}{"k": "v"},
	}
	q := c.Copy()
	require.NotSame(t, c, q)
	assert.Equal(t, c.ID, q.ID)
	assert.Equal(t, c.Source, q.Source)
	q.Source[0] = "changed"
	q.Metadata["k"] = "changed"
	assert.Equal(t, "a", c.Source[0])
	assert.Equal(t, "v", c.Metadata["k"])
}
