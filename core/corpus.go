package core

import (
	"fmt"
	"time"
)

// Pair is one aligned sentence pair (source for the teacher, target for the student).
type Pair struct {
	Source string
	Target string
}

// Corpus represents a versioned parallel corpus for distillation evaluation.
// Source sentences are embedded by the teacher model, target sentences by the
// student under evaluation. Both slices are index-aligned.
type Corpus struct {
	ID          string
	Version     string
	Name        string
	Description string
	Source      []string
	Target      []string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Validate checks that the corpus is non-empty and that source and target are aligned.
func (c *Corpus) Validate() error {
	if len(c.Source) == 0 || len(c.Target) == 0 {
		return ErrEmptyCorpus
	}
	if len(c.Source) != len(c.Target) {
		return fmt.Errorf("%w: %d source vs %d target sentences", ErrLengthMismatch, len(c.Source), len(c.Target))
	}
	return nil
}

// Pairs returns the number of aligned sentence pairs.
func (c *Corpus) Pairs() int {
	if len(c.Source) < len(c.Target) {
		return len(c.Source)
	}
	return len(c.Target)
}

// PairAt returns the aligned pair at index i.
func (c *Corpus) PairAt(i int) Pair {
	return Pair{Source: c.Source[i], Target: c.Target[i]}
}

// Copy returns a deep copy of the corpus.
func (c *Corpus) Copy() *Corpus {
	q := *c
	q.Source = append([]string(nil), c.Source...)
	q.Target = append([]string(nil), c.Target...)
	q.Metadata = make(map[string]interface{}, len(c.Metadata))
	for k, v := range c.Metadata {
		q.Metadata[k] = v
	}
	return &q
}
