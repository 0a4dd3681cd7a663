// Package distill provides a Go library for evaluating knowledge-distilled
// embedding models against their teacher models, with corpus versioning,
// run analytics, and pluggable encoder backends.
//
// Quick start:
//
//	corpus := distill.New("en-de-dev").
//		WithName("EN-DE dev set").
//		WithPair("The cat sits on the mat.", "Die Katze sitzt auf der Matte.").
//		WithPair("It is raining today.", "Heute regnet es.").
//		Build()
//
//	teacher := evaluator.NewModel("text-embedding-3-large", openaiEnc)
//	student := evaluator.NewModel("my-distilled-model", ollamaEnc)
//
//	mse, err := evaluator.NewMSE(ctx, teacher, corpus, evaluator.WithName("en-de"))
//	metrics, err := mse.Evaluate(ctx, student, evaluator.NoTraining)
package distill

import (
	"time"

	"github.com/distill-go/distill/core"
)

// Builder constructs a Corpus via a fluent API.
type Builder struct {
	id          string
	version     string
	name        string
	description string
	source      []string
	target      []string
	metadata    map[string]interface{}
}

// New starts a new corpus builder with the given id.
func New(id string) *Builder {
	return &Builder{
		id:       id,
		version:  "1.0.0",
		metadata: make(map[string]interface{}),
	}
}

// WithVersion sets the corpus version (semantic versioning).
func (b *Builder) WithVersion(v string) *Builder {
	b.version = v
	return b
}

// WithName sets the human-readable name.
func (b *Builder) WithName(name string) *Builder {
	b.name = name
	return b
}

// WithDescription sets the description.
func (b *Builder) WithDescription(desc string) *Builder {
	b.description = desc
	return b
}

// WithPair adds one aligned sentence pair (source for the teacher, target for the student).
func (b *Builder) WithPair(source, target string) *Builder {
	b.source = append(b.source, source)
	b.target = append(b.target, target)
	return b
}

// WithPairs adds aligned sentence pairs from two index-aligned slices.
// Panics are avoided; extra sentences in the longer slice are ignored.
func (b *Builder) WithPairs(source, target []string) *Builder {
	n := len(source)
	if len(target) < n {
		n = len(target)
	}
	b.source = append(b.source, source[:n]...)
	b.target = append(b.target, target[:n]...)
	return b
}

// WithMetadata sets or merges metadata key-value pairs.
func (b *Builder) WithMetadata(m map[string]interface{}) *Builder {
	for k, v := range m {
		b.metadata[k] = v
	}
	return b
}

// Build produces the Corpus.
func (b *Builder) Build() *core.Corpus {
	now := time.Now()
	c := &core.Corpus{
		ID:          b.id,
		Version:     b.version,
		Name:        b.name,
		Description: b.description,
		Source:      append([]string(nil), b.source...),
		Target:      append([]string(nil), b.target...),
		Metadata:    make(map[string]interface{}),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for k, v := range b.metadata {
		c.Metadata[k] = v
	}
	return c
}

// Re-export core types for convenience.
type (
	// Corpus is a versioned parallel corpus for distillation evaluation.
	Corpus = core.Corpus
	// Pair is one aligned sentence pair.
	Pair = core.Pair
	// Matrix is a row-major embedding matrix.
	Matrix = core.Matrix
)
