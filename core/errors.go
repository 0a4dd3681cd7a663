// Package core provides the corpus and embedding-matrix types shared across distill.
package core

import "errors"

// Sentinel errors for corpus and matrix operations.
var (
	ErrCorpusNotFound = errors.New("corpus not found")
	ErrEmptyCorpus    = errors.New("corpus has no sentence pairs")
	ErrLengthMismatch = errors.New("sentence count mismatch")
	ErrDimMismatch    = errors.New("embedding dimension mismatch")
	ErrInvalidVersion = errors.New("invalid version format")
)

// ValidationError carries field-level validation context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
