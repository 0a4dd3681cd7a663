package core

import "fmt"

// Matrix is an embedding matrix: one row per sentence, one column per dimension.
type Matrix [][]float32

// Rows returns the number of embedded sentences.
func (m Matrix) Rows() int {
	return len(m)
}

// Dim returns the embedding width, or 0 for an empty matrix.
func (m Matrix) Dim() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// Truncate cuts every row to at most d columns. d <= 0 leaves the matrix unchanged.
func (m Matrix) Truncate(d int) Matrix {
	if d <= 0 || d >= m.Dim() {
		return m
	}
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = row[:d]
	}
	return out
}

// Copy returns a deep copy of the matrix.
func (m Matrix) Copy() Matrix {
	out := make(Matrix, len(m))
	for i, row := range m {
		out[i] = append([]float32(nil), row...)
	}
	return out
}

// SameShape returns an error when a and b differ in row count or width.
func SameShape(a, b Matrix) error {
	if a.Rows() != b.Rows() {
		return fmt.Errorf("%w: %d vs %d rows", ErrLengthMismatch, a.Rows(), b.Rows())
	}
	if a.Dim() != b.Dim() {
		return fmt.Errorf("%w: %d vs %d dimensions", ErrDimMismatch, a.Dim(), b.Dim())
	}
	return nil
}
