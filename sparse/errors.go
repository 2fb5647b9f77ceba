// Package sparse implements the CSR/CSC/COO sparse-matrix substrate the
// solver kernel is built on: ingestion, format conversion, row/column
// iteration, matrix-vector products, diagonal extraction and the
// diagonal-dominance test (spec §3, §4.2).
package sparse

import (
	"errors"
	"fmt"
)

// Sentinel structural/input errors, in the gonum/mat convention of
// package-level error values (mat.ErrShape and siblings) that callers
// compare with errors.Is.
var (
	// ErrSingularStructure is returned when a row (or column) of an
	// ingested matrix has no nonzero entries.
	ErrSingularStructure = errors.New("sparse: row has no nonzero entries")

	// ErrDimensionMismatch is returned when a vector passed to a matrix
	// operation does not match the matrix's dimension.
	ErrDimensionMismatch = errors.New("sparse: dimension mismatch")

	// ErrInvalidIndex is returned when a coordinate falls outside the
	// declared bounds of a matrix.
	ErrInvalidIndex = errors.New("sparse: index out of range")

	// ErrNonFiniteValue is returned when an ingested value is NaN or
	// infinite.
	ErrNonFiniteValue = errors.New("sparse: non-finite value")
)

// ZeroDiagonalError reports that a diagonal entry's magnitude fell below
// the divide tolerance, making it unsafe to use as a pivot.
type ZeroDiagonalError struct {
	Row   int
	Value float64
}

func (e *ZeroDiagonalError) Error() string {
	return fmt.Sprintf("sparse: diagonal entry at row %d has magnitude %g below tolerance", e.Row, e.Value)
}
