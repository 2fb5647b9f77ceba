package sparse

import "gonum.org/v1/gonum/mat"

// Matrix is the shared read-only view every estimator in the solver
// kernel operates against, grounded on the Design Notes' tagged-variant
// guidance (spec §9): CSR and CSC both implement it, so algorithm code
// that only needs matvec/diagonal access does not care which compressed
// layout it was handed.
type Matrix interface {
	// Dims returns the matrix dimensions.
	Dims() (rows, cols int)

	// NNZ returns the number of stored nonzero entries.
	NNZ() int

	// MulVecTo computes dst = M*x (trans=false) or dst = Mᵀ*x
	// (trans=true).
	MulVecTo(dst []float64, trans bool, x []float64)

	// Diagonal returns M_ii for every i, cached on first access.
	Diagonal() []float64

	// Origin reports which canonical storage this Matrix was originally
	// built in or converted from (spec §3: "each matrix records its
	// origin format").
	Origin() Origin
}

var (
	_ Matrix = (*CSR)(nil)
	_ Matrix = (*CSC)(nil)
)

// Origin records which canonical storage a Matrix was originally built
// in, so callers and the façade can report provenance without a type
// switch (spec §3: "each matrix records its origin format").
type Origin int

const (
	// OriginCOO indicates the matrix was ingested as coordinate triples.
	OriginCOO Origin = iota
	// OriginCSR indicates the matrix was built directly as CSR.
	OriginCSR
	// OriginCSC indicates the matrix was built directly as CSC.
	OriginCSC
	// OriginDense indicates the matrix was ingested as a dense array.
	OriginDense
)

// String returns a human-readable label for o.
func (o Origin) String() string {
	switch o {
	case OriginCOO:
		return "coo"
	case OriginCSR:
		return "csr"
	case OriginCSC:
		return "csc"
	case OriginDense:
		return "dense"
	default:
		return "unknown"
	}
}

// DenseMatrix is the dense ingestion shape of spec §6: rows*cols
// row-major floats. It wraps gonum's mat.Dense directly so a caller
// already holding a *mat.Dense (e.g. from gonum's own linear algebra
// routines) can ingest it without a conversion pass, and so ToCOO's
// sweep reuses mat.Dense's bounds-checked At rather than hand-rolled
// row-major indexing (SPEC_FULL.md Domain Stack).
type DenseMatrix struct {
	m *mat.Dense
}

// NewDenseMatrix wraps a row-major data slice of length rows*cols.
func NewDenseMatrix(rows, cols int, data []float64) *DenseMatrix {
	if len(data) != rows*cols {
		panic(ErrDimensionMismatch)
	}
	return &DenseMatrix{m: mat.NewDense(rows, cols, append([]float64(nil), data...))}
}

// NewDenseMatrixFromMat wraps an existing *mat.Dense without copying.
func NewDenseMatrixFromMat(m *mat.Dense) *DenseMatrix {
	return &DenseMatrix{m: m}
}

// Dims returns the matrix dimensions.
func (d *DenseMatrix) Dims() (rows, cols int) { return d.m.Dims() }

// At returns M[i][j].
func (d *DenseMatrix) At(i, j int) float64 { return d.m.At(i, j) }

// ToCOO converts the dense matrix to COOrdinate format, dropping entries
// with magnitude below ZeroTolerance.
func (d *DenseMatrix) ToCOO() *COO {
	rows, cols := d.Dims()
	coo := NewCOO(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := d.At(i, j)
			if absF64(v) >= ZeroTolerance {
				coo.AddEntry(i, j, v)
			}
		}
	}
	coo.origin = OriginDense
	return coo
}

// ToCSR converts the dense matrix directly to Compressed Sparse Row
// format, dropping entries below ZeroTolerance (spec §6's dense
// ingestion path).
func (d *DenseMatrix) ToCSR() *CSR {
	return d.ToCOO().ToCSR()
}
