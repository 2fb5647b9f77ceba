package sparse

import (
	"sort"
	"sync"
)

// CSR is a Compressed Sparse Row matrix: for each row i, a contiguous,
// column-sorted run of (column, value) pairs. CSR gives O(nnz in row)
// row iteration and an efficient non-transposed matrix-vector product
// (spec §3). Grounded in shape on the retrieval pack's
// james-bowman/sparse compressedSparse/CSR type (indptr/ind/data
// layout), renamed to Go-conventional field names.
type CSR struct {
	rows, cols int
	rowPtr     []int
	colIdx     []int
	values     []float64
	origin     Origin

	diagOnce sync.Once
	diag     []float64
}

// NewCSR builds a CSR matrix directly from a row-pointer/column-index/
// value triple, the canonical CSR layout (spec §3): row_ptr has length
// rows+1, and for each row i the half-open range
// [row_ptr[i], row_ptr[i+1]) of colIdx/values holds that row's entries,
// sorted by column index. NewCSR does not re-sort or validate the input;
// use a COO and ToCSR for untrusted input.
func NewCSR(rows, cols int, rowPtr, colIdx []int, values []float64) *CSR {
	if len(rowPtr) != rows+1 {
		panic("sparse: row_ptr has wrong length")
	}
	if len(colIdx) != len(values) {
		panic("sparse: colIdx/values length mismatch")
	}
	return &CSR{rows: rows, cols: cols, rowPtr: rowPtr, colIdx: colIdx, values: values, origin: OriginCSR}
}

// Dims returns the matrix dimensions.
func (m *CSR) Dims() (rows, cols int) { return m.rows, m.cols }

// Origin reports which canonical storage this CSR was originally built
// in or converted from (spec §3).
func (m *CSR) Origin() Origin { return m.origin }

// ToCSR returns the receiver unchanged. It lets CSR satisfy the same
// ingestion shape as COO and DenseMatrix (spec §6: "both formats are
// accepted by analyze and solve; the kernel owns conversion to
// CSR/CSC"), so façade callers can ingest whichever format they already
// hold without a type switch.
func (m *CSR) ToCSR() *CSR { return m }

// NNZ returns the number of stored nonzero entries.
func (m *CSR) NNZ() int { return len(m.values) }

// Row returns the column indices and values of row i, sorted by column
// index. The returned slices alias the CSR's internal storage and must
// not be modified.
func (m *CSR) Row(i int) (cols []int, vals []float64) {
	s, e := m.rowPtr[i], m.rowPtr[i+1]
	return m.colIdx[s:e], m.values[s:e]
}

// RowNNZ returns the number of nonzero entries in row i.
func (m *CSR) RowNNZ(i int) int { return m.rowPtr[i+1] - m.rowPtr[i] }

// At returns M[i][j], locating column j within row i by binary search
// over the sorted column indices (spec §4.2).
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic("sparse: index out of range")
	}
	cols, vals := m.Row(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

// Validate checks the structural invariants of spec §8: row pointers
// non-decreasing, row_ptr[rows]==nnz, and (if requireNonEmptyRows) that
// no row is entirely empty (ErrSingularStructure).
func (m *CSR) Validate(requireNonEmptyRows bool) error {
	if m.rowPtr[0] != 0 || m.rowPtr[m.rows] != len(m.values) {
		return ErrSingularStructure
	}
	for i := 0; i < m.rows; i++ {
		if m.rowPtr[i+1] < m.rowPtr[i] {
			return ErrSingularStructure
		}
		if requireNonEmptyRows && m.rowPtr[i+1] == m.rowPtr[i] {
			return ErrSingularStructure
		}
		cols, _ := m.Row(i)
		for k := 1; k < len(cols); k++ {
			if cols[k] <= cols[k-1] {
				return ErrSingularStructure
			}
		}
	}
	return nil
}

// Diagonal returns M_ii for every i, computed by one binary search per
// row on first call and cached thereafter (spec §3: "the diagonal vector
// is cached on first access"). The returned slice must not be modified.
func (m *CSR) Diagonal() []float64 {
	m.diagOnce.Do(func() {
		n := m.rows
		if m.cols < n {
			n = m.cols
		}
		d := make([]float64, n)
		for i := 0; i < n; i++ {
			d[i] = m.At(i, i)
		}
		m.diag = d
	})
	return m.diag
}

// OffDiagAbsRowSum returns sum_{j != i} |M_ij|, the off-diagonal absolute
// row sum used by the row-dominance test (spec §3, §4.2).
func (m *CSR) OffDiagAbsRowSum(i int) float64 {
	cols, vals := m.Row(i)
	var sum float64
	for k, c := range cols {
		if c != i {
			sum += absF64(vals[k])
		}
	}
	return sum
}

// IsRowDominant reports whether every row satisfies strict diagonal
// dominance (|M_ii| > off-diagonal absolute row sum), and the dominance
// gap defined in spec §3:
//
//	min_i (|M_ii| - rowsum_i) / |M_ii|, clipped to 0 if negative.
//
// IsRowDominant returns a ZeroDiagonalError if any diagonal entry has
// magnitude below the package's divTolerance.
func (m *CSR) IsRowDominant() (dominant bool, gap float64, err error) {
	diag := m.Diagonal()
	dominant = true
	gap = 1
	for i, d := range diag {
		ad := absF64(d)
		if ad < divTolerance {
			return false, 0, &ZeroDiagonalError{Row: i, Value: d}
		}
		rowsum := m.OffDiagAbsRowSum(i)
		if ad <= rowsum {
			dominant = false
		}
		g := (ad - rowsum) / ad
		if g < gap {
			gap = g
		}
	}
	if gap < 0 {
		gap = 0
	}
	return dominant, gap, nil
}

// MulVecTo computes dst = M*x (trans=false) or dst = Mᵀ*x (trans=true)
// and stores the result in dst, which must have length m.rows
// (trans=false) or m.cols (trans=true).
//
// The non-transposed product iterates rows and accumulates into a local
// scalar before a single write, 4-wide unrolled on the inner loop to
// expose instruction-level parallelism (spec §4.2); the transposed
// product scatters into dst one entry at a time since CSR has no
// efficient column view.
func (m *CSR) MulVecTo(dst []float64, trans bool, x []float64) {
	if !trans {
		if len(x) != m.cols || len(dst) != m.rows {
			panic(ErrDimensionMismatch)
		}
		for i := 0; i < m.rows; i++ {
			cols, vals := m.Row(i)
			var sum float64
			n := len(cols) - len(cols)%4
			k := 0
			for ; k < n; k += 4 {
				sum += vals[k]*x[cols[k]] + vals[k+1]*x[cols[k+1]] + vals[k+2]*x[cols[k+2]] + vals[k+3]*x[cols[k+3]]
			}
			for ; k < len(cols); k++ {
				sum += vals[k] * x[cols[k]]
			}
			dst[i] = sum
		}
		return
	}

	if len(x) != m.rows || len(dst) != m.cols {
		panic(ErrDimensionMismatch)
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < m.rows; i++ {
		xi := x[i]
		if xi == 0 {
			continue
		}
		cols, vals := m.Row(i)
		for k, c := range cols {
			dst[c] += vals[k] * xi
		}
	}
}

func absF64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

const divTolerance = 1e-15
