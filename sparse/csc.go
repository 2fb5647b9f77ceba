package sparse

import (
	"sort"
	"sync"
)

// CSC is a Compressed Sparse Column matrix: for each column j, a
// contiguous, row-sorted run of (row, value) pairs — the transpose
// layout of CSR. CSC is required for forward push, which scatters a
// pushed value down column i of M, and for the column-dominance check
// (spec §3).
type CSC struct {
	rows, cols int
	colPtr     []int
	rowIdx     []int
	values     []float64
	origin     Origin

	diagOnce sync.Once
	diag     []float64
}

// NewCSC builds a CSC matrix directly from a col-pointer/row-index/value
// triple: col_ptr has length cols+1, and for column j the half-open
// range [col_ptr[j], col_ptr[j+1]) of rowIdx/values holds that column's
// entries, sorted by row index.
func NewCSC(rows, cols int, colPtr, rowIdx []int, values []float64) *CSC {
	if len(colPtr) != cols+1 {
		panic("sparse: col_ptr has wrong length")
	}
	if len(rowIdx) != len(values) {
		panic("sparse: rowIdx/values length mismatch")
	}
	return &CSC{rows: rows, cols: cols, colPtr: colPtr, rowIdx: rowIdx, values: values, origin: OriginCSC}
}

// Dims returns the matrix dimensions.
func (m *CSC) Dims() (rows, cols int) { return m.rows, m.cols }

// Origin reports which canonical storage this CSC was originally built
// in or converted from (spec §3).
func (m *CSC) Origin() Origin { return m.origin }

// NNZ returns the number of stored nonzero entries.
func (m *CSC) NNZ() int { return len(m.values) }

// Column returns the row indices and values of column j, sorted by row
// index. The returned slices alias the CSC's internal storage and must
// not be modified.
func (m *CSC) Column(j int) (rows []int, vals []float64) {
	s, e := m.colPtr[j], m.colPtr[j+1]
	return m.rowIdx[s:e], m.values[s:e]
}

// ColNNZ returns the number of nonzero entries in column j.
func (m *CSC) ColNNZ(j int) int { return m.colPtr[j+1] - m.colPtr[j] }

// At returns M[i][j], locating row i within column j by binary search.
func (m *CSC) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic("sparse: index out of range")
	}
	rows, vals := m.Column(j)
	k := sort.SearchInts(rows, i)
	if k < len(rows) && rows[k] == i {
		return vals[k]
	}
	return 0
}

// Diagonal returns M_ii for every i, cached on first access.
func (m *CSC) Diagonal() []float64 {
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

// OffDiagAbsColSum returns sum_{i != j} |M_ij|, the off-diagonal absolute
// column sum used by the column-dominance test.
func (m *CSC) OffDiagAbsColSum(j int) float64 {
	rows, vals := m.Column(j)
	var sum float64
	for k, r := range rows {
		if r != j {
			sum += absF64(vals[k])
		}
	}
	return sum
}

// IsColDominant reports whether every column satisfies strict diagonal
// dominance and returns the analogous column dominance gap (spec §3).
func (m *CSC) IsColDominant() (dominant bool, gap float64, err error) {
	diag := m.Diagonal()
	dominant = true
	gap = 1
	for j, d := range diag {
		ad := absF64(d)
		if ad < divTolerance {
			return false, 0, &ZeroDiagonalError{Row: j, Value: d}
		}
		colsum := m.OffDiagAbsColSum(j)
		if ad <= colsum {
			dominant = false
		}
		g := (ad - colsum) / ad
		if g < gap {
			gap = g
		}
	}
	if gap < 0 {
		gap = 0
	}
	return dominant, gap, nil
}

// MulVecTo computes dst = M*x (trans=false) or dst = Mᵀ*x (trans=true).
// The transposed product iterates columns and accumulates into a local
// scalar before a single write (4-wide unrolled); the non-transposed
// product scatters since CSC has no efficient row view.
func (m *CSC) MulVecTo(dst []float64, trans bool, x []float64) {
	if trans {
		if len(x) != m.rows || len(dst) != m.cols {
			panic(ErrDimensionMismatch)
		}
		for j := 0; j < m.cols; j++ {
			rows, vals := m.Column(j)
			var sum float64
			n := len(rows) - len(rows)%4
			k := 0
			for ; k < n; k += 4 {
				sum += vals[k]*x[rows[k]] + vals[k+1]*x[rows[k+1]] + vals[k+2]*x[rows[k+2]] + vals[k+3]*x[rows[k+3]]
			}
			for ; k < len(rows); k++ {
				sum += vals[k] * x[rows[k]]
			}
			dst[j] = sum
		}
		return
	}

	if len(x) != m.cols || len(dst) != m.rows {
		panic(ErrDimensionMismatch)
	}
	for i := range dst {
		dst[i] = 0
	}
	for j := 0; j < m.cols; j++ {
		xj := x[j]
		if xj == 0 {
			continue
		}
		rows, vals := m.Column(j)
		for k, r := range rows {
			dst[r] += vals[k] * xj
		}
	}
}
