// Package analyze implements the matrix analyzer (spec §4.3): structural
// and numerical properties of an ingested matrix, and a recommended
// solve method derived from them.
package analyze

import (
	"fmt"
	"math"

	"github.com/addsolve/kernel/sparse"
)

// Method labels a recommended (or requested) solve strategy, shared with
// the linsolve façade's Options.Method.
type Method string

// Recognized method labels (spec §4.3, §4.9).
const (
	MethodNeumann       Method = "neumann"
	MethodForwardPush   Method = "forward_push"
	MethodBackwardPush  Method = "backward_push"
	MethodBidirectional Method = "bidirectional"
	MethodRandomWalk    Method = "random_walk"
	MethodHybrid        Method = "hybrid"
	// MethodReject is returned by Report.Recommend when the matrix is
	// not diagonally dominant and the caller has not overridden the
	// rejection (spec §4.3's "Not dominant -> Reject" row).
	MethodReject Method = "reject"
)

// Report is the matrix analysis report of spec §3.
type Report struct {
	Rows, Cols int
	NNZ        int

	IsRowDominant bool
	IsColDominant bool
	// DominanceGap is min_i (|d_i| - offDiagAbsRowSum(i)) / |d_i|,
	// clipped to 0 if negative (spec §3). It is computed from whichever
	// of row/column dominance is stronger when both are checked.
	DominanceGap float64

	IsSymmetric bool
	Sparsity    float64
	Bandwidth   int

	// SingleCoordinateHint is set by callers of Analyze that intend to
	// query one coordinate rather than the full vector; it steers
	// Recommend toward the random-walk/hybrid row of spec §4.3's table.
	SingleCoordinateHint bool
}

// Options controls which sweeps Analyze performs.
type Options struct {
	// CheckColumnDominance requests the additional CSC sweep for column
	// dominance (spec §4.3: "one CSC sweep if column dominance is
	// requested"). A nil pointer (the zero value) means true.
	CheckColumnDominance *bool

	// CheckSymmetry requests the CSR-vs-CSC row comparison for the
	// symmetry flag. Default true.
	CheckSymmetry *bool

	// SymmetryTolerance bounds |M_ij - M_ji| for the symmetry check.
	// Zero uses a default of 1e-9.
	SymmetryTolerance float64

	// SingleCoordinateQuery marks the intended workload as a
	// single-coordinate query for Report.Recommend's policy table.
	SingleCoordinateQuery bool
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// Analyze produces a Report for m in one CSR sweep plus, if requested,
// one CSC sweep (spec §4.3). It is pure and performs no mutation of m;
// calling it repeatedly on an immutable matrix is idempotent.
func Analyze(m *sparse.CSR, opts Options) (Report, error) {
	rows, cols := m.Dims()
	rep := Report{
		Rows: rows,
		Cols: cols,
		NNZ:  m.NNZ(),
	}
	rep.SingleCoordinateHint = opts.SingleCoordinateQuery

	rowDominant, rowGap, err := m.IsRowDominant()
	if err != nil {
		return Report{}, err
	}
	rep.IsRowDominant = rowDominant
	rep.DominanceGap = rowGap

	checkCol := boolOr(opts.CheckColumnDominance, true)
	var csc *sparse.CSC
	if checkCol {
		csc = m.ToCSC()
		colDominant, colGap, err := csc.IsColDominant()
		if err != nil {
			return Report{}, err
		}
		rep.IsColDominant = colDominant
		if colGap > rep.DominanceGap {
			rep.DominanceGap = colGap
		}
	}

	if boolOr(opts.CheckSymmetry, true) {
		if csc == nil {
			csc = m.ToCSC()
		}
		tol := opts.SymmetryTolerance
		if tol == 0 {
			tol = 1e-9
		}
		rep.IsSymmetric = isSymmetric(m, csc, tol)
	}

	if rows > 0 && cols > 0 {
		rep.Sparsity = 1 - float64(rep.NNZ)/(float64(rows)*float64(cols))
	}
	rep.Bandwidth = bandwidth(m)

	return rep, nil
}

// isSymmetric compares the CSR and CSC views row-by-row: for a symmetric
// matrix, row i of CSR equals column i of CSC.
func isSymmetric(csr *sparse.CSR, csc *sparse.CSC, tol float64) bool {
	rows, cols := csr.Dims()
	if rows != cols {
		return false
	}
	for i := 0; i < rows; i++ {
		rcols, rvals := csr.Row(i)
		ccols, cvals := csc.Column(i)
		if len(rcols) != len(ccols) {
			return false
		}
		for k := range rcols {
			if rcols[k] != ccols[k] || math.Abs(rvals[k]-cvals[k]) > tol {
				return false
			}
		}
	}
	return true
}

// bandwidth returns max |i-j| over nonzero entries M_ij.
func bandwidth(m *sparse.CSR) int {
	rows, _ := m.Dims()
	bw := 0
	for i := 0; i < rows; i++ {
		cols, _ := m.Row(i)
		for _, j := range cols {
			d := i - j
			if d < 0 {
				d = -d
			}
			if d > bw {
				bw = d
			}
		}
	}
	return bw
}

// Recommend implements spec §4.3's observation -> recommendation table.
func (r Report) Recommend() Method {
	if !r.IsRowDominant && !r.IsColDominant {
		return MethodReject
	}
	if r.SingleCoordinateHint {
		return MethodHybrid
	}
	if r.IsRowDominant {
		switch {
		case r.DominanceGap >= 0.3 && smallNNZ(r):
			return MethodNeumann
		case r.DominanceGap < 0.1:
			return MethodForwardPush
		}
		return MethodNeumann
	}
	return MethodBackwardPush
}

// smallNNZ is a coarse "nnz small" test: fewer than 64 nonzeros per row on
// average, the threshold below which Neumann's O(nnz) sweeps stay cheap
// relative to a local push.
func smallNNZ(r Report) bool {
	if r.Rows == 0 {
		return true
	}
	return float64(r.NNZ)/float64(r.Rows) < 64
}

// String returns a human-readable summary of the report, in the spirit
// of gonum/mat's Formatted/String debugging helpers.
func (r Report) String() string {
	return fmt.Sprintf(
		"analyze.Report{rows=%d cols=%d nnz=%d rowDominant=%t colDominant=%t gap=%.4g symmetric=%t sparsity=%.4g bandwidth=%d recommend=%s}",
		r.Rows, r.Cols, r.NNZ, r.IsRowDominant, r.IsColDominant, r.DominanceGap, r.IsSymmetric, r.Sparsity, r.Bandwidth, r.Recommend(),
	)
}
