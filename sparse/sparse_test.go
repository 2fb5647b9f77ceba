package sparse

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func tridiagonal(n int, diag, off float64) *CSR {
	coo := NewCOO(n, n)
	for i := 0; i < n; i++ {
		coo.AddEntry(i, i, diag)
		if i > 0 {
			coo.AddEntry(i, i-1, off)
		}
		if i < n-1 {
			coo.AddEntry(i, i+1, off)
		}
	}
	return coo.ToCSR()
}

func TestCOOToCSRStructuralInvariants(t *testing.T) {
	csr := tridiagonal(50, 2, -0.5)
	if err := csr.Validate(true); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	rows, cols := csr.Dims()
	if rows != 50 || cols != 50 {
		t.Fatalf("Dims = (%d, %d), want (50, 50)", rows, cols)
	}
}

func TestCOODuplicateSummation(t *testing.T) {
	coo := NewCOO(2, 2)
	coo.AddEntry(0, 0, 3)
	coo.AddEntry(0, 0, 4)
	coo.AddEntry(0, 1, 1)
	coo.AddEntry(1, 1, 5)
	csr := coo.ToCSR()
	if got := csr.At(0, 0); got != 7 {
		t.Errorf("At(0,0) = %v, want 7", got)
	}
}

func TestCSRCSCRoundTrip(t *testing.T) {
	csr := tridiagonal(20, 4, -1)
	csc := csr.ToCSC()
	back := csc.ToCSR()

	rows, cols := csr.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if csr.At(i, j) != back.At(i, j) {
				t.Fatalf("round trip mismatch at (%d,%d): %v vs %v", i, j, csr.At(i, j), back.At(i, j))
			}
		}
	}
}

func TestMatVec(t *testing.T) {
	csr := tridiagonal(5, 2, -0.5)
	x := []float64{1, 1, 1, 1, 1}
	dst := make([]float64, 5)
	csr.MulVecTo(dst, false, x)
	// Row 0: 2*1 + (-0.5)*1 = 1.5; interior rows: 2 - 0.5 - 0.5 = 1; last row like first.
	want := []float64{1.5, 1, 1, 1, 1.5}
	for i := range want {
		if !approxEqual(dst[i], want[i], 1e-12) {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestMatVecTransposeMatchesCSC(t *testing.T) {
	csr := tridiagonal(10, 3, -1)
	csc := csr.ToCSC()
	x := make([]float64, 10)
	for i := range x {
		x[i] = float64(i + 1)
	}
	dstCSRTrans := make([]float64, 10)
	csr.MulVecTo(dstCSRTrans, true, x)
	dstCSC := make([]float64, 10)
	csc.MulVecTo(dstCSC, false, x)
	for i := range x {
		if !approxEqual(dstCSRTrans[i], dstCSC[i], 1e-9) {
			t.Errorf("index %d: csr-trans=%v csc=%v", i, dstCSRTrans[i], dstCSC[i])
		}
	}
}

func TestRowDominance(t *testing.T) {
	csr := tridiagonal(10, 4, -1)
	dominant, gap, err := csr.IsRowDominant()
	if err != nil {
		t.Fatalf("IsRowDominant: %v", err)
	}
	if !dominant {
		t.Fatalf("expected dominant matrix")
	}
	// Interior rows: (4 - 2)/4 = 0.5; endpoints: (4-1)/4 = 0.75. Min is 0.5.
	if !approxEqual(gap, 0.5, 1e-9) {
		t.Errorf("gap = %v, want 0.5", gap)
	}
}

func TestNonDominantDetected(t *testing.T) {
	coo := NewCOO(2, 2)
	coo.AddEntry(0, 0, 1)
	coo.AddEntry(0, 1, 5)
	coo.AddEntry(1, 0, 1)
	coo.AddEntry(1, 1, 1)
	csr := coo.ToCSR()
	dominant, _, err := csr.IsRowDominant()
	if err != nil {
		t.Fatalf("IsRowDominant: %v", err)
	}
	if dominant {
		t.Errorf("expected non-dominant matrix to be detected")
	}
}

func TestZeroDiagonalDetected(t *testing.T) {
	coo := NewCOO(2, 2)
	coo.AddEntry(0, 0, 0)
	coo.AddEntry(0, 1, 1)
	coo.AddEntry(1, 0, 1)
	coo.AddEntry(1, 1, 2)
	csr := coo.ToCSR()
	_, _, err := csr.IsRowDominant()
	if err == nil {
		t.Fatalf("expected ZeroDiagonalError")
	}
	if _, ok := err.(*ZeroDiagonalError); !ok {
		t.Errorf("err = %T, want *ZeroDiagonalError", err)
	}
}

func TestDeltaApply(t *testing.T) {
	d := NewDelta()
	d.Set(1, 0.5)
	d.Set(1, -0.2) // last-writer-wins
	d.Set(3, 2)
	b := []float64{1, 1, 1, 1}
	d.ApplyTo(b)
	want := []float64{1, 0.8, 1, 3}
	for i := range want {
		if !approxEqual(b[i], want[i], 1e-12) {
			t.Errorf("b[%d] = %v, want %v", i, b[i], want[i])
		}
	}
}

func TestEmptyRowRejected(t *testing.T) {
	coo := NewCOO(3, 3)
	coo.AddEntry(0, 0, 1)
	coo.AddEntry(2, 2, 1)
	// row 1 has no entries
	csr := coo.ToCSR()
	if err := csr.Validate(true); err != ErrSingularStructure {
		t.Errorf("Validate = %v, want ErrSingularStructure", err)
	}
}

func TestDenseMatrixToCOODropsNearZeroEntries(t *testing.T) {
	d := NewDenseMatrix(2, 2, []float64{4, 1e-301, -1, 4})
	coo := d.ToCOO()
	if coo.NNZ() != 3 {
		t.Fatalf("NNZ() = %d, want 3 (the 1e-301 entry should be dropped)", coo.NNZ())
	}
	csr := coo.ToCSR()
	if got := csr.At(0, 0); got != 4 {
		t.Errorf("At(0,0) = %g, want 4", got)
	}
	if got := csr.At(0, 1); got != 0 {
		t.Errorf("At(0,1) = %g, want 0 (dropped)", got)
	}
}

func TestDenseMatrixFromMatReadsWrappedValues(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	d := NewDenseMatrixFromMat(m)
	rows, cols := d.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("Dims() = (%d,%d), want (2,2)", rows, cols)
	}
	if d.At(1, 0) != 3 {
		t.Errorf("At(1,0) = %g, want 3", d.At(1, 0))
	}
}

func TestOriginRecordedThroughConstructionAndConversion(t *testing.T) {
	csr := tridiagonal(5, 2, -0.5)
	if got := csr.Origin(); got != OriginCOO {
		t.Errorf("COO.ToCSR().Origin() = %v, want %v", got, OriginCOO)
	}
	if got := csr.ToCSC().Origin(); got != OriginCOO {
		t.Errorf("origin should survive CSR->CSC conversion, got %v", got)
	}

	direct := NewCSR(1, 1, []int{0, 1}, []int{0}, []float64{3})
	if got := direct.Origin(); got != OriginCSR {
		t.Errorf("NewCSR().Origin() = %v, want %v", got, OriginCSR)
	}
	if got := direct.ToCSC().Origin(); got != OriginCSR {
		t.Errorf("origin should survive CSR->CSC conversion, got %v", got)
	}

	d := NewDenseMatrix(2, 2, []float64{1, 0, 0, 1})
	coo := d.ToCOO()
	if got := coo.Origin(); got != OriginDense {
		t.Errorf("DenseMatrix.ToCOO().Origin() = %v, want %v", got, OriginDense)
	}
	if got := coo.ToCSR().Origin(); got != OriginDense {
		t.Errorf("origin should survive dense->COO->CSR conversion, got %v", got)
	}
}
