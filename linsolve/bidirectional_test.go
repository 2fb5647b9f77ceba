package linsolve

import (
	"math"
	"testing"
)

func TestBidirectionalConvergesAndReportsMajorIteration(t *testing.T) {
	csr := twoByTwoCSR()
	csc := csr.ToCSC()
	bd := NewBidirectional(csr, csc, []float64{1, 2}, 0, 1e-10, 10000)
	ctx := NewContext(2)
	bd.Init(nil, nil)

	for i := 0; i < 100000; i++ {
		op, err := bd.Iterate(ctx)
		if err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		if op != MajorIteration {
			t.Fatalf("Bidirectional reported %v, want MajorIteration", op)
		}
		if ctx.Converged {
			want := []float64{0.4, 0.6}
			for i, w := range want {
				if math.Abs(bd.ForwardSolution()[i]-w) > 1e-6 {
					t.Errorf("forward x[%d] = %g, want ~%g", i, bd.ForwardSolution()[i], w)
				}
			}
			return
		}
	}
	t.Fatal("did not converge")
}
