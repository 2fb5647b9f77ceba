package linsolve

import (
	"math"
	"testing"
)

func TestBackwardPushMatchesTransposeSolve(t *testing.T) {
	// M^T y = e_1 for M = [[4,-1],[-1,4]] (M is symmetric here, so the
	// backward solve equals the forward solve against the unit vector).
	bp := NewBackwardPush(twoByTwoCSR(), 1, 1e-10, 10000)
	ctx := NewContext(2)
	bp.Init(nil, nil)
	for {
		op, err := bp.Iterate(ctx)
		if err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		if op == MajorIteration && ctx.Converged {
			break
		}
	}
	// (M^-1 e_1) for this M is [1/15, 4/15] (column 1 of M^-1).
	want := []float64{1.0 / 15.0, 4.0 / 15.0}
	sol := bp.Solution()
	for i, w := range want {
		if math.Abs(sol[i]-w) > 1e-6 {
			t.Errorf("y[%d] = %g, want ~%g", i, sol[i], w)
		}
	}
	if ctx.TargetRow != 1 {
		t.Errorf("ctx.TargetRow = %d, want 1", ctx.TargetRow)
	}
}
