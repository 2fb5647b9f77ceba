package linsolve

import (
	"math"
	"testing"

	"github.com/addsolve/kernel/vecops"
)

func TestHybridEntryEstimatesCoordinate(t *testing.T) {
	csr := twoByTwoCSR()
	csc := csr.ToCSC()
	rng := vecops.NewSource(99)

	he := NewHybridEntry(csc, csr, []float64{1, 2}, 0, 1e-2, 10000, rng)
	ctx := NewContext(2)
	he.Init(nil, nil)

	for i := 0; i < 1000000; i++ {
		if _, err := he.Iterate(ctx); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		if ctx.Converged {
			break
		}
	}
	if !ctx.Converged {
		t.Fatal("hybrid entry did not converge")
	}
	// x_0 of [[4,-1],[-1,4]]^-1 [1,2] is 0.4.
	if math.Abs(ctx.WalkResult.Mean-0.4) > 1e-2 {
		t.Errorf("estimate = %g, want ~0.4", ctx.WalkResult.Mean)
	}
}

func TestHybridSolveChoosesNeumannForHighGap(t *testing.T) {
	diag := []float64{4, 4}
	b := []float64{1, 2}
	neumann := NewNeumann(diag, b, 1e-8, 1000)
	csc := twoByTwoCSR().ToCSC()
	push := NewForwardPush(csc, b, 1e-8, 1000)

	hs := NewHybridSolve(0.5, neumann, push)
	if hs.primary != neumann {
		t.Error("expected Neumann to be primary when gap >= 0.3")
	}
}

func TestHybridSolveChoosesPushForLowGap(t *testing.T) {
	diag := []float64{4, 4}
	b := []float64{1, 2}
	neumann := NewNeumann(diag, b, 1e-8, 1000)
	csc := twoByTwoCSR().ToCSC()
	push := NewForwardPush(csc, b, 1e-8, 1000)

	hs := NewHybridSolve(0.1, neumann, push)
	if hs.primary != push {
		t.Error("expected forward push to be primary when gap < 0.3")
	}
}
