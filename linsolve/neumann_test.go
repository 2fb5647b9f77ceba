package linsolve

import (
	"math"
	"testing"
)

// driveMethod runs m to completion, performing whatever Operation it
// commands against the dense matrix a (row-major, n*n), and returns the
// final Context. It mirrors driveLocked's operation switch without the
// session/statistics machinery, so estimator tests don't need a full
// façade round trip.
func driveMethod(t *testing.T, m Method, a []float64, b []float64, n int) *Context {
	t.Helper()
	ctx := NewContext(n)
	m.Init(nil, nil)
	for steps := 0; steps < 100000; steps++ {
		op, err := m.Iterate(ctx)
		if err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		switch {
		case op&MulVec != 0:
			trans := op&Trans != 0
			mulVecDense(a, n, trans, ctx.Src, ctx.Dst)
		case op == PreconSolve:
			copy(ctx.Dst, ctx.Src) // NoPreconditioner: identity.
		case op == ComputeResidual:
			mulVecDense(a, n, false, ctx.X, ctx.Dst)
			for i := range ctx.Dst {
				ctx.Dst[i] = b[i] - ctx.Dst[i]
			}
		case op == CheckResidualNorm:
			// ctx.Converged was already set by the method.
		case op == MajorIteration:
			if ctx.Converged {
				return ctx
			}
		default:
			t.Fatalf("unexpected operation %v", op)
		}
	}
	t.Fatal("driveMethod: exceeded step budget without converging")
	return nil
}

func mulVecDense(a []float64, n int, trans bool, x, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := a[i*n+j]
			if trans {
				dst[j] += v * x[i]
			} else {
				dst[i] += v * x[j]
			}
		}
	}
}

func TestNeumannTwoByTwo(t *testing.T) {
	a := []float64{4, -1, -1, 4}
	diag := []float64{4, 4}
	b := []float64{1, 2}

	m := NewNeumann(diag, b, 1e-8, 1000)
	ctx := driveMethod(t, m, a, b, 2)

	want := []float64{0.4, 0.6}
	for i, w := range want {
		if math.Abs(ctx.X[i]-w) > 1e-6 {
			t.Errorf("x[%d] = %g, want ~%g", i, ctx.X[i], w)
		}
	}
}

func TestNeumannStronglyDominantConvergesQuickly(t *testing.T) {
	a := []float64{10, 1, -2, 5}
	diag := []float64{10, 5}
	b := []float64{11, 3}

	m := NewNeumann(diag, b, 1e-8, 1000)
	ctx := NewContext(2)
	m.Init(nil, nil)

	iterations := 0
	for steps := 0; steps < 1000; steps++ {
		op, err := m.Iterate(ctx)
		if err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		switch {
		case op&MulVec != 0:
			mulVecDense(a, 2, op&Trans != 0, ctx.Src, ctx.Dst)
		case op == PreconSolve:
			copy(ctx.Dst, ctx.Src) // NoPreconditioner: identity.
		case op == ComputeResidual:
			mulVecDense(a, 2, false, ctx.X, ctx.Dst)
			for i := range ctx.Dst {
				ctx.Dst[i] = b[i] - ctx.Dst[i]
			}
		case op == MajorIteration:
			iterations++
			if ctx.Converged {
				if iterations > 20 {
					t.Errorf("took %d iterations, want <= 20", iterations)
				}
				want := []float64{1, 1}
				for i, w := range want {
					if math.Abs(ctx.X[i]-w) > 1e-6 {
						t.Errorf("x[%d] = %g, want ~%g", i, ctx.X[i], w)
					}
				}
				return
			}
		}
	}
	t.Fatal("did not converge")
}

func TestNeumannTridiagonal(t *testing.T) {
	const n = 100
	a := make([]float64, n*n)
	diag := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		a[i*n+i] = 2
		diag[i] = 2
		b[i] = 1
		if i > 0 {
			a[i*n+i-1] = -0.5
		}
		if i < n-1 {
			a[i*n+i+1] = -0.5
		}
	}

	m := NewNeumann(diag, b, 1e-8, 1000)
	ctx := NewContext(n)
	m.Init(nil, nil)

	iterations := 0
	for steps := 0; steps < 10000; steps++ {
		op, err := m.Iterate(ctx)
		if err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		switch {
		case op&MulVec != 0:
			mulVecDense(a, n, op&Trans != 0, ctx.Src, ctx.Dst)
		case op == PreconSolve:
			copy(ctx.Dst, ctx.Src) // NoPreconditioner: identity.
		case op == ComputeResidual:
			mulVecDense(a, n, false, ctx.X, ctx.Dst)
			for i := range ctx.Dst {
				ctx.Dst[i] = b[i] - ctx.Dst[i]
			}
		case op == MajorIteration:
			iterations++
			if ctx.Converged {
				if iterations > 50 {
					t.Errorf("took %d iterations, want <= 50", iterations)
				}
				for _, v := range ctx.X {
					if v <= 0 {
						t.Errorf("expected every entry positive, got %g", v)
					}
				}
				mid := ctx.X[n/2]
				if mid <= ctx.X[0] || mid <= ctx.X[n-1] {
					t.Errorf("expected middle entry to exceed endpoints: mid=%g x[0]=%g x[n-1]=%g", mid, ctx.X[0], ctx.X[n-1])
				}
				return
			}
		}
	}
	t.Fatal("did not converge")
}
