package linsolve

import (
	"math"

	"github.com/addsolve/kernel/vecops"
)

// neumannPhase names the resume point of Neumann's state machine,
// the same "switch on an int field across calls" idiom gonum's cg.go
// uses to resume a reverse-communication method across Iterate calls.
type neumannPhase int

const (
	phaseComputeT0 neumannPhase = iota
	phaseAwaitTrueResidual
	phaseCheckTrueResidual
	phaseAwaitCheckResult
	phaseComputeRt
	phaseApplyRt
	phaseAwaitPrecon
	phaseAwaitMajor
)

// NeumannState snapshots the fixed-point iteration state of spec §4.4:
// the current solution estimate, the current series term, the
// iteration count and the last residual norm observed.
type NeumannState struct {
	X            []float64
	T            []float64
	Iteration    int
	LastResidual float64
}

// Neumann implements the fixed-point iteration x_{k+1} = D^-1(b - R x_k)
// of spec §4.4, expressed in series-term form: t_0 = D^-1 b, x_0 = t_0,
// t_{k+1} = -D^-1 R t_k, x_{k+1} = x_k + t_{k+1}, with R = M - D folded
// into a single matvec (R t = M t - D t) so each series step needs only
// one MulVec operation. Each new term is additionally routed through the
// façade's PreconSolve operation before being folded into x, so a
// caller-supplied Options.Precondition acts as an extra preconditioner
// composed with the fixed D^-1 (the default NoPreconditioner is the
// identity, leaving the plain Neumann series unaffected).
type Neumann struct {
	n       int
	diag    []float64
	b       []float64
	eps     float64
	maxIter int

	x, t []float64
	k    int

	lastResidual  float64
	haveLast      bool
	stagnantRun   int
	phase         neumannPhase
	pendingDidNot bool
}

// NewNeumann constructs a Neumann method over a matrix whose diagonal
// is diag, solving for right-hand side b with the given tolerance and
// iteration cap. diag and b are not retained past copying into internal
// state.
func NewNeumann(diag, b []float64, eps float64, maxIter int) *Neumann {
	n := len(b)
	m := &Neumann{
		n:       n,
		diag:    append([]float64(nil), diag...),
		b:       append([]float64(nil), b...),
		eps:     eps,
		maxIter: maxIter,
		x:       make([]float64, n),
		t:       make([]float64, n),
	}
	return m
}

// Init satisfies Method. Neumann always restarts from t_0 = D^-1 b
// regardless of the supplied x and residual (spec §4.4's incremental
// update: "recompute t0, reseed x, iterate from scratch" is also the
// rule for a fresh start), so x and residual are only used to size the
// state when they differ from the constructor's b.
func (m *Neumann) Init(x, residual []float64) {
	if err := vecops.DivideInto(m.t, m.b, m.diag); err != nil {
		// Diagonal entries below tolerance were already rejected by
		// sparse.CSR.IsRowDominant before a Method is constructed; this
		// path exists only for a caller that bypassed Analyze.
		for i := range m.t {
			m.t[i] = 0
		}
	}
	copy(m.x, m.t)
	m.k = 0
	m.haveLast = false
	m.stagnantRun = 0
	m.phase = phaseAwaitTrueResidual
}

// updateRHS refreshes the right-hand side Init recomputes t0 from,
// satisfying rhsUpdater for Session.Update's incremental-solve path.
func (m *Neumann) updateRHS(b []float64) {
	copy(m.b, b)
}

// State returns a snapshot of the current iterate.
func (m *Neumann) State() NeumannState {
	return NeumannState{
		X:            append([]float64(nil), m.x...),
		T:            append([]float64(nil), m.t...),
		Iteration:    m.k,
		LastResidual: m.lastResidual,
	}
}

// Iterate advances the fixed-point iteration one reverse-communication
// step at a time, implementing the five truncation policies of spec
// §4.4 as explicit phases.
func (m *Neumann) Iterate(ctx *Context) (Operation, error) {
	switch m.phase {
	case phaseAwaitTrueResidual:
		copy(ctx.X, m.x)
		m.phase = phaseCheckTrueResidual
		return ComputeResidual, nil

	case phaseCheckTrueResidual:
		r := vecops.Norm2(ctx.Dst)
		return m.afterResidual(ctx, r)

	case phaseComputeRt:
		copy(ctx.Src, m.t)
		m.phase = phaseApplyRt
		return MulVec, nil

	case phaseApplyRt:
		mt := ctx.Dst
		for i := 0; i < m.n; i++ {
			delta := mt[i] / m.diag[i]
			m.t[i] -= delta
		}
		m.k++
		copy(ctx.Src, m.t)
		m.phase = phaseAwaitPrecon
		return PreconSolve, nil

	case phaseAwaitPrecon:
		copy(m.t, ctx.Dst)
		vecops.Axpy(1, m.t, m.x)
		proxy := vecops.Norm2(m.t) * math.Sqrt(float64(m.n))
		if m.k%5 == 0 {
			m.phase = phaseAwaitTrueResidual
			return m.Iterate(ctx)
		}
		return m.afterResidual(ctx, proxy)

	case phaseAwaitCheckResult:
		if ctx.Converged {
			copy(ctx.X, m.x)
			return MajorIteration, nil
		}
		if err := m.guardAfterCheck(); err != nil {
			return NoOperation, err
		}
		m.phase = phaseComputeRt
		return m.Iterate(ctx)

	case phaseAwaitMajor:
		m.phase = phaseComputeRt
		return m.Iterate(ctx)
	}
	panic("linsolve: unreachable Neumann phase")
}

// afterResidual records a new residual estimate (true or term-norm
// proxy), runs the overflow and stagnation guards, and either reports
// convergence to the driver or, for a proxy estimate, hands control
// back for the next series step.
func (m *Neumann) afterResidual(ctx *Context, r float64) (Operation, error) {
	if math.IsNaN(r) || math.IsInf(r, 0) || r > 1e15 {
		return NoOperation, &NumericalInstabilityError{Context: "neumann residual overflow"}
	}
	if m.haveLast && math.Abs(r-m.lastResidual) < m.eps*1e-6 {
		m.stagnantRun++
	} else {
		m.stagnantRun = 0
	}
	m.lastResidual = r
	m.haveLast = true

	trueCheck := m.k%5 == 0

	if trueCheck {
		ctx.ResidualNorm = r
		ctx.Converged = r < m.eps
		m.phase = phaseAwaitCheckResult
		return CheckResidualNorm, nil
	}

	if m.stagnantRun >= 10 {
		return NoOperation, &StagnatedError{Iterations: m.k, ResidualNorm: r}
	}
	if m.k >= m.maxIter {
		return NoOperation, &DidNotConvergeError{Iterations: m.k, ResidualNorm: r, Tolerance: m.eps}
	}
	ctx.ResidualNorm = r
	ctx.Converged = false
	copy(ctx.X, m.x)
	m.phase = phaseAwaitMajor
	return MajorIteration, nil
}

// guardAfterCheck applies the stagnation and iteration-cap policies
// once a true-residual check has reported non-convergence.
func (m *Neumann) guardAfterCheck() error {
	if m.stagnantRun >= 10 {
		return &StagnatedError{Iterations: m.k, ResidualNorm: m.lastResidual}
	}
	if m.k >= m.maxIter {
		return &DidNotConvergeError{Iterations: m.k, ResidualNorm: m.lastResidual, Tolerance: m.eps}
	}
	return nil
}
