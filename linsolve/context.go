// Package linsolve implements the solver kernel's four estimators
// (Neumann, forward/backward push, random-walk, hybrid), their shared
// convergence monitor, sessions, and the public façade (spec §4.4-§4.9).
//
// The reverse-communication design — a Method that commands Operations
// against a shared Context rather than calling back into matrix code
// directly — is grounded on gonum.org/v1/gonum/linsolve, generalized
// from gonum's CG/BiCG/GMRES family to this kernel's four ADD-specific
// estimators (spec §9: "variants of one sum type carrying per-algorithm
// state, with a shared monitor and façade").
package linsolve

// Method is an iterative estimator that produces a sequence of
// approximations converging to the solution of Mx=b, or to a single
// coordinate of it, for a diagonally dominant M.
//
// Method uses a reverse-communication interface between the estimator
// and the driving façade: Method acts as a client that commands needed
// operations via an Operation returned from Iterate. This keeps Method
// independent of how M is stored and lets the façade own convergence
// bookkeeping, statistics, progress emission and cancellation uniformly
// across all four estimator families.
type Method interface {
	// Init initializes the method for solving an n-dimensional system
	// with an initial estimate x and the corresponding residual vector.
	// Init does not retain x or residual past the call.
	Init(x, residual []float64)

	// Iterate performs a step toward convergence. It reads and updates
	// Context, and returns the next Operation the caller must perform.
	Iterate(ctx *Context) (Operation, error)
}

// Context mediates communication between a Method and the driving
// façade. The façade must not modify Context apart from performing the
// commanded Operation.
type Context struct {
	// X holds the current approximate solution when Method commands
	// ComputeResidual or MajorIteration.
	X []float64

	// ResidualNorm is set by Method to the current residual norm (or an
	// estimate of it) when it commands CheckResidualNorm.
	ResidualNorm float64

	// Converged is set by Method before it returns; the caller reads it
	// and does not change it.
	Converged bool

	// Src and Dst are the source and destination buffers for MulVec and
	// PreconSolve operations. Src is set by Method; the caller stores
	// results in Dst.
	Src, Dst []float64

	// TargetRow is the coordinate backward push and the random-walk
	// estimator are solving for (spec §4.5, §4.6); unused by Neumann and
	// forward push.
	TargetRow int

	// WalkResult carries the outcome of the walks Method has run so far:
	// mean estimate, sample variance and walks actually completed.
	WalkResult WalkBatchResult
}

// WalkBatchResult is written by Method when it reports a WalkBatch or
// its final MajorIteration.
type WalkBatchResult struct {
	Mean     float64
	Variance float64
	Walks    int
}

// NewContext returns a new Context sized for an n-dimensional problem.
// NewContext panics if n is not positive.
func NewContext(n int) *Context {
	if n <= 0 {
		panic("linsolve: context size is not positive")
	}
	return &Context{
		X:   make([]float64, n),
		Src: make([]float64, n),
		Dst: make([]float64, n),
	}
}

// Operation specifies the kind of step a Method has commanded.
type Operation uint

// Operations commanded by Method.Iterate.
const (
	NoOperation Operation = 0

	// MulVec requests dst = M*src (or Mᵀ*src with Trans) where src is
	// Context.Src; the result must be placed in Context.Dst.
	MulVec Operation = 1 << (iota - 1)

	// PreconSolve requests a preconditioner solve z = Precon(r) (or the
	// transposed solve with Trans), where r is Context.Src; the
	// solution must be placed in Context.Dst.
	PreconSolve

	// Trans modifies MulVec or PreconSolve to use the transpose. Method
	// commands Trans only bitwise-OR'd with MulVec or PreconSolve.
	Trans

	// ComputeResidual requests dst = b - M*x using Context.X, storing
	// the result in Context.Dst.
	ComputeResidual

	// CheckResidualNorm reports Context.ResidualNorm to the caller, which
	// records it; Method has already compared it against the tolerance
	// and set Context.Converged.
	CheckResidualNorm

	// MajorIteration indicates Method has finished one iteration and
	// Context.X is up to date. If Context.Converged, the caller must
	// stop; otherwise it calls Iterate again.
	MajorIteration

	// PushStep indicates Method has performed one largest-residual push
	// step against the matrix view it was constructed with and stored
	// the resulting residual magnitude in Context.ResidualNorm.
	PushStep

	// WalkBatch indicates Method has run a batch of random walks rooted
	// at its target row and populated Context.WalkResult.
	WalkBatch
)

// divTolerance mirrors sparse's divide-by-zero guard (spec §4.1's
// tau_div) for the estimators in this package that divide by a diagonal
// entry directly rather than going through sparse.CSR.
const divTolerance = 1e-15

// WidenBudgetInterval scales the usual 1.96-sigma confidence half-width
// reported when a random-walk estimate is cut short by BudgetExhausted,
// reflecting the extra uncertainty of an incomplete sample (spec §4.6,
// §7: "return partial estimate with widened interval").
const WidenBudgetInterval = 2.0
