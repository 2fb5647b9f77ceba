package linsolve

import "github.com/addsolve/kernel/sparse"

// Bidirectional alternates one forward push step with one backward
// push step against a shared target, terminating when the combined
// residual norm drops below tolerance or either side exhausts its
// iteration cap (spec §4.5).
type Bidirectional struct {
	forward  *ForwardPush
	backward *BackwardPush
	eps      float64
}

// NewBidirectional constructs a Bidirectional push solving M x = b
// forward and Mᵀ y = e_target backward over the given CSR/CSC views of
// the same matrix.
func NewBidirectional(csr *sparse.CSR, csc *sparse.CSC, b []float64, target int, eps float64, maxIter int) *Bidirectional {
	return &Bidirectional{
		forward:  NewForwardPush(csc, b, eps, maxIter),
		backward: NewBackwardPush(csr, target, eps, maxIter),
		eps:      eps,
	}
}

// Init satisfies Method, resetting both constituent pushes.
func (bd *Bidirectional) Init(x, residual []float64) {
	bd.forward.Init(nil, nil)
	bd.backward.Init(nil, nil)
}

// updateRHS refreshes the forward push's right-hand side; the backward
// push side is independent of b and is left untouched.
func (bd *Bidirectional) updateRHS(b []float64) {
	bd.forward.updateRHS(b)
}

// ForwardSolution returns the current forward-push approximation of x.
func (bd *Bidirectional) ForwardSolution() []float64 { return bd.forward.Solution() }

// BackwardSolution returns the current backward-push approximation of y.
func (bd *Bidirectional) BackwardSolution() []float64 { return bd.backward.Solution() }

// Iterate runs one forward push step and one backward push step, then
// reports MajorIteration with the combined residual norm.
func (bd *Bidirectional) Iterate(ctx *Context) (Operation, error) {
	fConverged, fResidual, err := bd.forward.core.step()
	if err != nil {
		return NoOperation, err
	}
	bConverged, bResidual, err := bd.backward.core.step()
	if err != nil {
		return NoOperation, err
	}

	combined := fResidual + bResidual
	ctx.ResidualNorm = combined
	ctx.Converged = combined < bd.eps || (fConverged && bConverged)
	copy(ctx.X, bd.forward.Solution())
	return MajorIteration, nil
}
