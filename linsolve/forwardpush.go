package linsolve

import "github.com/addsolve/kernel/sparse"

// ForwardPush solves M x = b by redistributing the residual from the
// largest-magnitude coordinate at each step, per spec §4.5. It requires
// column access of M (pushing index i updates r_j for every j with
// M_ji != 0, i.e. column i), so it is built over a CSC view.
type ForwardPush struct {
	core *pushCore
	b    []float64
}

// NewForwardPush constructs a ForwardPush solving M x = b over m.
func NewForwardPush(m *sparse.CSC, b []float64, eps float64, maxIter int) *ForwardPush {
	return &ForwardPush{
		core: newPushCore(cscNeighbors{m}, b, eps, maxIter),
		b:    append([]float64(nil), b...),
	}
}

// Init satisfies Method; forward push, like Neumann, restarts from its
// own right-hand side rather than an externally supplied x (spec §4.5
// treats b itself as the initial residual with x = 0).
func (p *ForwardPush) Init(x, residual []float64) {
	p.core.reset(p.b)
}

// updateRHS refreshes the right-hand side Init resets the push core
// from, satisfying rhsUpdater for Session.Update's incremental-solve
// path.
func (p *ForwardPush) updateRHS(b []float64) {
	copy(p.b, b)
}

// Solution returns the current approximation. The returned slice
// aliases internal state and must not be retained past the next call
// into the Method.
func (p *ForwardPush) Solution() []float64 { return p.core.x }

// PushCount returns the number of push operations performed so far.
func (p *ForwardPush) PushCount() int { return p.core.count }

// Iterate performs one push step and reports it via PushStep, or signals
// MajorIteration once the residual has fallen below tolerance everywhere
// reachable.
func (p *ForwardPush) Iterate(ctx *Context) (Operation, error) {
	converged, residual, err := p.core.step()
	if err != nil {
		return NoOperation, err
	}
	ctx.ResidualNorm = residual
	ctx.Converged = converged
	if converged {
		copy(ctx.X, p.core.x)
		return MajorIteration, nil
	}
	return PushStep, nil
}
