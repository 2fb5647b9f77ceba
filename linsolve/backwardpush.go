package linsolve

import "github.com/addsolve/kernel/sparse"

// BackwardPush solves Mᵀ y = e_t for a designated target row t,
// expressing the linear functional e_tᵀ M⁻¹ b (spec §4.5). It is
// symmetric to ForwardPush run against A = Mᵀ: A's column i is M's row
// i, so backward push walks M's CSR rows rather than CSC columns (see
// DESIGN.md's derivation).
type BackwardPush struct {
	core   *pushCore
	target int
}

// NewBackwardPush constructs a BackwardPush solving Mᵀ y = e_target over
// m, where e_target is the unit vector with a 1 at index target.
func NewBackwardPush(m *sparse.CSR, target int, eps float64, maxIter int) *BackwardPush {
	rows, _ := m.Dims()
	e := make([]float64, rows)
	e[target] = 1
	return &BackwardPush{
		core:   newPushCore(csrNeighbors{m}, e, eps, maxIter),
		target: target,
	}
}

// Init satisfies Method; backward push restarts from its unit
// right-hand side, mirroring ForwardPush.
func (p *BackwardPush) Init(x, residual []float64) {
	e := make([]float64, len(p.core.x))
	e[p.target] = 1
	p.core.reset(e)
}

// Solution returns the current approximation of y, with y_i
// estimating the contribution of coordinate i's row to e_tᵀ M⁻¹.
func (p *BackwardPush) Solution() []float64 { return p.core.x }

// PushCount returns the number of push operations performed so far.
func (p *BackwardPush) PushCount() int { return p.core.count }

// Iterate performs one push step, reporting PushStep per step or
// MajorIteration once converged, mirroring ForwardPush.Iterate.
func (p *BackwardPush) Iterate(ctx *Context) (Operation, error) {
	converged, residual, err := p.core.step()
	if err != nil {
		return NoOperation, err
	}
	ctx.ResidualNorm = residual
	ctx.Converged = converged
	ctx.TargetRow = p.target
	if converged {
		copy(ctx.X, p.core.x)
		return MajorIteration, nil
	}
	return PushStep, nil
}
