package linsolve

import (
	"time"

	"github.com/addsolve/kernel/sparse"
	"github.com/addsolve/kernel/vecops"
)

// hybridPhase names HybridEntry's two stages.
type hybridPhase int

const (
	hybridPushing hybridPhase = iota
	hybridWalking
	hybridDone
)

// HybridEntry answers a single-coordinate query by running forward
// push until the residual at the target coordinate is small, then
// covering the remaining tail with a random walk over the leftover
// residual (spec §4.7): the final estimate is the push's partial mass
// at the target plus the walk's mean contribution.
type HybridEntry struct {
	push       *ForwardPush
	walk       *RandomWalk
	csr        *sparse.CSR
	rng        *vecops.Source
	target     int
	theta      float64
	eps        float64
	walkBudget time.Duration
	phase      hybridPhase
	final      float64
}

// NewHybridEntry constructs a HybridEntry estimating (M^-1 b)_target.
// maxPushIter bounds the push prefix; rng seeds the random-walk tail.
func NewHybridEntry(csc *sparse.CSC, csr *sparse.CSR, b []float64, target int, eps float64, maxPushIter int, rng *vecops.Source) *HybridEntry {
	theta := 0.1 * eps
	return &HybridEntry{
		push:   NewForwardPush(csc, b, theta, maxPushIter),
		csr:    csr,
		rng:    rng,
		target: target,
		theta:  theta,
		eps:    eps,
	}
}

// updateRHS refreshes the push prefix's right-hand side; the walk tail
// is rebuilt from the push's current residual each time the walking
// phase starts, so it always reflects whatever b the push last saw.
func (h *HybridEntry) updateRHS(b []float64) {
	h.push.updateRHS(b)
}

// Init satisfies Method, restarting the push prefix.
func (h *HybridEntry) Init(x, residual []float64) {
	h.push.Init(nil, nil)
	h.walk = nil
	h.phase = hybridPushing
	h.final = 0
}

// Result returns the combined estimate once the walking phase has
// completed; it is meaningless before then.
func (h *HybridEntry) Result() EntryResult {
	if h.walk == nil {
		return EntryResult{Mean: h.push.Solution()[h.target]}
	}
	res := h.walk.Result()
	res.Mean += h.push.Solution()[h.target]
	return res
}

// Iterate drives the push prefix, then the walk tail, reporting
// PushStep/WalkBatch as each underlying estimator does, and
// MajorIteration once both phases are done.
func (h *HybridEntry) Iterate(ctx *Context) (Operation, error) {
	switch h.phase {
	case hybridPushing:
		converged, residual, err := h.push.core.step()
		if err != nil {
			return NoOperation, err
		}
		atTarget := h.push.core.residualAt(h.target)
		if converged || atTarget < h.theta {
			reduced := append([]float64(nil), h.push.core.r...)
			h.walk = NewRandomWalk(h.csr, reduced, h.target, h.eps, h.rng)
			if h.walkBudget > 0 {
				h.walk.SetTimeBudget(h.walkBudget)
			}
			h.walk.Init(nil, nil)
			h.phase = hybridWalking
			ctx.ResidualNorm = atTarget
			ctx.Converged = false
			return PushStep, nil
		}
		ctx.ResidualNorm = residual
		ctx.Converged = false
		return PushStep, nil

	case hybridWalking:
		op, err := h.walk.Iterate(ctx)
		if err != nil {
			if _, ok := err.(*BudgetExhaustedError); ok {
				// The partial estimate is push mass plus the walk mean so far.
				ctx.WalkResult.Mean += h.push.Solution()[h.target]
			}
			return NoOperation, err
		}
		if ctx.Converged {
			h.phase = hybridDone
			res := h.Result()
			ctx.WalkResult.Mean = res.Mean
			ctx.WalkResult.Variance = res.Variance
			return MajorIteration, nil
		}
		return op, nil

	default: // hybridDone
		ctx.Converged = true
		return MajorIteration, nil
	}
}

// HybridSolve answers a full-vector query: Neumann when the dominance
// gap is at least 0.3, forward push otherwise, with a one-time switch
// to the other method if the first fails with a recoverable error
// (spec §4.7: "Neumann stagnation -> forward push").
type HybridSolve struct {
	primary      Method
	fallback     Method
	usedFallback bool
}

// NewHybridSolve picks the primary method from the dominance gap and
// keeps the other as a one-time fallback.
func NewHybridSolve(gap float64, neumann *Neumann, push *ForwardPush) *HybridSolve {
	if gap >= 0.3 {
		return &HybridSolve{primary: neumann, fallback: push}
	}
	return &HybridSolve{primary: push, fallback: neumann}
}

// Init satisfies Method, initializing only the currently active
// estimator.
func (h *HybridSolve) Init(x, residual []float64) {
	h.primary.Init(x, residual)
}

// updateRHS refreshes both the primary and fallback estimators so a
// post-switch Init still starts from the current right-hand side.
func (h *HybridSolve) updateRHS(b []float64) {
	if u, ok := h.primary.(rhsUpdater); ok {
		u.updateRHS(b)
	}
	if u, ok := h.fallback.(rhsUpdater); ok {
		u.updateRHS(b)
	}
}

// Iterate delegates to the active estimator, switching once to the
// fallback on a recoverable (stagnation) failure.
func (h *HybridSolve) Iterate(ctx *Context) (Operation, error) {
	op, err := h.primary.Iterate(ctx)
	if err == nil {
		return op, nil
	}
	if _, stagnated := err.(*StagnatedError); stagnated && !h.usedFallback {
		h.usedFallback = true
		h.primary = h.fallback
		h.primary.Init(ctx.X, nil)
		return h.primary.Iterate(ctx)
	}
	return NoOperation, err
}
