package linsolve

import (
	"math"
	"time"

	"github.com/addsolve/kernel/sparse"
	"github.com/addsolve/kernel/vecops"
	"gonum.org/v1/gonum/stat/distuv"
)

// EntryResult is the outcome of estimating a single coordinate
// (spec §4.6, §4.9): a sample mean, its sample variance, and a
// two-sided confidence interval.
type EntryResult struct {
	Mean     float64
	Variance float64
	CILower  float64
	CIUpper  float64
	Walks    int
}

// defaultMaxWalkLen is the force-absorb horizon of spec §4.6.
const defaultMaxWalkLen = 1000

// defaultWalkTimeBudget is the internal wall-clock budget of spec §4.6,
// §7: if it elapses before totalWalks completes, Iterate reports
// BudgetExhausted with the partial mean and a widened confidence
// interval rather than continuing to block.
const defaultWalkTimeBudget = 5 * time.Second

// RandomWalk estimates one coordinate of M^-1 b by Monte Carlo
// absorbing walks over the row-stochastic reduction of M described in
// spec §4.6: absorption probability 1/|M_ii| (capped at 1), and
// transition weight -M_ij/M_ii to neighbor j, with the sign of the path
// accumulated multiplicatively. Each non-absorbing step also scales the
// walk by sum_j |M_ij/M_ii| / (1 - p_abs), and an absorbed walk pays
// b_i / (M_ii * p_abs), so the walk mean estimates (M^-1 b)_target. A
// row with |M_ii| <= 1 absorbs on every visit, so its off-diagonal
// entries are never sampled.
type RandomWalk struct {
	m          *sparse.CSR
	b          []float64
	target     int
	eps        float64
	maxWalkLen int
	totalWalks int
	batchSize  int

	rng     *vecops.Source
	uniform distuv.Uniform

	budget    time.Duration
	startTime time.Time

	walksDone int
	mean      float64
	m2        float64 // Welford running sum of squared deviations
}

// NewRandomWalk constructs a RandomWalk estimating (M^-1 b)_target over
// m, drawing from the deterministic stream rng. The walk count target
// is max(100, ceil(1/eps^2)) per spec §4.6.
func NewRandomWalk(m *sparse.CSR, b []float64, target int, eps float64, rng *vecops.Source) *RandomWalk {
	total := int(math.Ceil(1 / (eps * eps)))
	if total < 100 {
		total = 100
	}
	rw := &RandomWalk{
		m:          m,
		b:          append([]float64(nil), b...),
		target:     target,
		eps:        eps,
		maxWalkLen: defaultMaxWalkLen,
		totalWalks: total,
		batchSize:  64,
		rng:        rng,
		budget:     defaultWalkTimeBudget,
	}
	rw.uniform = distuv.Uniform{Min: 0, Max: 1, Src: rng}
	return rw
}

// SetTimeBudget overrides the internal wall-clock budget for completing
// totalWalks (spec §4.6, §7's BudgetExhausted). A zero or negative
// duration disables the budget check entirely.
func (rw *RandomWalk) SetTimeBudget(d time.Duration) {
	rw.budget = d
}

// updateRHS refreshes the right-hand side runWalk samples its absorbed
// payoff from, satisfying rhsUpdater for Session.Update's
// incremental-solve path.
func (rw *RandomWalk) updateRHS(b []float64) {
	copy(rw.b, b)
}

// Init satisfies Method, resetting the running estimate and the
// wall-clock budget's starting point.
func (rw *RandomWalk) Init(x, residual []float64) {
	rw.walksDone = 0
	rw.mean = 0
	rw.m2 = 0
	rw.startTime = time.Now()
}

// Result returns the current estimate, sample variance and 95%
// confidence interval from the walks completed so far (spec §4.6's
// "return partial estimate with widened interval" applies naturally
// here since the interval already narrows with walksDone).
func (rw *RandomWalk) Result() EntryResult {
	variance := 0.0
	if rw.walksDone > 1 {
		variance = rw.m2 / float64(rw.walksDone-1)
	}
	se := 0.0
	if rw.walksDone > 0 {
		se = math.Sqrt(variance / float64(rw.walksDone))
	}
	return EntryResult{
		Mean:     rw.mean,
		Variance: variance,
		CILower:  rw.mean - 1.96*se,
		CIUpper:  rw.mean + 1.96*se,
		Walks:    rw.walksDone,
	}
}

// Iterate runs one batch of walks and reports the running estimate via
// WalkBatch, or MajorIteration once the target walk count is reached.
// The first batch always runs; if the internal wall-clock budget has
// elapsed before a later batch, it reports the partial estimate with a
// widened interval via a *BudgetExhaustedError (spec §4.6, §7).
func (rw *RandomWalk) Iterate(ctx *Context) (Operation, error) {
	remaining := rw.totalWalks - rw.walksDone
	if remaining <= 0 {
		res := rw.Result()
		ctx.WalkResult = WalkBatchResult{Mean: res.Mean, Variance: res.Variance, Walks: rw.walksDone}
		ctx.Converged = true
		return MajorIteration, nil
	}
	if rw.walksDone > 0 && rw.budget > 0 && time.Since(rw.startTime) > rw.budget {
		res := rw.Result()
		ctx.WalkResult = WalkBatchResult{Mean: res.Mean, Variance: res.Variance, Walks: rw.walksDone}
		ctx.Converged = false
		return NoOperation, &BudgetExhaustedError{Kind: "walks", Spent: rw.walksDone, Allowed: rw.totalWalks}
	}
	batch := rw.batchSize
	if batch > remaining {
		batch = remaining
	}
	for k := 0; k < batch; k++ {
		v := rw.runWalk()
		rw.walksDone++
		delta := v - rw.mean
		rw.mean += delta / float64(rw.walksDone)
		rw.m2 += delta * (v - rw.mean)
	}
	res := rw.Result()
	ctx.WalkResult = WalkBatchResult{Mean: res.Mean, Variance: res.Variance, Walks: rw.walksDone}
	ctx.Converged = rw.walksDone >= rw.totalWalks
	return WalkBatch, nil
}

// runWalk executes a single absorbing walk starting at the target row
// and returns its contribution to the mean estimate: the path's sign
// times its accumulated scale times b_i / (M_ii * p_abs) at the row i
// where it is absorbed.
func (rw *RandomWalk) runWalk() float64 {
	i := rw.target
	sign := 1.0
	scale := 1.0
	diag := rw.m.Diagonal()

	for step := 0; step < rw.maxWalkLen; step++ {
		pAbs := 1 / math.Abs(diag[i])
		if pAbs > 1 {
			pAbs = 1
		}
		cols, vals := rw.m.Row(i)
		sumAbsW := 0.0
		for k, c := range cols {
			if c == i {
				continue
			}
			sumAbsW += math.Abs(vals[k] / diag[i])
		}
		if sumAbsW == 0 {
			// Degenerate row: no outgoing mass left to sample from;
			// absorb immediately (spec §4.6) with the exact tail b_i/M_ii.
			return sign * scale * rw.b[i] / diag[i]
		}
		u := rw.uniform.Rand()
		if u < pAbs {
			return sign * scale * rw.b[i] / (diag[i] * pAbs)
		}

		v := rw.uniform.Rand() * sumAbsW
		cum := 0.0
		next := i
		nextSign := sign
		for k, c := range cols {
			if c == i {
				continue
			}
			w := -vals[k] / diag[i]
			cum += math.Abs(w)
			if v <= cum {
				next = c
				if w < 0 {
					nextSign = -sign
				}
				break
			}
		}
		scale *= sumAbsW / (1 - pAbs)
		i = next
		sign = nextSign
	}
	// Force-absorb after maxWalkLen steps without natural absorption.
	return sign * scale * rw.b[i] / diag[i]
}
