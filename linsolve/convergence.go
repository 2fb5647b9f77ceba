package linsolve

import (
	"math"

	"github.com/addsolve/kernel/sparse"
	"github.com/addsolve/kernel/vecops"
)

// Trend classifies the recent direction of a residual-norm sequence
// (spec §4.8).
type Trend int

// Trend values.
const (
	TrendImproving Trend = iota
	TrendStagnant
	TrendDiverging
)

// String returns a human-readable label for t.
func (t Trend) String() string {
	switch t {
	case TrendImproving:
		return "improving"
	case TrendStagnant:
		return "stagnant"
	case TrendDiverging:
		return "diverging"
	default:
		return "unknown"
	}
}

// monitorHistory bounds how many recent residual norms Monitor retains
// for its rate/trend estimates (spec §4.4's "last ten iterations").
const monitorHistory = 10

// Monitor is the convergence monitor every estimator feeds with its
// sequence of residual norms (spec §4.8). It is independent of any one
// estimator's internals so the façade can attach the same monitor
// regardless of which Method is driving.
type Monitor struct {
	history []float64
}

// NewMonitor returns an empty Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Observe appends a new residual norm to the monitor's history,
// retaining at most the last monitorHistory values.
func (m *Monitor) Observe(residualNorm float64) {
	m.history = append(m.history, residualNorm)
	if len(m.history) > monitorHistory {
		m.history = m.history[len(m.history)-monitorHistory:]
	}
}

// Rate returns the geometric mean of r_k/r_{k-1} over the retained
// history (spec §4.4's convergence rate estimate), or 1 if there are
// fewer than two observations.
func (m *Monitor) Rate() float64 {
	if len(m.history) < 2 {
		return 1
	}
	logSum := 0.0
	n := 0
	for i := 1; i < len(m.history); i++ {
		prev, cur := m.history[i-1], m.history[i]
		if prev <= 0 || cur <= 0 {
			continue
		}
		logSum += math.Log(cur / prev)
		n++
	}
	if n == 0 {
		return 1
	}
	return math.Exp(logSum / float64(n))
}

// Trend classifies the monitor's recent history: ratios consistently
// below 1 are improving, consistently above 1 are diverging, and
// anything else (including too little history) is stagnant.
func (m *Monitor) Trend() Trend {
	rate := m.Rate()
	switch {
	case len(m.history) < 2:
		return TrendStagnant
	case rate < 0.99:
		return TrendImproving
	case rate > 1.01:
		return TrendDiverging
	default:
		return TrendStagnant
	}
}

// Converged reports whether the most recent observation fell below
// tolerance.
func (m *Monitor) Converged(tolerance float64) bool {
	if len(m.history) == 0 {
		return false
	}
	return m.history[len(m.history)-1] < tolerance
}

// StochasticProbe offers the cheap a-posteriori residual check of spec
// §4.8: sample k = ceil(log(1/delta)/eps^2) random rows and certify
// ||r||_inf <= eps with probability at least 1-delta, without computing
// the full residual vector.
type StochasticProbe struct {
	m   *sparse.CSR
	rng *vecops.Source
}

// NewStochasticProbe constructs a probe over m drawing row indices from
// rng.
func NewStochasticProbe(m *sparse.CSR, rng *vecops.Source) *StochasticProbe {
	return &StochasticProbe{m: m, rng: rng}
}

// SampleSize returns k = ceil(log(1/delta)/eps^2), the number of rows
// the probe must sample for a (1-delta) certification of eps.
func SampleSize(eps, delta float64) int {
	k := math.Ceil(math.Log(1/delta) / (eps * eps))
	if k < 1 {
		k = 1
	}
	return int(k)
}

// Probe samples SampleSize(eps, delta) random rows, computes that row's
// entry of M x - b, and reports whether every sampled entry's magnitude
// is at most eps, along with the largest magnitude observed.
func (p *StochasticProbe) Probe(x, b []float64, eps, delta float64) (certified bool, maxObserved float64) {
	rows, _ := p.m.Dims()
	if rows == 0 {
		return true, 0
	}
	k := SampleSize(eps, delta)
	certified = true
	for s := 0; s < k; s++ {
		i := int(p.rng.Uint64() % uint64(rows))
		ri := -b[i]
		cols, vals := p.m.Row(i)
		for j, c := range cols {
			ri += vals[j] * x[c]
		}
		a := math.Abs(ri)
		if a > maxObserved {
			maxObserved = a
		}
		if a > eps {
			certified = false
		}
	}
	return certified, maxObserved
}
