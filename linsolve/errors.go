package linsolve

import "fmt"

// Sentinel errors returned by Session and the façade, in gonum's
// package-level error-value convention (mat.ErrShape and siblings).
var (
	// ErrSessionBusy is returned by Session methods when another call
	// into the same Session is already in flight; Session serializes
	// access and never queues (spec §5: "a session call that arrives
	// while one is in flight returns immediately with an error").
	ErrSessionBusy = fmt.Errorf("linsolve: session is busy")

	// ErrSessionClosed is returned by Session methods after Close.
	ErrSessionClosed = fmt.Errorf("linsolve: session is closed")

	// ErrCancelled is returned when a solve is stopped by Cancel before
	// it converged.
	ErrCancelled = fmt.Errorf("linsolve: solve was cancelled")

	// ErrTimedOut is returned when a solve exhausts its wall-clock
	// budget before converging.
	ErrTimedOut = fmt.Errorf("linsolve: solve exceeded its time budget")
)

// DidNotConvergeError reports that an estimator exhausted its iteration
// budget without the residual norm (or, for hybrid/random-walk queries,
// the estimate's standard error) falling below tolerance.
type DidNotConvergeError struct {
	Iterations   int
	ResidualNorm float64
	Tolerance    float64
}

func (e *DidNotConvergeError) Error() string {
	return fmt.Sprintf("linsolve: did not converge after %d iterations (residual norm %g, tolerance %g)",
		e.Iterations, e.ResidualNorm, e.Tolerance)
}

// NotDominantError reports that Analyze found the matrix to be neither
// row nor column diagonally dominant and the caller did not force a
// method via Options.Method (spec §4.3's "Not dominant -> Reject").
type NotDominantError struct {
	DominanceGap float64
}

func (e *NotDominantError) Error() string {
	return fmt.Sprintf("linsolve: matrix is not diagonally dominant (gap %g)", e.DominanceGap)
}

// BudgetExhaustedError reports that the random-walk estimator ran out of
// its wall-clock budget before completing its target walk count. Spent
// is the number of walks completed and Allowed the target count.
type BudgetExhaustedError struct {
	Kind    string // "walks"
	Spent   int
	Allowed int
}

func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("linsolve: exhausted %s budget (%d/%d)", e.Kind, e.Spent, e.Allowed)
}

// StagnatedError reports that an estimator's residual stopped making
// measurable progress before reaching tolerance (spec §7's
// `Stagnated`).
type StagnatedError struct {
	Iterations   int
	ResidualNorm float64
}

func (e *StagnatedError) Error() string {
	return fmt.Sprintf("linsolve: stagnated after %d iterations (residual norm %g)", e.Iterations, e.ResidualNorm)
}

// NumericalInstabilityError reports that an intermediate quantity
// diverged to a non-finite value, or a divide guarded by divTolerance
// was skipped, leaving the estimator unable to continue safely.
type NumericalInstabilityError struct {
	Context string
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("linsolve: numerical instability (%s)", e.Context)
}
