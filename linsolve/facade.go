// Package linsolve's façade is the uniform operation surface of spec
// §4.9 (analyze/solve/estimate_entry/solve_incremental/cancel), grounded
// on gonum's linsolve.Iterative driver: a single loop that performs
// whatever Operation the active Method commands against Context, while
// independently owning statistics, progress emission, deadlines and
// cancellation the way gonum's Settings/Stats/Result split does.
package linsolve

import (
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/addsolve/kernel/analyze"
	"github.com/addsolve/kernel/sparse"
	"github.com/addsolve/kernel/vecops"
)

// ProgressEvent is emitted no more often than once per iteration (spec
// §6).
type ProgressEvent struct {
	Iteration int
	Residual  float64
	ElapsedNS int64
	Rate      float64
	Trend     Trend
}

// ProgressFunc receives ProgressEvents. It must not call back into the
// façade (spec §5: "caller-owned, must be non-reentrant into the
// façade").
type ProgressFunc func(ProgressEvent)

// Options configures a solve, mirroring gonum linsolve.Settings'
// zero-value-defaults convention. The zero Options is valid and
// resolves to the kernel's defaults.
type Options struct {
	// Method forces a solve strategy; the zero value lets Solve consult
	// analyze.Report.Recommend instead.
	Method analyze.Method

	// Epsilon is the convergence tolerance epsilon of spec §4.4-§4.9.
	// Zero resolves to 1e-8.
	Epsilon float64

	// MaxIterations caps the number of pushes or Neumann sweeps. It does
	// not bound random-walk batches, whose count follows from Epsilon.
	// Zero resolves to 10000.
	MaxIterations int

	// Timeout bounds wall-clock time. Zero means no timeout.
	Timeout time.Duration

	// Seed seeds the session's deterministic RNG. Zero derives a seed
	// from the wall clock at session start (spec §4.1).
	Seed uint64

	// Progress, if non-nil, is invoked after each major iteration.
	Progress ProgressFunc

	// Precondition, if non-nil, replaces the identity preconditioner
	// applied to each Neumann series term via the PreconSolve operation
	// (spec's Supplemented features; default is NoPreconditioner, which
	// leaves the plain D^-1 Neumann series unaffected).
	Precondition func(dst, rhs []float64)

	// TargetRow is the coordinate EstimateEntry and backward/hybrid
	// solves estimate.
	TargetRow int

	// WalkTimeBudget bounds how long a random-walk estimator may spend
	// completing its target walk count before reporting BudgetExhausted
	// with a partial estimate (spec §4.6, §7). Zero resolves to the
	// estimator's own default (5s).
	WalkTimeBudget time.Duration
}

// NoPreconditioner is the identity preconditioner, named after gonum
// linsolve's NoPreconditioner for the same role.
func NoPreconditioner(dst, rhs []float64) {
	copy(dst, rhs)
}

func (o Options) resolve(dim int) Options {
	if o.Epsilon == 0 {
		o.Epsilon = 1e-8
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = 10000
	}
	if o.Seed == 0 {
		o.Seed = uint64(time.Now().UnixNano())
	}
	if o.Precondition == nil {
		o.Precondition = NoPreconditioner
	}
	return o
}

func (o Options) validate(dim int) {
	if o.Epsilon < 0 {
		panic("linsolve: negative Epsilon")
	}
	if o.MaxIterations < 0 {
		panic("linsolve: negative MaxIterations")
	}
	if o.TargetRow < 0 || o.TargetRow >= dim {
		panic("linsolve: TargetRow out of range")
	}
}

// Stats counts the operations a solve performed, mirroring gonum
// linsolve.Stats.
type Stats struct {
	MulVecCount      int
	PreconSolveCount int
	PushCount        int
	WalkCount        int
}

// Result is the envelope of spec §6: a full solution or a single
// coordinate estimate, plus iteration/residual/timing metadata and an
// optional error bound.
type Result struct {
	Kind string // "full" or "entry"

	Solution []float64
	Estimate float64
	Variance float64
	CILower  float64
	CIUpper  float64

	Iterations  int
	Residual    float64
	Converged   bool
	Method      analyze.Method
	ElapsedNS   int64
	MemoryBytes uint64
	Stats       Stats
}

// Analyze produces the matrix analysis report of spec §4.3 for m.
func Analyze(m *sparse.CSR, opts analyze.Options) (analyze.Report, error) {
	return analyze.Analyze(m, opts)
}

// CSRConvertible is any ingestion shape the façade can convert to CSR
// before analyzing or solving: sparse.CSR (identity), sparse.COO and
// sparse.DenseMatrix all implement it (spec §6: "Both [dense and sparse
// COO] formats are accepted by analyze and solve; the kernel owns
// conversion to CSR/CSC").
type CSRConvertible interface {
	ToCSR() *sparse.CSR
}

// AnalyzeAny converts m to CSR internally and analyzes it, accepting
// any CSRConvertible ingestion shape (spec §6).
func AnalyzeAny(m CSRConvertible, opts analyze.Options) (analyze.Report, error) {
	return Analyze(m.ToCSR(), opts)
}

// SolveAny converts m to CSR internally before solving, accepting any
// CSRConvertible ingestion shape (spec §6).
func SolveAny(m CSRConvertible, b []float64, opts Options) (Result, error) {
	return Solve(m.ToCSR(), b, opts)
}

// EstimateEntryAny converts m to CSR internally before estimating,
// accepting any CSRConvertible ingestion shape (spec §6).
func EstimateEntryAny(m CSRConvertible, b []float64, row int, opts Options) (Result, error) {
	return EstimateEntry(m.ToCSR(), b, row, opts)
}

// NewIncrementalSessionAny converts m to CSR internally before starting
// the session, accepting any CSRConvertible ingestion shape (spec §6).
func NewIncrementalSessionAny(m CSRConvertible, b []float64, opts Options) (*Session, Result, error) {
	return NewIncrementalSession(m.ToCSR(), b, opts)
}

// chooseMethod honors opts.Method if set, otherwise defers to the
// analyzer's recommendation (spec §4.3's table).
func chooseMethod(rep analyze.Report, opts Options) (analyze.Method, error) {
	method := opts.Method
	if method == "" {
		method = rep.Recommend()
	}
	if method == analyze.MethodReject {
		return "", &NotDominantError{DominanceGap: rep.DominanceGap}
	}
	return method, nil
}

// buildMethod constructs the Method implementation for label over
// handle.
func buildMethod(label analyze.Method, handle *Handle, b []float64, opts Options, rng *vecops.Source) (Method, error) {
	csr := handle.CSR()
	switch label {
	case analyze.MethodNeumann:
		return NewNeumann(csr.Diagonal(), b, opts.Epsilon, opts.MaxIterations), nil
	case analyze.MethodForwardPush:
		return NewForwardPush(handle.CSC(), b, opts.Epsilon, opts.MaxIterations), nil
	case analyze.MethodBackwardPush:
		return NewBackwardPush(csr, opts.TargetRow, opts.Epsilon, opts.MaxIterations), nil
	case analyze.MethodBidirectional:
		return NewBidirectional(csr, handle.CSC(), b, opts.TargetRow, opts.Epsilon, opts.MaxIterations), nil
	case analyze.MethodRandomWalk:
		rw := NewRandomWalk(csr, b, opts.TargetRow, opts.Epsilon, rng)
		if opts.WalkTimeBudget > 0 {
			rw.SetTimeBudget(opts.WalkTimeBudget)
		}
		return rw, nil
	case analyze.MethodHybrid:
		he := NewHybridEntry(handle.CSC(), csr, b, opts.TargetRow, opts.Epsilon, opts.MaxIterations, rng)
		he.walkBudget = opts.WalkTimeBudget
		return he, nil
	}
	return nil, &NotDominantError{}
}

// Solve computes the full solution vector for M x = b (spec §4.9).
func Solve(m *sparse.CSR, b []float64, opts Options) (Result, error) {
	dim, _ := m.Dims()
	opts = opts.resolve(dim)
	opts.validate(dim)

	rep, err := analyze.Analyze(m, analyze.Options{})
	if err != nil {
		return Result{}, err
	}
	label, err := chooseMethod(rep, opts)
	if err != nil {
		return Result{}, err
	}

	handle := NewHandle(m)
	handle.Acquire()
	defer handle.Release()

	rng := vecops.NewSource(opts.Seed)

	var method Method
	switch label {
	case analyze.MethodRandomWalk, analyze.MethodHybrid:
		// A full-vector solve never uses a single-coordinate method;
		// fall back to HybridSolve's gap-driven Neumann/push choice
		// (spec §4.7's full-vector default).
		neumann := NewNeumann(m.Diagonal(), b, opts.Epsilon, opts.MaxIterations)
		push := NewForwardPush(handle.CSC(), b, opts.Epsilon, opts.MaxIterations)
		method = NewHybridSolve(rep.DominanceGap, neumann, push)
		label = analyze.MethodHybrid
	default:
		method, err = buildMethod(label, handle, b, opts, rng)
		if err != nil {
			return Result{}, err
		}
	}

	sess := newSession(handle, string(label), method, b, opts, rng)
	defer sess.Close()
	return drive(sess, dim, "full", label)
}

// EstimateEntry estimates a single coordinate of M^-1 b (spec §4.9).
func EstimateEntry(m *sparse.CSR, b []float64, row int, opts Options) (Result, error) {
	dim, _ := m.Dims()
	opts.TargetRow = row
	opts = opts.resolve(dim)
	opts.validate(dim)

	rep, err := analyze.Analyze(m, analyze.Options{SingleCoordinateQuery: true})
	if err != nil {
		return Result{}, err
	}
	if _, err := chooseMethod(rep, opts); err != nil {
		return Result{}, err
	}

	handle := NewHandle(m)
	handle.Acquire()
	defer handle.Release()

	rng := vecops.NewSource(opts.Seed)
	method := NewHybridEntry(handle.CSC(), m, b, row, opts.Epsilon, opts.MaxIterations, rng)
	method.walkBudget = opts.WalkTimeBudget
	sess := newSession(handle, string(analyze.MethodHybrid), method, b, opts, rng)
	defer sess.Close()
	return drive(sess, dim, "entry", analyze.MethodHybrid)
}

// NewIncrementalSession starts a session retaining estimator state for
// later SolveIncremental calls (spec §4.9's session-creation path for
// solve_incremental).
func NewIncrementalSession(m *sparse.CSR, b []float64, opts Options) (*Session, Result, error) {
	dim, _ := m.Dims()
	opts = opts.resolve(dim)
	opts.validate(dim)

	rep, err := analyze.Analyze(m, analyze.Options{})
	if err != nil {
		return nil, Result{}, err
	}
	label, err := chooseMethod(rep, opts)
	if err != nil {
		return nil, Result{}, err
	}

	handle := NewHandle(m)
	handle.Acquire()
	rng := vecops.NewSource(opts.Seed)
	method, err := buildMethod(label, handle, b, opts, rng)
	if err != nil {
		handle.Release()
		return nil, Result{}, err
	}
	sess := newSession(handle, string(label), method, b, opts, rng)
	res, err := drive(sess, dim, "full", label)
	return sess, res, err
}

// SolveIncremental applies delta to the session's right-hand side and
// resumes solving from the updated estimator state (spec §4.9; spec
// §4.4's restart rule applies to every estimator family).
func SolveIncremental(sess *Session, delta *sparse.Delta) (Result, error) {
	if err := sess.enter(); err != nil {
		return Result{}, err
	}
	defer sess.leave()
	sess.resetCancellation()

	sess.Update(delta)
	dim, _ := sess.handle.CSR().Dims()
	return driveLocked(sess, dim, "full", analyze.Method(sess.label))
}

// Cancel requests cooperative cancellation of sess (spec §4.9).
func Cancel(sess *Session) {
	sess.Cancel()
}

// drive enters the session's busy guard, initializes the session's
// method, runs the iteration loop and leaves the guard on return.
func drive(sess *Session, dim int, kind string, label analyze.Method) (Result, error) {
	if err := sess.enter(); err != nil {
		return Result{}, err
	}
	defer sess.leave()
	sess.method.Init(nil, nil)
	return driveLocked(sess, dim, kind, label)
}

// driveLocked is the reverse-communication loop: it performs whatever
// Operation sess.method commands against a fresh Context until the
// method reports MajorIteration/PushStep/WalkBatch with Converged, or
// an error.
func driveLocked(sess *Session, dim int, kind string, label analyze.Method) (Result, error) {
	start := time.Now()
	ctx := NewContext(dim)
	var stats Stats
	monitor := NewMonitor()
	var deadline time.Time
	if sess.options.Timeout > 0 {
		deadline = start.Add(sess.options.Timeout)
	}

	iterations := 0
	for {
		if sess.isCancelled() {
			return Result{
				Kind: kind, Solution: append([]float64(nil), ctx.X...),
				Estimate: ctx.WalkResult.Mean, Variance: ctx.WalkResult.Variance,
				Iterations: iterations, Residual: ctx.ResidualNorm, Converged: false,
				Method: label, ElapsedNS: time.Since(start).Nanoseconds(), Stats: stats,
			}, ErrCancelled
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return Result{
				Kind: kind, Solution: append([]float64(nil), ctx.X...),
				Estimate: ctx.WalkResult.Mean, Variance: ctx.WalkResult.Variance,
				Iterations: iterations, Residual: ctx.ResidualNorm, Converged: false,
				Method: label, ElapsedNS: time.Since(start).Nanoseconds(), Stats: stats,
			}, ErrTimedOut
		}

		op, err := sess.method.Iterate(ctx)
		if err != nil {
			if _, budgetExhausted := err.(*BudgetExhaustedError); budgetExhausted {
				se := WidenBudgetInterval * standardError(ctx.WalkResult.Variance, ctx.WalkResult.Walks)
				return Result{
					Kind: kind, Estimate: ctx.WalkResult.Mean, Variance: ctx.WalkResult.Variance,
					CILower: ctx.WalkResult.Mean - 1.96*se, CIUpper: ctx.WalkResult.Mean + 1.96*se,
					Iterations: iterations, Residual: ctx.ResidualNorm,
					Converged: false, Method: label, ElapsedNS: time.Since(start).Nanoseconds(), Stats: stats,
				}, err
			}
			return Result{
				Kind: kind, Iterations: iterations, Residual: ctx.ResidualNorm,
				Converged: false, Method: label, ElapsedNS: time.Since(start).Nanoseconds(), Stats: stats,
			}, err
		}

		switch {
		case op&MulVec != 0:
			sess.handle.CSR().MulVecTo(ctx.Dst, op&Trans != 0, ctx.Src)
			stats.MulVecCount++
		case op&PreconSolve != 0:
			sess.options.Precondition(ctx.Dst, ctx.Src)
			stats.PreconSolveCount++
		case op == ComputeResidual:
			sess.handle.CSR().MulVecTo(ctx.Dst, false, ctx.X)
			for i := range ctx.Dst {
				ctx.Dst[i] = sess.b[i] - ctx.Dst[i]
			}
			stats.MulVecCount++
		case op == CheckResidualNorm:
			// Converged was already proposed by the method; nothing else
			// to do here since cancellation/timeout are checked above,
			// independent of this operation.
			monitor.Observe(ctx.ResidualNorm)
		case op == MajorIteration:
			iterations++
			monitor.Observe(ctx.ResidualNorm)
			emitProgress(sess, iterations, ctx.ResidualNorm, start, monitor)
			if ctx.Converged {
				se := standardError(ctx.WalkResult.Variance, ctx.WalkResult.Walks)
				return Result{
					Kind: kind, Solution: append([]float64(nil), ctx.X...),
					Estimate: ctx.WalkResult.Mean, Variance: ctx.WalkResult.Variance,
					CILower: ctx.WalkResult.Mean - 1.96*se, CIUpper: ctx.WalkResult.Mean + 1.96*se,
					Iterations: iterations, Residual: ctx.ResidualNorm, Converged: true,
					Method: label, ElapsedNS: time.Since(start).Nanoseconds(), Stats: stats,
				}, nil
			}
		case op == PushStep:
			iterations++
			stats.PushCount++
			monitor.Observe(ctx.ResidualNorm)
			emitProgress(sess, iterations, ctx.ResidualNorm, start, monitor)
			if ctx.Converged {
				return Result{
					Kind: kind, Solution: append([]float64(nil), ctx.X...),
					Iterations: iterations, Residual: ctx.ResidualNorm, Converged: true,
					Method: label, ElapsedNS: time.Since(start).Nanoseconds(), Stats: stats,
				}, nil
			}
		case op == WalkBatch:
			iterations++
			stats.WalkCount++
			monitor.Observe(ctx.ResidualNorm)
			if ctx.Converged {
				se := standardError(ctx.WalkResult.Variance, ctx.WalkResult.Walks)
				return Result{
					Kind: kind, Estimate: ctx.WalkResult.Mean, Variance: ctx.WalkResult.Variance,
					CILower: ctx.WalkResult.Mean - 1.96*se, CIUpper: ctx.WalkResult.Mean + 1.96*se,
					Iterations: iterations, Converged: true, Method: label,
					ElapsedNS: time.Since(start).Nanoseconds(), Stats: stats,
				}, nil
			}
		}
	}
}

func emitProgress(sess *Session, iteration int, residual float64, start time.Time, monitor *Monitor) {
	if sess.options.Progress == nil {
		return
	}
	sess.options.Progress(ProgressEvent{
		Iteration: iteration,
		Residual:  residual,
		ElapsedNS: time.Since(start).Nanoseconds(),
		Rate:      monitor.Rate(),
		Trend:     monitor.Trend(),
	})
}

func standardError(variance float64, walks int) float64 {
	if walks <= 0 || variance <= 0 {
		return 0
	}
	return math.Sqrt(variance / float64(walks))
}

// ParallelMulVec computes dst = M*x (trans=false) or dst = M^T*x
// (trans=true) by partitioning the row range across
// runtime.GOMAXPROCS(0) worker goroutines, each accumulating into a
// disjoint, covering slice of rows with a thread-local accumulator
// (spec §5's optional parallel matvec).
func ParallelMulVec(m *sparse.CSR, trans bool, x, dst []float64) {
	rows, cols := m.Dims()
	workers := runtime.GOMAXPROCS(0)
	if workers > rows {
		workers = rows
	}
	if workers <= 1 {
		m.MulVecTo(dst, trans, x)
		return
	}
	chunk := (rows + workers - 1) / workers

	if !trans {
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			lo, hi := w*chunk, (w+1)*chunk
			if lo >= rows {
				break
			}
			if hi > rows {
				hi = rows
			}
			wg.Add(1)
			go func(lo, hi int) {
				defer wg.Done()
				for i := lo; i < hi; i++ {
					rowCols, vals := m.Row(i)
					var sum float64
					for k, c := range rowCols {
						sum += vals[k] * x[c]
					}
					dst[i] = sum
				}
			}(lo, hi)
		}
		wg.Wait()
		return
	}

	// The transposed product scatters into dst, so each worker
	// accumulates into its own thread-local buffer over the full output
	// range; the row ranges read by workers are disjoint and covering,
	// and the buffers are summed after every worker has finished (spec
	// §5: "per-row accumulator is thread-local").
	for i := range dst {
		dst[i] = 0
	}
	partials := make([][]float64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo, hi := w*chunk, (w+1)*chunk
		if lo >= rows {
			continue
		}
		if hi > rows {
			hi = rows
		}
		partials[w] = make([]float64, cols)
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			local := partials[w]
			for i := lo; i < hi; i++ {
				xi := x[i]
				if xi == 0 {
					continue
				}
				rowCols, vals := m.Row(i)
				for k, c := range rowCols {
					local[c] += vals[k] * xi
				}
			}
		}(w, lo, hi)
	}
	wg.Wait()
	for _, local := range partials {
		if local == nil {
			continue
		}
		for i, v := range local {
			dst[i] += v
		}
	}
}
