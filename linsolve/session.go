package linsolve

import (
	"sync"
	"sync/atomic"

	"github.com/addsolve/kernel/sparse"
)

// Handle is a reference-counted, read-only handle on a matrix shared by
// every session solving against it (spec §3: "the matrix is a shared,
// read-only reference — mutation of a matrix referenced by any live
// session is disallowed"). CSC is built lazily and cached, since not
// every method needs it.
type Handle struct {
	csr      *sparse.CSR
	refCount int32

	cscOnce sync.Once
	csc     *sparse.CSC
}

// NewHandle wraps csr in a Handle with zero outstanding references.
func NewHandle(csr *sparse.CSR) *Handle {
	return &Handle{csr: csr}
}

// Acquire increments the reference count. Handle does not itself block
// mutation of the underlying matrix; RefCount reports whether any
// reference is still outstanding.
func (h *Handle) Acquire() { atomic.AddInt32(&h.refCount, 1) }

// Release decrements the reference count.
func (h *Handle) Release() { atomic.AddInt32(&h.refCount, -1) }

// RefCount returns the number of live references.
func (h *Handle) RefCount() int32 { return atomic.LoadInt32(&h.refCount) }

// CSR returns the handle's row-major view.
func (h *Handle) CSR() *sparse.CSR { return h.csr }

// CSC returns the handle's column-major view, building and caching it
// on first use.
func (h *Handle) CSC() *sparse.CSC {
	h.cscOnce.Do(func() {
		h.csc = h.csr.ToCSC()
	})
	return h.csc
}

// Session is a kernel-internal container for estimator state across
// incremental calls against the same matrix (spec §3, GLOSSARY). A
// session exclusively owns its estimator state; concurrent calls into
// the same session fail with ErrSessionBusy rather than queuing (spec
// §5).
type Session struct {
	mu     sync.Mutex
	busy   bool
	closed bool

	handle  *Handle
	method  Method
	label   string // the analyze.Method label backing Method, stored as a plain string
	options Options
	b       []float64
	rng     rngSource

	cancelled int32
	deadline  int64 // unix nanoseconds; 0 means no deadline

	lastResult Result
}

// rngSource is the minimal interface Session needs from vecops.Source,
// kept local so session.go does not need to import vecops just for a
// type name used only here.
type rngSource interface {
	Uint64() uint64
}

// newSession constructs a Session over handle, acquiring a reference
// for its lifetime. The caller must eventually call Close.
func newSession(handle *Handle, label string, method Method, b []float64, opts Options, rng rngSource) *Session {
	handle.Acquire()
	s := &Session{
		handle:  handle,
		method:  method,
		label:   label,
		options: opts,
		b:       append([]float64(nil), b...),
		rng:     rng,
	}
	return s
}

// enter marks the session busy for the duration of a call, returning
// ErrSessionBusy or ErrSessionClosed if it cannot.
func (s *Session) enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.busy {
		return ErrSessionBusy
	}
	s.busy = true
	return nil
}

func (s *Session) leave() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Cancel requests cooperative cancellation of any iteration currently
// in flight on this session (spec §4.9, §5). It is safe to call from
// any goroutine.
func (s *Session) Cancel() {
	atomic.StoreInt32(&s.cancelled, 1)
}

// isCancelled reports whether Cancel was called and not yet consumed by a
// fresh solve.
func (s *Session) isCancelled() bool {
	return atomic.LoadInt32(&s.cancelled) != 0
}

// resetCancellation clears the cancellation flag at the start of a new
// solve call so a stale Cancel from a prior call does not leak forward.
func (s *Session) resetCancellation() {
	atomic.StoreInt32(&s.cancelled, 0)
}

// rhsUpdater is implemented by Methods that retain their own copy of the
// right-hand side and need it refreshed after a Delta is applied (spec
// §4.4's incremental-update rule, generalized to every estimator family
// that depends on b). BackwardPush does not implement it: its right-hand
// side is always the unit vector at its target row, independent of b.
type rhsUpdater interface {
	updateRHS(b []float64)
}

// Update applies delta to the session's right-hand side and restarts
// the estimator from the updated b (spec §3's delta semantics; spec
// §4.4's "recompute t0, reseed x, iterate from scratch" generalizes to
// every estimator family on an incremental update).
func (s *Session) Update(delta *sparse.Delta) {
	delta.ApplyTo(s.b)
	if u, ok := s.method.(rhsUpdater); ok {
		u.updateRHS(s.b)
	}
	s.method.Init(nil, nil)
}

// Close releases the session's reference on its matrix handle. Close
// is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.handle.Release()
}
