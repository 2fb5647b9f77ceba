package linsolve

import (
	"container/heap"
	"math"

	"github.com/addsolve/kernel/sparse"
)

// neighborSource is the structural access a push step needs: given a
// pivot index, the other coordinates whose residual the pivot's push
// touches, and the matrix entry connecting them. Forward push walks
// CSC columns; backward push walks CSR rows (spec §4.5 and the
// derivation in DESIGN.md for why the two directions need different
// compressed views).
type neighborSource interface {
	Neighbors(i int) (idx []int, vals []float64)
	Diagonal() []float64
	Dim() int
}

// cscNeighbors adapts a CSC matrix to neighborSource for forward push:
// pushing index i redistributes along column i of M, i.e. the rows j
// with M_ji != 0.
type cscNeighbors struct{ m *sparse.CSC }

func (c cscNeighbors) Neighbors(i int) ([]int, []float64) { return c.m.Column(i) }
func (c cscNeighbors) Diagonal() []float64                { return c.m.Diagonal() }
func (c cscNeighbors) Dim() int                           { _, cols := c.m.Dims(); return cols }

// csrNeighbors adapts a CSR matrix to neighborSource for backward push:
// pushing index i against A = Mᵀ redistributes along column i of A,
// which is row i of M, i.e. the columns j with M_ij != 0.
type csrNeighbors struct{ m *sparse.CSR }

func (c csrNeighbors) Neighbors(i int) ([]int, []float64) { return c.m.Row(i) }
func (c csrNeighbors) Diagonal() []float64                { return c.m.Diagonal() }
func (c csrNeighbors) Dim() int                           { rows, _ := c.m.Dims(); return rows }

// pushItem is one candidate pivot in the priority queue, tagged with
// the residual magnitude it was enqueued with (lazy-deletion scheme:
// an item is stale, and skipped on pop, once the live residual no
// longer matches the value it carries).
type pushItem struct {
	idx      int
	priority float64
}

// pushHeap is a max-heap on priority, tie-broken by smallest index
// first, giving the deterministic selection spec §4.5 requires.
type pushHeap []pushItem

func (h pushHeap) Len() int { return len(h) }
func (h pushHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].idx < h[j].idx
}
func (h pushHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *pushHeap) Push(x any)        { *h = append(*h, x.(pushItem)) }
func (h *pushHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// pushCore implements the largest-residual push loop of spec §4.5 over
// an arbitrary neighborSource, shared between forward and backward push
// so the two differ only in which compressed view they were built
// from.
type pushCore struct {
	src     neighborSource
	diag    []float64
	r       []float64
	x       []float64
	eps     float64
	maxIter int
	count   int
	q       pushHeap
}

func newPushCore(src neighborSource, b []float64, eps float64, maxIter int) *pushCore {
	n := src.Dim()
	c := &pushCore{
		src:     src,
		diag:    src.Diagonal(),
		r:       append([]float64(nil), b...),
		x:       make([]float64, n),
		eps:     eps,
		maxIter: maxIter,
	}
	for i := 0; i < n; i++ {
		if c.r[i] != 0 {
			heap.Push(&c.q, pushItem{idx: i, priority: math.Abs(c.r[i])})
		}
	}
	return c
}

// reset reinitializes the push loop with a fresh (or updated) right-
// hand side, reusing the allocated state; used for incremental solves
// (spec §4.4's "reseed ... iterate from scratch" applies identically to
// push's residual-as-initial-condition formulation).
func (c *pushCore) reset(b []float64) {
	copy(c.r, b)
	for i := range c.x {
		c.x[i] = 0
	}
	c.count = 0
	c.q = c.q[:0]
	for i, v := range c.r {
		if v != 0 {
			heap.Push(&c.q, pushItem{idx: i, priority: math.Abs(v)})
		}
	}
}

// step pops the current largest-residual index (skipping stale heap
// entries), and if its magnitude is still at least eps, performs one
// push. It reports whether the loop has converged (residual below eps
// everywhere reachable), a residual magnitude for progress reporting
// (the largest live one at entry when no push is made, otherwise the one
// at the top of the queue after the push), and an error if the push budget was exhausted or a
// diagonal entry is unusable.
func (c *pushCore) step() (converged bool, residual float64, err error) {
	for c.q.Len() > 0 {
		top := c.q[0]
		if top.priority != math.Abs(c.r[top.idx]) {
			heap.Pop(&c.q)
			continue
		}
		break
	}
	if c.q.Len() == 0 {
		return true, 0, nil
	}
	top := c.q[0]
	if top.priority < c.eps {
		return true, top.priority, nil
	}
	if c.count >= c.maxIter {
		return false, top.priority, &DidNotConvergeError{Iterations: c.count, ResidualNorm: top.priority, Tolerance: c.eps}
	}

	item := heap.Pop(&c.q).(pushItem)
	i := item.idx
	d := c.diag[i]
	if math.Abs(d) < divTolerance {
		return false, top.priority, &sparse.ZeroDiagonalError{Row: i, Value: d}
	}
	delta := c.r[i] / d
	c.x[i] += delta
	c.r[i] = 0
	c.count++

	nbrIdx, nbrVals := c.src.Neighbors(i)
	for k, j := range nbrIdx {
		if j == i {
			continue
		}
		c.r[j] -= nbrVals[k] * delta
		if c.r[j] != 0 {
			heap.Push(&c.q, pushItem{idx: j, priority: math.Abs(c.r[j])})
		}
	}

	next := 0.0
	if c.q.Len() > 0 {
		next = math.Abs(c.r[c.q[0].idx])
	}
	return false, next, nil
}

// residualAt returns the current residual magnitude at index i,
// independent of whether i currently has a live heap entry.
func (c *pushCore) residualAt(i int) float64 {
	return math.Abs(c.r[i])
}

// maxResidual scans the live heap for the current largest magnitude
// without popping state.
func (c *pushCore) maxResidual() float64 {
	m := 0.0
	for _, it := range c.q {
		if v := math.Abs(c.r[it.idx]); v > m {
			m = v
		}
	}
	return m
}
