package vecops

import (
	"math/bits"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// PoolCap is the default maximum number of buffers retained per length
// class by a Pool, per spec's vector-pool design (§4.1).
const PoolCap = 50

// poolFor returns the index into a size-class array that holds buffers
// able to store size elements: the ceiling of base-2 log of size.
func poolFor(size uint) int {
	if size == 0 {
		return 0
	}
	return bits.Len(size - 1)
}

// classStore is a capped stack of same-size-class vectors. Unlike
// sync.Pool, a classStore has a hard cap (PoolCap) so the pool's total
// footprint is bounded, and Get/Put are usable without the values being
// silently dropped by the garbage collector between calls.
type classStore struct {
	mu  sync.Mutex
	buf []*mat.VecDense
}

func (c *classStore) get() *mat.VecDense {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.buf); n > 0 {
		v := c.buf[n-1]
		c.buf = c.buf[:n-1]
		return v
	}
	return nil
}

func (c *classStore) put(v *mat.VecDense, cap int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.buf) >= cap {
		return
	}
	c.buf = append(c.buf, v)
}

// Pool is a per-thread-friendly store of pooled *mat.VecDense buffers,
// stratified by nearest power-of-two length class, mirroring the
// acquire/zero-on-return strategy of gonum/mat's internal workspace pool
// but exposed publicly with explicit borrow/release scopes so a Session
// can reason about ownership (spec §3: "a borrow hands out exclusive
// access that returns to the pool on scope exit").
type Pool struct {
	classes [64]classStore
	cap     int
}

// NewPool returns a Pool that retains at most capPerClass buffers per
// length class. A non-positive capPerClass uses PoolCap.
func NewPool(capPerClass int) *Pool {
	if capPerClass <= 0 {
		capPerClass = PoolCap
	}
	return &Pool{cap: capPerClass}
}

// Borrowed is a vector on loan from a Pool. The zero value is not usable;
// obtain one via Pool.Acquire.
type Borrowed struct {
	pool *Pool
	vec  *mat.VecDense
	n    int
}

// Vec returns the underlying vector for the duration of the borrow.
// The caller must not retain vec beyond Release.
func (b *Borrowed) Vec() *mat.VecDense { return b.vec }

// Raw returns the raw []float64 backing the borrowed vector, of length n.
func (b *Borrowed) Raw() []float64 {
	return b.vec.RawVector().Data[:b.n]
}

// Release zeros the borrowed buffer and returns it to its owning pool.
// Release is a no-op if called more than once.
func (b *Borrowed) Release() {
	if b.pool == nil || b.vec == nil {
		return
	}
	data := b.vec.RawVector().Data
	for i := range data {
		data[i] = 0
	}
	b.pool.classes[poolFor(uint(cap(data)))].put(b.vec, b.pool.cap)
	b.pool = nil
	b.vec = nil
}

// Acquire hands out exclusive access to a zeroed vector of length n. The
// returned Borrowed must be released via Release when the caller is done
// with it; until then no other borrow may observe the same buffer.
func (p *Pool) Acquire(n int) *Borrowed {
	if n <= 0 {
		panic("vecops: pool acquire of non-positive length")
	}
	class := poolFor(uint(n))
	v := p.classes[class].get()
	if v == nil || cap(v.RawVector().Data) < n {
		v = mat.NewVecDense(1<<uint(class), nil)
	}
	data := v.RawVector().Data[:n]
	for i := range data {
		data[i] = 0
	}
	// Reslice to the exact requested length while keeping the
	// power-of-two-capacity backing array for when it returns to the pool.
	vv := mat.NewVecDense(n, data)
	return &Borrowed{pool: p, vec: vv, n: n}
}
