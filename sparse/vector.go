package sparse

// Delta is a sparse right-hand-side patch: a collection of (index,
// value) pairs with unique indices (spec §3). Applying a Delta to a
// dense base vector is commutative across disjoint index sets; for a
// repeated index set twice on the same Delta, the later Set call
// wins (last-writer-wins), matching spec §3's semantics for a delta's
// own internal construction.
type Delta struct {
	entries map[int]float64
	order   []int
}

// NewDelta returns an empty Delta.
func NewDelta() *Delta {
	return &Delta{entries: make(map[int]float64)}
}

// Set records that index idx changes by value in this delta. Calling Set
// again for the same idx overwrites the previous value (last-writer-wins
// within one delta).
func (d *Delta) Set(idx int, value float64) {
	if _, ok := d.entries[idx]; !ok {
		d.order = append(d.order, idx)
	}
	d.entries[idx] = value
}

// Len returns the number of distinct indices held by the delta.
func (d *Delta) Len() int { return len(d.entries) }

// Entries calls fn once for every (index, value) pair in the delta, in
// the order entries were first set.
func (d *Delta) Entries(fn func(idx int, value float64)) {
	for _, idx := range d.order {
		fn(idx, d.entries[idx])
	}
}

// ApplyTo adds the delta's entries into base, which must have length at
// least max(index)+1. ApplyTo panics if an index is out of range for
// base.
func (d *Delta) ApplyTo(base []float64) {
	d.Entries(func(idx int, value float64) {
		if idx < 0 || idx >= len(base) {
			panic(ErrInvalidIndex)
		}
		base[idx] += value
	})
}
