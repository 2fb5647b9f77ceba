package vecops

// Source is a deterministic, portable pseudo-random generator: a
// splitmix64 state machine. Given the same seed it produces the same
// sequence on any platform (spec §4.1), which is the property that
// matters for reproducible estimator sessions; it is not a
// cryptographic generator.
//
// Source implements math/rand/v2's Source interface (Uint64() uint64),
// grounded on the struct-with-Seed-method idiom of
// gonum/mathext/prng.MT19937, scaled down to the single-word state a
// splitmix64 generator needs.
type Source struct {
	state uint64
}

// NewSource returns a Source seeded with seed.
func NewSource(seed uint64) *Source {
	s := &Source{}
	s.Seed(seed)
	return s
}

// Seed resets the generator to the deterministic state derived from seed.
func (s *Source) Seed(seed uint64) {
	s.state = seed
}

// Uint64 returns the next pseudo-random value in the sequence.
func (s *Source) Uint64() uint64 {
	s.state += 0x9E3779B97F4A7C15
	z := s.state
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// Float64 returns a pseudo-random value in [0, 1).
func (s *Source) Float64() float64 {
	// Use the top 53 bits, matching the precision of a float64 mantissa.
	return float64(s.Uint64()>>11) / (1 << 53)
}

// Substream derives an independent generator for walk index idx, so that
// concurrent random walks started from distinct indices draw from
// disjoint streams without sharing mutable state (spec §5). The
// derivation itself is a splitmix64 step seeded from the combination of
// the parent state and idx, which is deterministic given (seed, idx).
func (s *Source) Substream(idx uint64) *Source {
	mixed := s.state ^ (idx*0x9E3779B97F4A7C15 + 0x1000000001B3)
	return NewSource(mixed)
}
