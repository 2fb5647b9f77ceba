package sparse

import "math"

// ZeroTolerance is the magnitude below which an ingested value is treated
// as an explicit zero and dropped during COO->CSR/CSC compaction (spec
// §4.2: "drop triples with |v| < tolerance").
const ZeroTolerance = 1e-300

// COO is a COOrdinate (triplet) format sparse matrix: an unordered
// multiset of (row, col, value) entries, good for incremental
// construction and for converting to CSR/CSC but not for arithmetic
// (spec §3). Grounded on the retrieval pack's james-bowman/sparse COO
// type, adapted to this kernel's ingestion-only role (no Set/At
// random-access API is needed here, only accumulation + conversion).
type COO struct {
	rows, cols int
	rowIdx     []int
	colIdx     []int
	values     []float64
	origin     Origin
}

// NewCOO returns an empty COO matrix of the given dimensions.
func NewCOO(rows, cols int) *COO {
	if rows <= 0 || cols <= 0 {
		panic("sparse: non-positive dimension")
	}
	return &COO{rows: rows, cols: cols, origin: OriginCOO}
}

// Dims returns the matrix dimensions.
func (c *COO) Dims() (rows, cols int) { return c.rows, c.cols }

// Origin reports which canonical storage this COO was originally built
// in — OriginCOO for direct triplet ingestion, OriginDense if it was
// produced by DenseMatrix.ToCOO (spec §3).
func (c *COO) Origin() Origin { return c.origin }

// NNZ returns the number of stored triplets, which may exceed the number
// of distinct coordinates if duplicates have been added.
func (c *COO) NNZ() int { return len(c.values) }

// AddEntry appends a (row, col, value) triplet. A duplicate (row, col)
// pair is allowed; conversion to CSR/CSC resolves duplicates by
// summation (spec §3).
//
// AddEntry returns ErrInvalidIndex if row or col is out of bounds, or
// ErrNonFiniteValue if value is NaN or infinite.
func (c *COO) AddEntry(row, col int, value float64) error {
	if row < 0 || row >= c.rows || col < 0 || col >= c.cols {
		return ErrInvalidIndex
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return ErrNonFiniteValue
	}
	c.rowIdx = append(c.rowIdx, row)
	c.colIdx = append(c.colIdx, col)
	c.values = append(c.values, value)
	return nil
}

// NewCOOFromTriplets builds a COO matrix directly from parallel row, col
// and value slices of equal length, the sparse ingestion shape of spec
// §6. It returns ErrDimensionMismatch if the slices disagree in length,
// ErrInvalidIndex if any coordinate is out of bounds, and
// ErrNonFiniteValue if any value is non-finite.
func NewCOOFromTriplets(rows, cols int, rowIdx, colIdx []int, values []float64) (*COO, error) {
	if len(rowIdx) != len(colIdx) || len(rowIdx) != len(values) {
		return nil, ErrDimensionMismatch
	}
	c := NewCOO(rows, cols)
	for k := range values {
		if err := c.AddEntry(rowIdx[k], colIdx[k], values[k]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// cumsum turns per-bucket counts in count into cumulative offsets written
// into ptr (of length n+1), and rewrites count[i] to equal ptr[i] as a
// per-bucket cursor for the scatter pass that follows - the classic
// counting-sort bucket layout, grounded on james-bowman/sparse's
// coordinate.go cumsum/compress helpers.
func cumsum(ptr []int, count []int, n int) {
	total := 0
	for i := 0; i < n; i++ {
		ptr[i] = total
		total += count[i]
		count[i] = ptr[i]
	}
	ptr[n] = total
}

// compress performs one counting-sort bucket pass of (major, minor, v)
// triplets into major-grouped order, returning a ptr/idx/data triple
// where entries sharing the same major index are contiguous but not yet
// deduplicated or sorted by minor index within a bucket.
func compress(major, minor []int, values []float64, n int) (ptr, idx []int, data []float64) {
	counts := make([]int, n+1)
	for _, m := range major {
		counts[m]++
	}
	ptr = make([]int, n+1)
	cumsum(ptr, counts, n)

	idx = make([]int, len(minor))
	data = make([]float64, len(values))
	cursor := append([]int(nil), ptr[:n]...)
	for k := range values {
		p := cursor[major[k]]
		idx[p] = minor[k]
		data[p] = values[k]
		cursor[major[k]]++
	}
	return ptr, idx, data
}

// dedupe sorts each bucket of idx/data by minor index and sums duplicate
// minor indices within the same bucket. When dropZeros is set, entries
// whose resulting magnitude is below ZeroTolerance are dropped; CSR<->CSC
// reformatting of an already-clean matrix passes dropZeros=false so the
// triple multiset round-trips exactly (spec §8), while COO ingestion,
// which may carry caller-supplied near-zero noise, passes true. It
// leaves its inputs unchanged and returns new ptr/idx/data slices whose
// ptr reflects the new (possibly shorter) bucket boundaries.
func dedupe(ptr []int, idx []int, data []float64, n int, dropZeros bool) ([]int, []int, []float64) {
	newIdx := make([]int, 0, len(idx))
	newData := make([]float64, 0, len(data))
	newPtr := make([]int, n+1)

	for i := 0; i < n; i++ {
		start, end := ptr[i], ptr[i+1]
		bucket := make([]minorValuePair, end-start)
		for k := start; k < end; k++ {
			bucket[k-start] = minorValuePair{idx[k], data[k]}
		}
		sortPairs(bucket)

		newPtr[i] = len(newIdx)
		j := 0
		for j < len(bucket) {
			sum := bucket[j].value
			m := bucket[j].minor
			j++
			for j < len(bucket) && bucket[j].minor == m {
				sum += bucket[j].value
				j++
			}
			if !dropZeros || math.Abs(sum) >= ZeroTolerance {
				newIdx = append(newIdx, m)
				newData = append(newData, sum)
			}
		}
	}
	newPtr[n] = len(newIdx)
	return newPtr, newIdx, newData
}

type minorValuePair struct {
	minor int
	value float64
}

// sortPairs sorts a small bucket of (minor, value) pairs by minor index
// using insertion sort: push-style matrices typically have a handful of
// nonzeros per row/column, so an O(k^2) sort on each bucket outperforms
// the overhead of a general-purpose sort for realistic k.
func sortPairs(bucket []minorValuePair) {
	for i := 1; i < len(bucket); i++ {
		v := bucket[i]
		j := i - 1
		for j >= 0 && bucket[j].minor > v.minor {
			bucket[j+1] = bucket[j]
			j--
		}
		bucket[j+1] = v
	}
}

// ToCSR converts the receiver to Compressed Sparse Row format. Duplicate
// (row, col) triplets are coalesced by summation; the resulting CSR does
// not share storage with the receiver.
func (c *COO) ToCSR() *CSR {
	ptr, idx, data := compress(c.rowIdx, c.colIdx, c.values, c.rows)
	ptr, idx, data = dedupe(ptr, idx, data, c.rows, true)
	return &CSR{rows: c.rows, cols: c.cols, rowPtr: ptr, colIdx: idx, values: data, origin: c.origin}
}

// ToCSC converts the receiver to Compressed Sparse Column format.
// Duplicate (row, col) triplets are coalesced by summation; the
// resulting CSC does not share storage with the receiver.
func (c *COO) ToCSC() *CSC {
	ptr, idx, data := compress(c.colIdx, c.rowIdx, c.values, c.cols)
	ptr, idx, data = dedupe(ptr, idx, data, c.cols, true)
	return &CSC{rows: c.rows, cols: c.cols, colPtr: ptr, rowIdx: idx, values: data, origin: c.origin}
}
