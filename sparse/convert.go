package sparse

// ToCSC converts the receiver to Compressed Sparse Column format via one
// counting-sort bucket pass keyed by column, preserving the (i, j, v)
// triple multiset (spec §8 round-trip invariant). The returned CSC does
// not share storage with the receiver.
func (m *CSR) ToCSC() *CSC {
	rowIdx := make([]int, len(m.values))
	for i := 0; i < m.rows; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			rowIdx[k] = i
		}
	}
	ptr, idx, data := compress(m.colIdx, rowIdx, m.values, m.cols)
	ptr, idx, data = dedupe(ptr, idx, data, m.cols, false)
	return &CSC{rows: m.rows, cols: m.cols, colPtr: ptr, rowIdx: idx, values: data, origin: m.origin}
}

// ToCSR converts the receiver to Compressed Sparse Row format via one
// counting-sort bucket pass keyed by row, preserving the (i, j, v)
// triple multiset. The returned CSR does not share storage with the
// receiver.
func (m *CSC) ToCSR() *CSR {
	colIdx := make([]int, len(m.values))
	for j := 0; j < m.cols; j++ {
		for k := m.colPtr[j]; k < m.colPtr[j+1]; k++ {
			colIdx[k] = j
		}
	}
	ptr, idx, data := compress(m.rowIdx, colIdx, m.values, m.rows)
	ptr, idx, data = dedupe(ptr, idx, data, m.rows, false)
	return &CSR{rows: m.rows, cols: m.cols, rowPtr: ptr, colIdx: idx, values: data, origin: m.origin}
}

// ToCOO returns a COOrdinate format copy of the receiver.
func (m *CSR) ToCOO() *COO {
	coo := NewCOO(m.rows, m.cols)
	for i := 0; i < m.rows; i++ {
		cols, vals := m.Row(i)
		for k, c := range cols {
			coo.rowIdx = append(coo.rowIdx, i)
			coo.colIdx = append(coo.colIdx, c)
			coo.values = append(coo.values, vals[k])
		}
	}
	coo.origin = m.origin
	return coo
}

// ToCOO returns a COOrdinate format copy of the receiver.
func (m *CSC) ToCOO() *COO {
	coo := NewCOO(m.rows, m.cols)
	for j := 0; j < m.cols; j++ {
		rows, vals := m.Column(j)
		for k, r := range rows {
			coo.rowIdx = append(coo.rowIdx, r)
			coo.colIdx = append(coo.colIdx, j)
			coo.values = append(coo.values, vals[k])
		}
	}
	coo.origin = m.origin
	return coo
}
