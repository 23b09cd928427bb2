package jit

// profilerRows is the fixed row capacity of every per-site histogram:
// enough to capture the dominant shapes at a call site while ignoring rare
// outliers.
const profilerRows = 4

// TypeHistogram is a bounded per-call-site table of observed operand-type
// tuples. It holds at most rows distinct tuples of cols types each; once
// full, further distinct tuples only bump the overflow counter, so memory
// per site stays O(rows*cols) regardless of how polymorphic the site is.
type TypeHistogram struct {
	rows, cols int
	types      []*Type // rows*cols, row-major
	counts     []uint64
	other      uint64
}

func newTypeHistogram(rows, cols int) *TypeHistogram {
	return &TypeHistogram{
		rows:   rows,
		cols:   cols,
		types:  make([]*Type, rows*cols),
		counts: make([]uint64, rows),
	}
}

// Record observes one execution with the given operand types. The tuple
// must have exactly cols entries; anything else is counted as overflow
// because the site's arity is fixed at creation.
func (h *TypeHistogram) Record(types ...*Type) {
	if len(types) != h.cols {
		h.other++
		return
	}
	for row := 0; row < h.rows; row++ {
		if h.counts[row] == 0 {
			// Free row: seat the tuple.
			copy(h.types[row*h.cols:(row+1)*h.cols], types)
			h.counts[row] = 1
			return
		}
		if h.rowMatches(row, types) {
			h.counts[row]++
			return
		}
	}
	h.other++
}

func (h *TypeHistogram) rowMatches(row int, types []*Type) bool {
	base := row * h.cols
	for col, t := range types {
		if h.types[base+col] != t {
			return false
		}
	}
	return true
}

// Empty reports whether nothing has been recorded, overflow included.
func (h *TypeHistogram) Empty() bool {
	return h.other == 0 && (h.rows == 0 || h.counts[0] == 0)
}

// Rows and Cols return the histogram dimensions.
func (h *TypeHistogram) Rows() int { return h.rows }
func (h *TypeHistogram) Cols() int { return h.cols }

// Count returns the hit count of a row; 0 marks a free row.
func (h *TypeHistogram) Count(row int) uint64 { return h.counts[row] }

// TypeAt returns the type seated at (row, col).
func (h *TypeHistogram) TypeAt(row, col int) *Type { return h.types[row*h.cols+col] }

// Other returns the overflow count.
func (h *TypeHistogram) Other() uint64 { return h.other }
