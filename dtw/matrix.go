package dtw

import "fmt"

// Sentinel marks cells that no path can reach. It is finite so that the
// recurrence never produces NaN.
const Sentinel = 1e300

// Matrix is the (m+1)x(n+1) cumulative cost matrix. Row 0 and column 0 are
// the border; C[0][0] is 0.
type Matrix struct {
	Rows, Cols int
	data       []float64
}

func newMatrix(rows, cols int) *Matrix {
	c := &Matrix{Rows: rows, Cols: cols, data: make([]float64, rows*cols)}
	for i := range c.data {
		c.data[i] = Sentinel
	}
	c.data[0] = 0
	return c
}

// At returns C[i][j].
func (c *Matrix) At(i, j int) float64 {
	return c.data[i*c.Cols+j]
}

func (c *Matrix) set(i, j int, v float64) {
	c.data[i*c.Cols+j] = v
}

// Clone returns a deep copy.
func (c *Matrix) Clone() *Matrix {
	return &Matrix{Rows: c.Rows, Cols: c.Cols, data: append([]float64(nil), c.data...)}
}

// Equal reports whether both matrices hold bit-identical values.
func (c *Matrix) Equal(o *Matrix) bool {
	if c.Rows != o.Rows || c.Cols != o.Cols {
		return false
	}
	for i, v := range c.data {
		if o.data[i] != v {
			return false
		}
	}
	return true
}

// window holds freshly computed values for matrix columns lo..hi, stored
// column by column.
type window struct {
	lo, hi int
	rows   int
	data   []float64
}

func (w *window) at(i, j int) float64 {
	return w.data[(j-w.lo)*w.rows+i]
}

func (w *window) contains(j int) bool {
	return j >= w.lo && j <= w.hi
}

// apply copies the window into c.
func (w *window) apply(c *Matrix) {
	for j := w.lo; j <= w.hi; j++ {
		for i := 0; i < w.rows; i++ {
			c.set(i, j, w.at(i, j))
		}
	}
}

// computeWindow fills matrix columns lo..lo+len(targ)-1 from the column
// lo-1 of c. targ[k] is the target point of column lo+k. c is not modified.
func computeWindow(c *Matrix, pred, targ [][]float64, lo int, o *options) *window {
	if lo < 1 || lo+len(targ) > c.Cols {
		panic(fmt.Sprintf("dtw: window [%d,%d) outside matrix with %d columns", lo, lo+len(targ), c.Cols))
	}
	rows := c.Rows
	w := &window{lo: lo, hi: lo + len(targ) - 1, rows: rows, data: make([]float64, rows*len(targ))}
	for k, tp := range targ {
		j := lo + k
		col := w.data[k*rows : (k+1)*rows]
		col[0] = Sentinel
		var prev []float64
		if k > 0 {
			prev = w.data[(k-1)*rows : k*rows]
		}
		left := func(i int) float64 {
			if prev != nil {
				return prev[i]
			}
			return c.At(i, j-1)
		}
		for i := 1; i < rows; i++ {
			if !o.inBand(i, j) {
				col[i] = Sentinel
				continue
			}
			m := min3(col[i-1], left(i), left(i-1))
			if m >= Sentinel {
				col[i] = Sentinel
				continue
			}
			col[i] = o.dist(pred[i-1], tp) + m
		}
	}
	return w
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
