package calc

import (
	"gonum.org/v1/gonum/mat"
)

// Result holds the feature rows of one Compute call.  A single input yields
// a vector; several inputs yield a matrix with one row per input.
type Result struct {
	rows  [][]float64
	width int
}

func newResult(rows [][]float64, width int) Result {
	return Result{rows: rows, width: width}
}

// Len returns the number of rows.
func (r Result) Len() int { return len(r.rows) }

// IsVector reports whether the result came from exactly one input.
func (r Result) IsVector() bool { return len(r.rows) == 1 }

// Shape is {width} for a vector and {rows, width} for a matrix.
func (r Result) Shape() []int {
	if r.IsVector() {
		return []int{r.width}
	}
	return []int{len(r.rows), r.width}
}

// Vector returns the single row, or nil when the result is a matrix.
func (r Result) Vector() []float64 {
	if !r.IsVector() {
		return nil
	}
	return r.rows[0]
}

// Matrix returns the rows as a dense matrix.  A vector result becomes a
// 1×width matrix; an empty result returns nil.
func (r Result) Matrix() *mat.Dense {
	if len(r.rows) == 0 || r.width == 0 {
		return nil
	}
	m := mat.NewDense(len(r.rows), r.width, nil)
	for i, row := range r.rows {
		m.SetRow(i, row)
	}
	return m
}

// Rows returns the underlying rows.
func (r Result) Rows() [][]float64 { return r.rows }
