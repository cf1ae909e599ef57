// Package sparse provides the coordinate-list builder and compressed sparse
// row matrix used for deconvolution design matrices. CSR implements
// mat.Matrix so it can be handed to gonum routines directly, but the products
// the estimators need are computed here without densifying.
package sparse

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// COO accumulates (row, column, value) triplets. Repeated coordinates are
// summed when converted to CSR.
type COO struct {
	rows, cols int
	ri, ci     []int
	v          []float64
}

// NewCOO returns an empty rows×cols builder.
func NewCOO(rows, cols int) *COO {
	if rows < 0 || cols < 0 {
		panic(mat.ErrNegativeDimension)
	}
	return &COO{rows: rows, cols: cols}
}

// Dims returns the builder dimensions.
func (c *COO) Dims() (int, int) {
	return c.rows, c.cols
}

// Add appends a triplet. Zero values are ignored.
func (c *COO) Add(i, j int, v float64) {
	if i < 0 || i >= c.rows || j < 0 || j >= c.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	if v == 0 {
		return
	}
	c.ri = append(c.ri, i)
	c.ci = append(c.ci, j)
	c.v = append(c.v, v)
}

// Len returns the number of stored triplets.
func (c *COO) Len() int {
	return len(c.v)
}

// ToCSR compresses the triplets. Entries within a row are column ordered,
// duplicates are summed and entries that sum to zero are dropped.
func (c *COO) ToCSR() *CSR {
	starts := make([]int, c.rows+1)
	for _, i := range c.ri {
		starts[i+1]++
	}
	for i := 0; i < c.rows; i++ {
		starts[i+1] += starts[i]
	}

	next := append([]int(nil), starts[:c.rows]...)
	idx := make([]int, len(c.ri))
	val := make([]float64, len(c.ri))
	for k, i := range c.ri {
		p := next[i]
		idx[p] = c.ci[k]
		val[p] = c.v[k]
		next[i]++
	}

	out := &CSR{
		rows:   c.rows,
		cols:   c.cols,
		indptr: make([]int, c.rows+1),
	}
	out.indices = make([]int, 0, len(idx))
	out.data = make([]float64, 0, len(val))
	for i := 0; i < c.rows; i++ {
		lo, hi := starts[i], starts[i+1]
		sort.Sort(byColumn{idx: idx[lo:hi], val: val[lo:hi]})
		for p := lo; p < hi; {
			j, sum := idx[p], val[p]
			p++
			for p < hi && idx[p] == j {
				sum += val[p]
				p++
			}
			if sum != 0 {
				out.indices = append(out.indices, j)
				out.data = append(out.data, sum)
			}
		}
		out.indptr[i+1] = len(out.indices)
	}
	return out
}

type byColumn struct {
	idx []int
	val []float64
}

func (b byColumn) Len() int           { return len(b.idx) }
func (b byColumn) Less(i, j int) bool { return b.idx[i] < b.idx[j] }
func (b byColumn) Swap(i, j int) {
	b.idx[i], b.idx[j] = b.idx[j], b.idx[i]
	b.val[i], b.val[j] = b.val[j], b.val[i]
}

// CSR is an immutable compressed sparse row matrix.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var _ mat.Matrix = (*CSR)(nil)

// Dims returns the matrix dimensions.
func (m *CSR) Dims() (int, int) {
	return m.rows, m.cols
}

// At returns the element at row i, column j.
func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.rows || j < 0 || j >= m.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	lo, hi := m.indptr[i], m.indptr[i+1]
	k := lo + sort.SearchInts(m.indices[lo:hi], j)
	if k < hi && m.indices[k] == j {
		return m.data[k]
	}
	return 0
}

// T returns the implicit transpose.
func (m *CSR) T() mat.Matrix {
	return mat.Transpose{Matrix: m}
}

// NNZ returns the number of stored non-zeros.
func (m *CSR) NNZ() int {
	return len(m.data)
}

// RowNNZ returns the number of non-zeros in row i.
func (m *CSR) RowNNZ(i int) int {
	return m.indptr[i+1] - m.indptr[i]
}

// DoNonZero calls fn for every stored non-zero in row-major order.
func (m *CSR) DoNonZero(fn func(i, j int, v float64)) {
	for i := 0; i < m.rows; i++ {
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			fn(i, m.indices[p], m.data[p])
		}
	}
}

// NonZeroRows returns, in ascending order, the rows holding at least one non-zero.
func (m *CSR) NonZeroRows() []int {
	var rows []int
	for i := 0; i < m.rows; i++ {
		if m.indptr[i+1] > m.indptr[i] {
			rows = append(rows, i)
		}
	}
	return rows
}

// SelectRows returns a new matrix made of the given rows in the given order.
func (m *CSR) SelectRows(rows []int) *CSR {
	out := &CSR{
		rows:   len(rows),
		cols:   m.cols,
		indptr: make([]int, len(rows)+1),
	}
	for k, i := range rows {
		if i < 0 || i >= m.rows {
			panic(mat.ErrRowAccess)
		}
		lo, hi := m.indptr[i], m.indptr[i+1]
		out.indices = append(out.indices, m.indices[lo:hi]...)
		out.data = append(out.data, m.data[lo:hi]...)
		out.indptr[k+1] = len(out.indices)
	}
	return out
}

// HStack concatenates blocks left to right. All blocks must share a row count.
func HStack(blocks ...*CSR) *CSR {
	if len(blocks) == 0 {
		return &CSR{indptr: []int{0}}
	}
	rows := blocks[0].rows
	offsets := make([]int, len(blocks))
	cols, nnz := 0, 0
	for b, blk := range blocks {
		if blk.rows != rows {
			panic(mat.ErrShape)
		}
		offsets[b] = cols
		cols += blk.cols
		nnz += blk.NNZ()
	}

	out := &CSR{
		rows:    rows,
		cols:    cols,
		indptr:  make([]int, rows+1),
		indices: make([]int, 0, nnz),
		data:    make([]float64, 0, nnz),
	}
	for i := 0; i < rows; i++ {
		for b, blk := range blocks {
			for p := blk.indptr[i]; p < blk.indptr[i+1]; p++ {
				out.indices = append(out.indices, blk.indices[p]+offsets[b])
				out.data = append(out.data, blk.data[p])
			}
		}
		out.indptr[i+1] = len(out.indices)
	}
	return out
}

// Gram returns mᵀm as a dense cols×cols matrix.
func (m *CSR) Gram() *mat.Dense {
	g := mat.NewDense(m.cols, m.cols, nil)
	raw := g.RawMatrix()
	for i := 0; i < m.rows; i++ {
		lo, hi := m.indptr[i], m.indptr[i+1]
		for p := lo; p < hi; p++ {
			a, va := m.indices[p], m.data[p]
			row := raw.Data[a*raw.Stride : a*raw.Stride+m.cols]
			for q := lo; q < hi; q++ {
				row[m.indices[q]] += va * m.data[q]
			}
		}
	}
	return g
}

// MulTrans returns mᵀb where b has as many rows as m.
func (m *CSR) MulTrans(b mat.Matrix) *mat.Dense {
	br, bc := b.Dims()
	if br != m.rows {
		panic(mat.ErrShape)
	}
	bd := mat.DenseCopyOf(b)
	out := mat.NewDense(m.cols, bc, nil)
	for i := 0; i < m.rows; i++ {
		src := bd.RawRowView(i)
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			floats.AddScaled(out.RawRowView(m.indices[p]), m.data[p], src)
		}
	}
	return out
}

// Mul returns m·b where b has as many rows as m has columns.
func (m *CSR) Mul(b mat.Matrix) *mat.Dense {
	br, bc := b.Dims()
	if br != m.cols {
		panic(mat.ErrShape)
	}
	bd := mat.DenseCopyOf(b)
	out := mat.NewDense(m.rows, bc, nil)
	for i := 0; i < m.rows; i++ {
		dst := out.RawRowView(i)
		for p := m.indptr[i]; p < m.indptr[i+1]; p++ {
			floats.AddScaled(dst, m.data[p], bd.RawRowView(m.indices[p]))
		}
	}
	return out
}

// ToDense returns a dense copy.
func (m *CSR) ToDense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	m.DoNonZero(func(i, j int, v float64) {
		d.Set(i, j, v)
	})
	return d
}
