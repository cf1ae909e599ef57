package sparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func buildExample() *CSR {
	// [1 0 2]
	// [0 0 0]
	// [0 3 0]
	// [4 0 5]
	coo := NewCOO(4, 3)
	coo.Add(3, 2, 5)
	coo.Add(0, 2, 2)
	coo.Add(0, 0, 1)
	coo.Add(2, 1, 3)
	coo.Add(3, 0, 4)
	return coo.ToCSR()
}

func TestToCSR_OrdersAndMatchesDense(t *testing.T) {
	m := buildExample()
	want := mat.NewDense(4, 3, []float64{
		1, 0, 2,
		0, 0, 0,
		0, 3, 0,
		4, 0, 5,
	})

	assert.True(t, mat.Equal(want, m.ToDense()))
	assert.Equal(t, 5, m.NNZ())
	assert.Equal(t, 0, m.RowNNZ(1))
	assert.Equal(t, 2.0, m.At(0, 2))
	assert.Equal(t, 0.0, m.At(1, 1))
	assert.True(t, mat.Equal(want, mat.DenseCopyOf(m)))
}

func TestToCSR_SumsDuplicatesAndDropsZeros(t *testing.T) {
	coo := NewCOO(2, 2)
	coo.Add(0, 1, 1.5)
	coo.Add(0, 1, 2.5)
	coo.Add(1, 0, 1)
	coo.Add(1, 0, -1)
	coo.Add(1, 1, 0)

	m := coo.ToCSR()
	assert.Equal(t, 4.0, m.At(0, 1))
	assert.Equal(t, 1, m.NNZ())
	assert.Equal(t, []int{0}, m.NonZeroRows())
}

func TestAdd_OutOfRangePanics(t *testing.T) {
	coo := NewCOO(2, 2)
	assert.Panics(t, func() { coo.Add(2, 0, 1) })
	assert.Panics(t, func() { coo.Add(0, -1, 1) })
}

func TestNonZeroRowsAndSelect(t *testing.T) {
	m := buildExample()
	rows := m.NonZeroRows()
	assert.Equal(t, []int{0, 2, 3}, rows)

	sel := m.SelectRows(rows)
	r, c := sel.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 3.0, sel.At(1, 1))
	assert.Equal(t, 5.0, sel.At(2, 2))
}

func TestHStack(t *testing.T) {
	left := buildExample()
	coo := NewCOO(4, 2)
	coo.Add(1, 1, 7)
	right := coo.ToCSR()

	m := HStack(left, right)
	r, c := m.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 5, c)
	assert.Equal(t, 7.0, m.At(1, 4))
	assert.Equal(t, 5.0, m.At(3, 2))
	assert.Equal(t, 6, m.NNZ())

	empty := NewCOO(3, 2).ToCSR()
	assert.Panics(t, func() { HStack(left, empty) })
}

func TestProductsMatchDense(t *testing.T) {
	m := buildExample()
	dense := m.ToDense()

	var wantGram mat.Dense
	wantGram.Mul(dense.T(), dense)
	assert.True(t, mat.EqualApprox(&wantGram, m.Gram(), 1e-12))

	y := mat.NewDense(4, 2, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	var wantXtY mat.Dense
	wantXtY.Mul(dense.T(), y)
	assert.True(t, mat.EqualApprox(&wantXtY, m.MulTrans(y), 1e-12))

	b := mat.NewDense(3, 2, []float64{1, -1, 0.5, 2, 3, 0})
	var wantXB mat.Dense
	wantXB.Mul(dense, b)
	assert.True(t, mat.EqualApprox(&wantXB, m.Mul(b), 1e-12))
}
