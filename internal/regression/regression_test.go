package regression

import (
	"math"
	"testing"

	"brainlm/internal/errors"
	"brainlm/internal/sparse"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKFold_ContiguousCoverage(t *testing.T) {
	folds, err := KFold(12, 5)
	require.NoError(t, err)
	require.Len(t, folds, 5)

	sizes := []int{3, 3, 2, 2, 2}
	seen := make(map[int]int)
	next := 0
	for f, fold := range folds {
		assert.Len(t, fold.Test, sizes[f])
		assert.Len(t, fold.Train, 12-sizes[f])
		for _, i := range fold.Test {
			assert.Equal(t, next, i, "fold %d is not contiguous", f)
			next++
			seen[i]++
		}
	}
	assert.Len(t, seen, 12)
	for i, c := range seen {
		assert.Equal(t, 1, c, "row %d tested %d times", i, c)
	}
}

func TestKFold_InvalidParameters(t *testing.T) {
	_, err := KFold(4, 5)
	assert.True(t, errors.Is(err, errors.CodeConfiguration))

	_, err = KFold(10, 1)
	assert.True(t, errors.Is(err, errors.CodeConfiguration))
}

func TestRSquared(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.0, RSquared(y, y), 1e-12)
	assert.InDelta(t, 0.0, RSquared(y, []float64{2.5, 2.5, 2.5, 2.5}), 1e-12)
	assert.InDelta(t, 1-2.0/5.0, RSquared(y, []float64{1, 3, 3, 3}), 1e-12)
	assert.Equal(t, 1.0, RSquared([]float64{2, 2}, []float64{2, 2}))
	assert.Equal(t, 0.0, RSquared([]float64{2, 2}, []float64{1, 2}))
}

func TestKFoldScore_PerfectlyLinear(t *testing.T) {
	n := 50
	x := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		v := float64(i%7) + 0.1*float64(i)
		x.Set(i, 0, v)
		y.Set(i, 0, 2*v)
		y.Set(i, 1, -3*v)
	}

	scores, err := KFoldScore(5, x, y, NewLinear())
	require.NoError(t, err)
	require.Len(t, scores, 2)
	for _, s := range scores {
		assert.InDelta(t, 1.0, s, 1e-9)
	}

	ridge, err := NewRidge(1e-9)
	require.NoError(t, err)
	scores, err = KFoldScore(5, x, y, ridge)
	require.NoError(t, err)
	for _, s := range scores {
		assert.InDelta(t, 1.0, s, 1e-6)
	}
}

func TestKFoldScore_ConstantFeatures(t *testing.T) {
	n := 50
	x := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x.Set(i, 0, 1)
		y.Set(i, 0, math.Pow(-1, float64(i)))
	}

	scores, err := NewScorer(NewLinear()).Score(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, scores[0], 1e-9)
}

func TestKFoldScore_TooManyFolds(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{1, 2, 3})
	_, err := KFoldScore(5, x, x, NewLinear())
	assert.True(t, errors.Is(err, errors.CodeConfiguration))
}

func TestLinear_MatchesLeastSquares(t *testing.T) {
	x := mat.NewDense(6, 2, []float64{
		1, 0.5,
		2, -1,
		3, 2,
		4, 0,
		5, 1.5,
		6, -0.5,
	})
	y := mat.NewDense(6, 1, []float64{3.1, 2.2, 9.4, 6.8, 11.9, 9.1})

	model, err := NewLinear().Fit(x, y)
	require.NoError(t, err)

	// Reference: least squares on [1 x] via QR.
	aug := mat.NewDense(6, 3, nil)
	for i := 0; i < 6; i++ {
		aug.Set(i, 0, 1)
		aug.Set(i, 1, x.At(i, 0))
		aug.Set(i, 2, x.At(i, 1))
	}
	var ref mat.Dense
	require.NoError(t, ref.Solve(aug, y))

	assert.InDelta(t, ref.At(0, 0), model.Intercept[0], 1e-9)
	assert.InDelta(t, ref.At(1, 0), model.Coef.At(0, 0), 1e-9)
	assert.InDelta(t, ref.At(2, 0), model.Coef.At(0, 1), 1e-9)
}

func TestRidge_ClosedForm(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{1, 0, 0, 1, 1, 1, 2, 1})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	lambda := 0.5

	coef, err := FitRidge(x, y, lambda)
	require.NoError(t, err)
	r, c := coef.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, c)

	var gram mat.Dense
	gram.Mul(x.T(), x)
	gram.Set(0, 0, gram.At(0, 0)+lambda)
	gram.Set(1, 1, gram.At(1, 1)+lambda)
	var xty mat.Dense
	xty.Mul(x.T(), y)
	var want mat.Dense
	require.NoError(t, want.Solve(&gram, &xty))

	assert.InDelta(t, want.At(0, 0), coef.At(0, 0), 1e-12)
	assert.InDelta(t, want.At(1, 0), coef.At(0, 1), 1e-12)
}

func TestRidge_SparseEqualsDense(t *testing.T) {
	coo := sparse.NewCOO(5, 3)
	coo.Add(0, 0, 1)
	coo.Add(1, 1, 1)
	coo.Add(2, 0, 2)
	coo.Add(2, 2, 1)
	coo.Add(3, 1, -1)
	coo.Add(4, 2, 3)
	xs := coo.ToCSR()
	y := mat.NewDense(5, 2, []float64{1, 0, 2, 1, 3, -1, 0, 2, 5, 5})

	sparseCoef, err := FitRidge(xs, y, 2)
	require.NoError(t, err)
	denseCoef, err := FitRidge(xs.ToDense(), y, 2)
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(sparseCoef, denseCoef, 1e-12))
}

func TestRidge_ZeroColumnGetsZeroWeight(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{1, 0, 2, 0, 3, 0})
	y := mat.NewDense(3, 1, []float64{1, 2, 3})

	coef, err := FitRidge(x, y, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.0, coef.At(0, 1))
	assert.InDelta(t, 14.0/15.0, coef.At(0, 0), 1e-12)
}

func TestRidge_Validation(t *testing.T) {
	_, err := NewRidge(0)
	assert.True(t, errors.Is(err, errors.CodeConfiguration))

	x := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(2, 1, []float64{1, 2})
	_, err = NewLinear().Fit(x, y)
	assert.True(t, errors.Is(err, errors.CodeShapeMismatch))
}
