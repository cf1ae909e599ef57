package regression

import (
	"brainlm/internal/errors"
	"brainlm/internal/sparse"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// DefaultFolds is the fold count used by the analyses.
const DefaultFolds = 5

// Fold is one train/test split of row indices.
type Fold struct {
	Train []int
	Test  []int
}

// KFold partitions n rows into k contiguous folds without shuffling. The
// first n%k folds hold one extra row, so every row is tested exactly once.
func KFold(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, errors.ConfigurationError("k-fold needs at least 2 folds, got %d", k)
	}
	if k > n {
		return nil, errors.ConfigurationError("cannot split %d samples into %d folds", n, k)
	}

	folds := make([]Fold, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		end := start + size

		fold := Fold{
			Test:  make([]int, 0, size),
			Train: make([]int, 0, n-size),
		}
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				fold.Test = append(fold.Test, i)
			} else {
				fold.Train = append(fold.Train, i)
			}
		}
		folds = append(folds, fold)
		start = end
	}
	return folds, nil
}

// RSquared returns 1 - SS_res/SS_tot against the mean of yTrue. A constant
// yTrue scores 1 when predicted exactly and 0 otherwise.
func RSquared(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean, _ := stats.Mean(yTrue)
	var ssRes, ssTot float64
	for i, v := range yTrue {
		d := v - yPred[i]
		ssRes += d * d
		c := v - mean
		ssTot += c * c
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Scorer runs K-fold cross-validation with a fixed estimator.
type Scorer struct {
	Folds     int
	Estimator Estimator
}

// NewScorer returns a scorer with the default fold count.
func NewScorer(est Estimator) *Scorer {
	return &Scorer{Folds: DefaultFolds, Estimator: est}
}

// Score fits on k-1 folds, scores the held-out fold per target column and
// returns the per-column R² averaged over folds.
func (s *Scorer) Score(x, y mat.Matrix) ([]float64, error) {
	n, _ := x.Dims()
	ny, targets := y.Dims()
	if n != ny {
		return nil, errors.ShapeMismatchError("features have %d rows but targets have %d", n, ny)
	}

	folds, err := KFold(n, s.Folds)
	if err != nil {
		return nil, err
	}

	perTarget := make([][]float64, targets)
	for f, fold := range folds {
		model, err := s.Estimator.Fit(selectRows(x, fold.Train), selectRows(y, fold.Train))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %d", f)
		}
		pred := model.Predict(selectRows(x, fold.Test))
		yTest := selectRows(y, fold.Test)
		for j := 0; j < targets; j++ {
			perTarget[j] = append(perTarget[j], RSquared(mat.Col(nil, j, yTest), mat.Col(nil, j, pred)))
		}
	}

	scores := make([]float64, targets)
	for j, foldScores := range perTarget {
		mean, err := stats.Mean(foldScores)
		if err != nil {
			return nil, errors.Wrapf(err, "averaging fold scores of target %d", j)
		}
		scores[j] = mean
	}
	return scores, nil
}

// KFoldScore is Score with an explicit fold count.
func KFoldScore(k int, x, y mat.Matrix, est Estimator) ([]float64, error) {
	return (&Scorer{Folds: k, Estimator: est}).Score(x, y)
}

// selectRows copies the given rows of m into a dense matrix. Sparse designs
// keep their representation.
func selectRows(m mat.Matrix, rows []int) mat.Matrix {
	if csr, ok := m.(*sparse.CSR); ok {
		return csr.SelectRows(rows)
	}
	_, cols := m.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	for r, i := range rows {
		for j := 0; j < cols; j++ {
			out.Set(r, j, m.At(i, j))
		}
	}
	return out
}
