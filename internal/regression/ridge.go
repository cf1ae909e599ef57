// Package regression implements the closed-form linear estimators and the
// K-fold R² scorer shared by the EEG and eye-tracking analyses.
package regression

import (
	"brainlm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// DefaultRidgeLambda is the regularisation used for rERP fits.
const DefaultRidgeLambda = 1000.0

// Estimator fits a linear map from features to targets.
type Estimator interface {
	Fit(x, y mat.Matrix) (*Model, error)
}

// sparseDesign is satisfied by *sparse.CSR. Estimators use it to form the
// normal equations without densifying the design.
type sparseDesign interface {
	mat.Matrix
	Gram() *mat.Dense
	MulTrans(b mat.Matrix) *mat.Dense
	Mul(b mat.Matrix) *mat.Dense
}

// Model is a fitted linear map.
type Model struct {
	// Coef is targets×features.
	Coef *mat.Dense
	// Intercept holds one value per target; nil when fitted without intercept.
	Intercept []float64
}

// Predict returns x·Coefᵀ (+ intercept), samples×targets.
func (m *Model) Predict(x mat.Matrix) *mat.Dense {
	var pred *mat.Dense
	if sd, ok := x.(sparseDesign); ok {
		pred = sd.Mul(m.Coef.T())
	} else {
		pred = &mat.Dense{}
		pred.Mul(x, m.Coef.T())
	}
	if m.Intercept != nil {
		rows, cols := pred.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				pred.Set(i, j, pred.At(i, j)+m.Intercept[j])
			}
		}
	}
	return pred
}

// Ridge is an L2-penalised least squares estimator solved through the normal
// equations (XᵀX + λI)W = XᵀY. Lambda zero gives ordinary least squares.
type Ridge struct {
	Lambda       float64
	FitIntercept bool
}

// NewRidge returns the rERP estimator: positive lambda, no intercept.
func NewRidge(lambda float64) (*Ridge, error) {
	if !(lambda > 0) {
		return nil, errors.ConfigurationError("ridge lambda must be positive, got %v", lambda)
	}
	return &Ridge{Lambda: lambda}, nil
}

// NewLinear returns ordinary least squares with an intercept, the estimator
// used for reading-measure comparisons.
func NewLinear() *Ridge {
	return &Ridge{FitIntercept: true}
}

// Fit solves for the coefficients. x is samples×features, y samples×targets.
func (r *Ridge) Fit(x, y mat.Matrix) (*Model, error) {
	if r.Lambda < 0 {
		return nil, errors.ConfigurationError("ridge lambda must be non-negative, got %v", r.Lambda)
	}
	n, p := x.Dims()
	ny, targets := y.Dims()
	if n != ny {
		return nil, errors.ShapeMismatchError("design has %d rows but targets have %d", n, ny)
	}
	if n == 0 || p == 0 || targets == 0 {
		return nil, errors.EmptyDesignError("cannot fit %dx%d design against %d targets", n, p, targets)
	}

	var xMean, yMean []float64
	if r.FitIntercept {
		xc := mat.DenseCopyOf(x)
		yc := mat.DenseCopyOf(y)
		xMean = centerColumns(xc)
		yMean = centerColumns(yc)
		x, y = xc, yc
	}

	var gram, xty *mat.Dense
	if sd, ok := x.(sparseDesign); ok {
		gram = sd.Gram()
		xty = sd.MulTrans(y)
	} else {
		gram = &mat.Dense{}
		gram.Mul(x.T(), x)
		xty = &mat.Dense{}
		xty.Mul(x.T(), y)
	}

	w, err := solveNormal(gram, xty, r.Lambda)
	if err != nil {
		return nil, err
	}

	model := &Model{Coef: mat.DenseCopyOf(w.T())}
	if r.FitIntercept {
		model.Intercept = make([]float64, targets)
		for j := 0; j < targets; j++ {
			b := yMean[j]
			for k := 0; k < p; k++ {
				b -= xMean[k] * w.At(k, j)
			}
			model.Intercept[j] = b
		}
	}
	return model, nil
}

// FitRidge fits a no-intercept ridge model and returns channels×columns coefficients.
func FitRidge(x, y mat.Matrix, lambda float64) (*mat.Dense, error) {
	est, err := NewRidge(lambda)
	if err != nil {
		return nil, err
	}
	model, err := est.Fit(x, y)
	if err != nil {
		return nil, err
	}
	return model.Coef, nil
}

// solveNormal solves (G + λI)W = B by Cholesky. Features whose diagonal is
// numerically zero get zero weight, so a centred constant feature does not
// make the system singular.
func solveNormal(gram, b *mat.Dense, lambda float64) (*mat.Dense, error) {
	p, _ := gram.Dims()
	_, targets := b.Dims()

	maxDiag := 0.0
	for k := 0; k < p; k++ {
		if d := gram.At(k, k); d > maxDiag {
			maxDiag = d
		}
	}
	tol := 1e-12 * maxDiag
	active := make([]int, 0, p)
	for k := 0; k < p; k++ {
		if gram.At(k, k) > tol {
			active = append(active, k)
		}
	}

	w := mat.NewDense(p, targets, nil)
	if len(active) == 0 {
		return w, nil
	}

	q := len(active)
	sym := mat.NewSymDense(q, nil)
	rhs := mat.NewDense(q, targets, nil)
	for a, ka := range active {
		for c := a; c < q; c++ {
			v := gram.At(ka, active[c])
			if a == c {
				v += lambda
			}
			sym.SetSym(a, c, v)
		}
		for j := 0; j < targets; j++ {
			rhs.Set(a, j, b.At(ka, j))
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, errors.ConfigurationError("normal equations are not positive definite; increase lambda or drop collinear features")
	}
	var sol mat.Dense
	if err := chol.SolveTo(&sol, rhs); err != nil {
		return nil, errors.Wrap(err, "solving normal equations")
	}

	for a, ka := range active {
		for j := 0; j < targets; j++ {
			w.Set(ka, j, sol.At(a, j))
		}
	}
	return w, nil
}

func centerColumns(m *mat.Dense) []float64 {
	rows, cols := m.Dims()
	means := make([]float64, cols)
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += m.At(i, j)
		}
		means[j] = sum / float64(rows)
		for i := 0; i < rows; i++ {
			m.Set(i, j, m.At(i, j)-means[j])
		}
	}
	return means
}
