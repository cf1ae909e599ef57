package deconv

import (
	"brainlm/domain/rerp"
	"brainlm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Accumulator sums coefficient matrices of runs that share a layout and a
// channel count. Summation is the only valid way to combine runs; the
// accumulator is not safe for concurrent use, give each worker its own and
// Merge them afterwards.
type Accumulator struct {
	sum          *mat.Dense
	layout       Layout
	samplingRate float64
	trials       []int
	runs         int
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add sums one run's result into the accumulator.
func (a *Accumulator) Add(r *Result) error {
	if a.sum == nil {
		a.sum = mat.DenseCopyOf(r.Coefficients)
		a.layout = append(Layout(nil), r.Layout...)
		a.samplingRate = r.SamplingRate
		a.trials = make([]int, len(r.Layout))
		for i, blk := range r.Layout {
			a.trials[i] = blk.Trials
		}
		a.runs = 1
		return nil
	}

	if !a.layout.Compatible(r.Layout) {
		return errors.ShapeMismatchError("run layout differs from accumulated layout")
	}
	if r.SamplingRate != a.samplingRate {
		return errors.ShapeMismatchError("run sampled at %g Hz, accumulated runs at %g Hz", r.SamplingRate, a.samplingRate)
	}
	ar, ac := a.sum.Dims()
	rr, rc := r.Coefficients.Dims()
	if ar != rr || ac != rc {
		return errors.ShapeMismatchError("run coefficients are %dx%d, accumulated %dx%d", rr, rc, ar, ac)
	}

	a.sum.Add(a.sum, r.Coefficients)
	for i, blk := range r.Layout {
		a.trials[i] += blk.Trials
	}
	a.runs++
	return nil
}

// Merge folds another accumulator into a.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other == nil || other.sum == nil {
		return nil
	}
	if err := a.Add(other.Result()); err != nil {
		return err
	}
	a.runs += other.runs - 1
	return nil
}

// Runs returns the number of accumulated runs.
func (a *Accumulator) Runs() int {
	return a.runs
}

// Result returns the summed coefficients as a Result, or nil when empty.
// Trial counts are summed per block.
func (a *Accumulator) Result() *Result {
	if a.sum == nil {
		return nil
	}
	layout := append(Layout(nil), a.layout...)
	for i := range layout {
		layout[i].Trials = a.trials[i]
	}
	return &Result{
		Coefficients: mat.DenseCopyOf(a.sum),
		Layout:       layout,
		SamplingRate: a.samplingRate,
	}
}

// Responses reshapes the accumulated sum.
func (a *Accumulator) Responses() (map[string]rerp.FittedResponse, error) {
	res := a.Result()
	if res == nil {
		return nil, errors.EmptyDesignError("no runs accumulated")
	}
	return res.Responses()
}

// GrandAverage returns the elementwise mean of same-shaped coefficient matrices.
func GrandAverage(coefs []*mat.Dense) (*mat.Dense, error) {
	if len(coefs) == 0 {
		return nil, errors.EmptyDesignError("no coefficient matrices to average")
	}
	r, c := coefs[0].Dims()
	sum := mat.NewDense(r, c, nil)
	for i, m := range coefs {
		mr, mc := m.Dims()
		if mr != r || mc != c {
			return nil, errors.ShapeMismatchError("matrix %d is %dx%d, expected %dx%d", i, mr, mc, r, c)
		}
		sum.Add(sum, m)
	}
	sum.Scale(1/float64(len(coefs)), sum)
	return sum, nil
}
