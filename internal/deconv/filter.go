package deconv

import (
	"sort"

	"brainlm/internal/errors"
	"brainlm/internal/sparse"

	"gonum.org/v1/gonum/mat"
)

// Interval is an artifact segment [Start, End) in samples.
type Interval struct {
	Start int
	End   int
}

// Filtered is the row-aligned regression input.
// X is samples×columns; Y is samples×channels.
type Filtered struct {
	X    *sparse.CSR
	Y    *mat.Dense
	Rows []int // original sample index of every kept row
}

// FilterSamples keeps the design rows that at least one predictor touches,
// minus any row inside an artifact interval, and takes the same samples from
// signal (channels×samples). Order is preserved.
func FilterSamples(x *sparse.CSR, signal mat.Matrix, artifacts []Interval) (*Filtered, error) {
	nRows, _ := x.Dims()
	channels, nSamples := signal.Dims()
	if nRows != nSamples {
		return nil, errors.ShapeMismatchError(
			"design has %d rows but signal has %d samples", nRows, nSamples)
	}
	for _, iv := range artifacts {
		if iv.End < iv.Start {
			return nil, errors.ConfigurationError("artifact interval [%d, %d) is inverted", iv.Start, iv.End)
		}
	}

	kept := x.NonZeroRows()
	if len(artifacts) > 0 {
		kept = dropIntervals(kept, artifacts)
	}
	if len(kept) == 0 {
		return nil, errors.EmptyDesignError(
			"no sample of %d survives filtering", nRows)
	}

	y := mat.NewDense(len(kept), channels, nil)
	for r, s := range kept {
		for ch := 0; ch < channels; ch++ {
			y.Set(r, ch, signal.At(ch, s))
		}
	}

	return &Filtered{
		X:    x.SelectRows(kept),
		Y:    y,
		Rows: kept,
	}, nil
}

// dropIntervals removes every row inside any interval. rows must be ascending.
func dropIntervals(rows []int, artifacts []Interval) []int {
	ivs := append([]Interval(nil), artifacts...)
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Start < ivs[j].Start })

	out := make([]int, 0, len(rows))
	k := 0
	for _, r := range rows {
		for k < len(ivs) && ivs[k].End <= r {
			k++
		}
		if inAny(r, ivs[k:]) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// inAny checks the remaining, start-sorted intervals that could still cover r.
func inAny(r int, ivs []Interval) bool {
	for _, iv := range ivs {
		if iv.Start > r {
			return false
		}
		if r < iv.End {
			return true
		}
	}
	return false
}
