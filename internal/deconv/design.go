// Package deconv turns an event stream and a continuous multichannel signal
// into a time-lagged ridge regression and reshapes the fit into one response
// curve per condition.
package deconv

import (
	"brainlm/domain/rerp"
	"brainlm/internal/errors"
	"brainlm/internal/sparse"
)

// Block locates one condition's lag columns inside the design matrix.
type Block struct {
	Condition string
	Lags      rerp.LagWindow
	Offset    int // first design column of the block
	Trials    int // events that placed a diagonal in the block
}

// Layout is the ordered column layout of a design matrix. It is the only
// source of column offsets used when slicing coefficients back apart.
type Layout []Block

// Columns returns the total column count.
func (l Layout) Columns() int {
	if len(l) == 0 {
		return 0
	}
	last := l[len(l)-1]
	return last.Offset + last.Lags.NLags()
}

// Compatible reports whether two layouts produce identically arranged coefficients.
func (l Layout) Compatible(other Layout) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i].Condition != other[i].Condition || l[i].Lags != other[i].Lags || l[i].Offset != other[i].Offset {
			return false
		}
	}
	return true
}

// Design is a sparse design matrix aligned to the signal's sample axis.
type Design struct {
	X      *sparse.CSR
	Layout Layout
}

// BuildDesign places one diagonal per event occurrence for every registered
// condition. An event at sample s contributes row s+lag to column lag-Min, so
// the block's lag-0 column lines up with the event's own sample. Rows falling
// outside [0, nSamples) are clipped.
func BuildDesign(nSamples int, sfreq float64, events rerp.EventTable, reg *rerp.Registry) (*Design, error) {
	if nSamples <= 0 {
		return nil, errors.ShapeMismatchError("signal has no samples")
	}
	if max := events.MaxSample(); max >= nSamples {
		return nil, errors.ShapeMismatchError("event at sample %d lies beyond the %d-sample signal", max, nSamples)
	}
	if err := reg.CheckCovariates(events.Len()); err != nil {
		return nil, err
	}

	plan, err := rerp.ResolveLags(reg, sfreq)
	if err != nil {
		return nil, err
	}

	blocks := make([]*sparse.CSR, 0, len(plan))
	layout := make(Layout, 0, len(plan))
	offset := 0
	for _, cl := range plan {
		onsets, values := occurrences(cl.Condition, events)
		blocks = append(blocks, diagonalBlock(nSamples, cl.Lags, onsets, values))
		layout = append(layout, Block{
			Condition: cl.Condition.Name,
			Lags:      cl.Lags,
			Offset:    offset,
			Trials:    len(onsets),
		})
		offset += cl.Lags.NLags()
	}

	return &Design{X: sparse.HStack(blocks...), Layout: layout}, nil
}

// occurrences returns the onset samples and diagonal values of a condition.
func occurrences(c rerp.Condition, events rerp.EventTable) ([]int, []float64) {
	var onsets []int
	var values []float64
	switch c.Kind {
	case rerp.EventLocked:
		for _, ev := range events.WithCodes(c.Codes) {
			onsets = append(onsets, ev.Sample)
			values = append(values, 1)
		}
	case rerp.CovariateDriven:
		for i, v := range c.Values {
			if v == 0 {
				continue
			}
			onsets = append(onsets, events.At(i).Sample)
			values = append(values, v)
		}
	}
	return onsets, values
}

func diagonalBlock(nSamples int, lags rerp.LagWindow, onsets []int, values []float64) *sparse.CSR {
	nLags := lags.NLags()
	coo := sparse.NewCOO(nSamples, nLags)
	for e, onset := range onsets {
		for k := 0; k < nLags; k++ {
			row := onset + lags.Min + k
			if row < 0 || row >= nSamples {
				continue
			}
			coo.Add(row, k, values[e])
		}
	}
	return coo.ToCSR()
}
