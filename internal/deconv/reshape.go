package deconv

import (
	"brainlm/domain/rerp"
	"brainlm/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Reshape slices channels×columns coefficients back into one response per
// condition, walking the layout in build order.
func Reshape(coef *mat.Dense, layout Layout, sfreq float64) (map[string]rerp.FittedResponse, error) {
	if sfreq <= 0 {
		return nil, errors.ConfigurationError("sampling rate must be positive, got %v", sfreq)
	}
	channels, cols := coef.Dims()
	if cols != layout.Columns() {
		return nil, errors.ShapeMismatchError(
			"coefficients have %d columns but the layout spans %d", cols, layout.Columns())
	}

	out := make(map[string]rerp.FittedResponse, len(layout))
	cursor := 0
	for _, blk := range layout {
		if blk.Offset != cursor {
			return nil, errors.ShapeMismatchError(
				"block %q starts at column %d, expected %d", blk.Condition, blk.Offset, cursor)
		}
		n := blk.Lags.NLags()
		out[blk.Condition] = rerp.FittedResponse{
			Condition:    blk.Condition,
			Coefficients: mat.DenseCopyOf(coef.Slice(0, channels, cursor, cursor+n)),
			TimeAxis:     blk.Lags.TimeAxis(sfreq),
			TrialCount:   blk.Trials,
		}
		cursor += n
	}
	return out, nil
}

// Ordered returns responses in layout order.
func Ordered(responses map[string]rerp.FittedResponse, layout Layout) []rerp.FittedResponse {
	out := make([]rerp.FittedResponse, 0, len(layout))
	for _, blk := range layout {
		if r, ok := responses[blk.Condition]; ok {
			out = append(out, r)
		}
	}
	return out
}
