package rerp

import "gonum.org/v1/gonum/mat"

// FittedResponse is the recovered response curve of one condition.
// Coefficients has one row per channel and one column per lag; TimeAxis holds
// the onset-relative time of each column in seconds.
type FittedResponse struct {
	Condition    string
	Coefficients *mat.Dense
	TimeAxis     []float64
	TrialCount   int
}

// Channels returns the number of channel rows.
func (r FittedResponse) Channels() int {
	rows, _ := r.Coefficients.Dims()
	return rows
}

// Curve returns the response of one channel across lags.
func (r FittedResponse) Curve(channel int) []float64 {
	return mat.Row(nil, channel, r.Coefficients)
}
