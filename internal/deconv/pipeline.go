package deconv

import (
	"brainlm/domain/rerp"
	"brainlm/internal/errors"
	"brainlm/internal/regression"

	"gonum.org/v1/gonum/mat"
)

// Options controls one regression call.
type Options struct {
	SamplingRate float64
	Lambda       float64
	Decimation   int        // 0 or 1 keeps every sample
	FirstSample  int        // subtracted from event samples before decimation
	Artifacts    []Interval // in samples of the decimated signal
}

// DefaultOptions returns the EEG analysis defaults.
func DefaultOptions() Options {
	return Options{
		SamplingRate: 128,
		Lambda:       regression.DefaultRidgeLambda,
		Decimation:   1,
	}
}

// Result is the outcome of one regression call. Coefficients is
// channels×columns and arranged by Layout.
type Result struct {
	Coefficients *mat.Dense
	Layout       Layout
	SamplingRate float64
	Samples      int // rows that entered the fit
}

// Responses reshapes the coefficients per condition.
func (r *Result) Responses() (map[string]rerp.FittedResponse, error) {
	return Reshape(r.Coefficients, r.Layout, r.SamplingRate)
}

// Fit runs resolve → build → filter → ridge on signal (channels×samples).
// Every stage returns a fresh value; nothing is shared between calls.
func Fit(signal mat.Matrix, events rerp.EventTable, reg *rerp.Registry, opts Options) (*Result, error) {
	if !(opts.Lambda > 0) {
		return nil, errors.ConfigurationError("ridge lambda must be positive, got %v", opts.Lambda)
	}
	if opts.SamplingRate <= 0 {
		return nil, errors.ConfigurationError("sampling rate must be positive, got %v", opts.SamplingRate)
	}

	sfreq := opts.SamplingRate
	if opts.Decimation > 1 || opts.FirstSample != 0 {
		factor := opts.Decimation
		if factor < 1 {
			factor = 1
		}
		decimated, err := events.Decimate(factor, opts.FirstSample)
		if err != nil {
			return nil, err
		}
		events = decimated
		signal = DecimateSignal(signal, factor)
		sfreq /= float64(factor)
	}

	_, nSamples := signal.Dims()
	design, err := BuildDesign(nSamples, sfreq, events, reg)
	if err != nil {
		return nil, errors.Wrap(err, "building design matrix")
	}

	filtered, err := FilterSamples(design.X, signal, opts.Artifacts)
	if err != nil {
		return nil, errors.Wrap(err, "filtering samples")
	}

	coef, err := regression.FitRidge(filtered.X, filtered.Y, opts.Lambda)
	if err != nil {
		return nil, errors.Wrap(err, "fitting ridge regression")
	}

	return &Result{
		Coefficients: coef,
		Layout:       design.Layout,
		SamplingRate: sfreq,
		Samples:      len(filtered.Rows),
	}, nil
}

// DecimateSignal keeps every factor-th sample of a channels×samples signal.
func DecimateSignal(signal mat.Matrix, factor int) mat.Matrix {
	if factor <= 1 {
		return signal
	}
	channels, n := signal.Dims()
	kept := (n + factor - 1) / factor
	out := mat.NewDense(channels, kept, nil)
	for ch := 0; ch < channels; ch++ {
		for k := 0; k < kept; k++ {
			out.Set(ch, k, signal.At(ch, k*factor))
		}
	}
	return out
}
