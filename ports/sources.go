package ports

import (
	"context"

	"brainlm/domain/rerp"
	"brainlm/internal/deconv"
	"brainlm/internal/reading"

	"gonum.org/v1/gonum/mat"
)

// RunFiles locates the inputs of one EEG recording
type RunFiles struct {
	Signal string // cleaned signal, samples×channels
	Events string // event table
	Words  string // stimulus word list
}

// Recording is a cleaned EEG run ready for regression
type Recording struct {
	Signal       *mat.Dense // channels×samples
	Channels     []string
	Events       rerp.EventTable
	SamplingRate float64
	Artifacts    []deconv.Interval
}

// SignalSource supplies cleaned multichannel recordings and their events.
// Cleaning (interpolation, artifact removal) happens behind this boundary.
type SignalSource interface {
	LoadRecording(ctx context.Context, run RunFiles, eventType string) (*Recording, error)
}

// TextSource reads stimulus word lists
type TextSource interface {
	ReadWords(ctx context.Context, path string) ([]string, error)
}

// CovariateSource computes one surprisal value per word with a language model.
// Implementations must return exactly len(words) values.
type CovariateSource interface {
	Surprisal(ctx context.Context, model string, words []string, contextLength int) ([]float64, error)
}

// ReadingSource loads eye-tracking reading measures
type ReadingSource interface {
	ReadReadingData(ctx context.Context, path string, columns ReadingColumns) (reading.Table, error)
}

// ReadingColumns names the identifying columns of a reading data file.
// Measures lists the measure columns to load; empty loads every other column.
type ReadingColumns struct {
	Subject  string
	Word     string
	Measures []string
}

// DirectoryLister enumerates the recordings, event tables or word lists in a
// directory, sorted by name with hidden entries skipped.
type DirectoryLister interface {
	List(ctx context.Context, dir string) ([]string, error)
}
