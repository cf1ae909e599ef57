package app

import (
	"context"
	"math"
	"slices"
	"sync/atomic"

	"brainlm/domain/rerp"
	"brainlm/internal/errors"
	"brainlm/models"
	"brainlm/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"gonum.org/v1/gonum/mat"
)

// MockResultRepository records persistence calls
type MockResultRepository struct {
	mock.Mock
}

func (m *MockResultRepository) SaveRun(ctx context.Context, run *models.AnalysisRun) error {
	return m.Called(ctx, run).Error(0)
}

func (m *MockResultRepository) SaveScores(ctx context.Context, scores []models.ScoreRecord) error {
	return m.Called(ctx, scores).Error(0)
}

func (m *MockResultRepository) SaveResponses(ctx context.Context, summaries []models.ResponseSummary) error {
	return m.Called(ctx, summaries).Error(0)
}

func (m *MockResultRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(*models.AnalysisRun), args.Error(1)
}

func (m *MockResultRepository) ListRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*models.AnalysisRun), args.Error(1)
}

func (m *MockResultRepository) GetScores(ctx context.Context, runID uuid.UUID) ([]models.ScoreRecord, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]models.ScoreRecord), args.Error(1)
}

func (m *MockResultRepository) GetResponses(ctx context.Context, runID uuid.UUID) ([]models.ResponseSummary, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]models.ResponseSummary), args.Error(1)
}

// MockExporter records export calls
type MockExporter struct {
	mock.Mock
}

func (m *MockExporter) WriteResponses(path string, channels []string, responses []rerp.FittedResponse) error {
	return m.Called(path, channels, responses).Error(0)
}

func (m *MockExporter) WriteScores(path string, tables ...models.ScoreTable) error {
	return m.Called(path, tables).Error(0)
}

// fakeSignals serves the same synthetic recording for every run unless
// channels maps a signal path to other channel names.
type fakeSignals struct {
	recording *ports.Recording
	channels  map[string][]string
	loads     atomic.Int32
}

func (f *fakeSignals) LoadRecording(ctx context.Context, run ports.RunFiles, eventType string) (*ports.Recording, error) {
	f.loads.Add(1)
	rec := *f.recording
	rec.Signal = mat.DenseCopyOf(f.recording.Signal)
	if ch, ok := f.channels[run.Signal]; ok {
		rec.Channels = ch
	}
	return &rec, nil
}

// fakeTexts serves words for every path unless byPath lists the path.
type fakeTexts struct {
	words  []string
	byPath map[string][]string
}

func (f fakeTexts) ReadWords(ctx context.Context, path string) ([]string, error) {
	if w, ok := f.byPath[path]; ok {
		return append([]string(nil), w...), nil
	}
	return append([]string(nil), f.words...), nil
}

// fakeCovariates derives a surprisal value from each word and its position.
// short drops the last value to break the one-value-per-word contract.
type fakeCovariates struct {
	short bool
}

func (f fakeCovariates) Surprisal(ctx context.Context, model string, words []string, contextLength int) ([]float64, error) {
	out := make([]float64, len(words))
	for i, w := range words {
		out[i] = positionSurprisal(w, i)
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// textCovariates only scores one known text, like a precomputed table.
type textCovariates struct {
	text []string
}

func (f textCovariates) Surprisal(ctx context.Context, model string, words []string, contextLength int) ([]float64, error) {
	if !slices.Equal(words, f.text) {
		return nil, errors.ShapeMismatchError("no precomputed text for %d words", len(words))
	}
	return fakeCovariates{}.Surprisal(ctx, model, words, contextLength)
}

func positionSurprisal(word string, pos int) float64 {
	return float64((len(word)*3+pos)%7) + 0.5
}

type fakeLister struct {
	dirs map[string][]string
}

func (f fakeLister) List(ctx context.Context, dir string) ([]string, error) {
	return f.dirs[dir], nil
}

// syntheticRecording builds a 2-channel recording with nEvents irregular
// word onsets.
func syntheticRecording(nEvents int) *ports.Recording {
	const n = 500
	events := make([]rerp.Event, nEvents)
	sample := 15
	for e := range events {
		events[e] = rerp.Event{Sample: sample, Code: 1}
		sample += 18 + (e*5)%7
	}
	table, err := rerp.NewEventTable(events)
	if err != nil {
		panic(err)
	}

	signal := mat.NewDense(2, n, nil)
	for ch := 0; ch < 2; ch++ {
		for t := 0; t < n; t++ {
			signal.Set(ch, t, 0.2*math.Sin(0.07*float64(t*(ch+1))))
		}
		for _, ev := range events {
			for k := 0; k < 8 && ev.Sample+k < n; k++ {
				signal.Set(ch, ev.Sample+k, signal.At(ch, ev.Sample+k)+float64(ch+1)*math.Exp(-float64(k)/3))
			}
		}
	}
	return &ports.Recording{
		Signal:       signal,
		Channels:     []string{"Fz", "Cz"},
		Events:       table,
		SamplingRate: 100,
	}
}

func wordList(n int) []string {
	vocab := []string{"the", "reader", "saw", "a", "remarkable", "cat", "on", "window", "sill"}
	words := make([]string, n)
	for i := range words {
		words[i] = vocab[(i*7)%len(vocab)]
	}
	return words
}
