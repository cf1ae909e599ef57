package app

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"time"

	"brainlm/domain/rerp"
	"brainlm/internal/deconv"
	"brainlm/internal/errors"
	"brainlm/internal/logging"
	"brainlm/models"
	"brainlm/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// SurprisalCondition names the covariate-driven condition of the EEG analysis
const SurprisalCondition = "Surprisal"

// EEGSettings configures the EEG regression runs
type EEGSettings struct {
	Window        rerp.Window
	Options       deconv.Options
	EventType     string
	Model         string
	ContextLength int
	Workers       int
	// GrandAverage averages subject sums in cross-subject mode instead of
	// summing every run.
	GrandAverage bool
}

// EEGResult is the combined outcome of one EEG analysis
type EEGResult struct {
	Run        *models.AnalysisRun
	Channels   []string
	Responses  []rerp.FittedResponse
	Recordings int
}

// EEGService fits rERPs for single runs, single subjects and whole studies
type EEGService struct {
	signals    ports.SignalSource
	texts      ports.TextSource
	covariates ports.CovariateSource
	lister     ports.DirectoryLister
	exporter   ports.ResultExporter
	repo       ports.ResultRepository
	settings   EEGSettings
	logger     *logging.Logger
}

// NewEEGService creates an EEG service. exporter and repo may be nil.
func NewEEGService(
	signals ports.SignalSource,
	texts ports.TextSource,
	covariates ports.CovariateSource,
	lister ports.DirectoryLister,
	exporter ports.ResultExporter,
	repo ports.ResultRepository,
	settings EEGSettings,
	logger *logging.Logger,
) *EEGService {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	return &EEGService{
		signals:    signals,
		texts:      texts,
		covariates: covariates,
		lister:     lister,
		exporter:   exporter,
		repo:       repo,
		settings:   settings,
		logger:     logger.With("EEGService"),
	}
}

// fittedRun is one run's regression result with its channel names
type fittedRun struct {
	result   *deconv.Result
	channels []string
}

// SingleRun fits one recording
func (s *EEGService) SingleRun(ctx context.Context, run ports.RunFiles, output string) (*EEGResult, error) {
	fitted, err := s.fitRun(ctx, run)
	if err != nil {
		return nil, err
	}
	acc := deconv.NewAccumulator()
	if err := acc.Add(fitted.result); err != nil {
		return nil, err
	}
	return s.finish(ctx, models.AnalysisEEGSingleRun, acc, fitted.channels, output)
}

// SingleSubject fits every run in signalDir and sums the coefficients. Runs
// are paired by sorted position with the files in eventsDir and wordsDir.
func (s *EEGService) SingleSubject(ctx context.Context, signalDir, eventsDir, wordsDir, output string) (*EEGResult, error) {
	runs, err := s.planRuns(ctx, signalDir, eventsDir, wordsDir)
	if err != nil {
		return nil, err
	}
	acc, channels, err := s.fitAll(ctx, runs)
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, models.AnalysisEEGSingleSubject, acc, channels, output)
}

// CrossSubject fits every run of every subject directory under subjectsDir
func (s *EEGService) CrossSubject(ctx context.Context, subjectsDir, eventsDir, wordsDir, output string) (*EEGResult, error) {
	subjects, err := s.lister.List(ctx, subjectsDir)
	if err != nil {
		return nil, err
	}
	if len(subjects) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("no subject directories in %s", subjectsDir))
	}

	total := deconv.NewAccumulator()
	var channels []string
	var subjectSums []*mat.Dense
	for _, subject := range subjects {
		runs, err := s.planRuns(ctx, filepath.Join(subjectsDir, subject), eventsDir, wordsDir)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %s", subject)
		}
		acc, ch, err := s.fitAll(ctx, runs)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %s", subject)
		}
		if channels == nil {
			channels = ch
		} else if !slices.Equal(channels, ch) {
			return nil, errors.ShapeMismatchError("subject %s channels differ from the first subject", subject)
		}
		subjectSums = append(subjectSums, acc.Result().Coefficients)
		if err := total.Merge(acc); err != nil {
			return nil, errors.Wrapf(err, "subject %s", subject)
		}
		s.logger.Info("Subject %s: %d runs fitted", subject, acc.Runs())
	}

	if s.settings.GrandAverage {
		avg, err := deconv.GrandAverage(subjectSums)
		if err != nil {
			return nil, err
		}
		summed := total.Result()
		averaged := deconv.NewAccumulator()
		if err := averaged.Add(&deconv.Result{
			Coefficients: avg,
			Layout:       summed.Layout,
			SamplingRate: summed.SamplingRate,
			Samples:      summed.Samples,
		}); err != nil {
			return nil, err
		}
		return s.finishWith(ctx, models.AnalysisEEGCrossSubject, averaged, channels, total.Runs(), output)
	}
	return s.finish(ctx, models.AnalysisEEGCrossSubject, total, channels, output)
}

// planRuns pairs the sorted recordings of signalDir with the sorted event and
// word files.
func (s *EEGService) planRuns(ctx context.Context, signalDir, eventsDir, wordsDir string) ([]ports.RunFiles, error) {
	signals, err := s.lister.List(ctx, signalDir)
	if err != nil {
		return nil, err
	}
	events, err := s.lister.List(ctx, eventsDir)
	if err != nil {
		return nil, err
	}
	words, err := s.lister.List(ctx, wordsDir)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, errors.InvalidInput(fmt.Sprintf("no recordings in %s", signalDir))
	}
	if len(events) < len(signals) || len(words) < len(signals) {
		return nil, errors.ShapeMismatchError("%d recordings in %s but %d event files and %d word lists",
			len(signals), signalDir, len(events), len(words))
	}

	runs := make([]ports.RunFiles, len(signals))
	for i, name := range signals {
		runs[i] = ports.RunFiles{
			Signal: filepath.Join(signalDir, name),
			Events: filepath.Join(eventsDir, events[i]),
			Words:  filepath.Join(wordsDir, words[i]),
		}
	}
	return runs, nil
}

// fitAll fits runs with up to Workers in parallel. Each run gets its own
// result slot; the sum is taken in run order once all fits finished.
func (s *EEGService) fitAll(ctx context.Context, runs []ports.RunFiles) (*deconv.Accumulator, []string, error) {
	fitted := make([]fittedRun, len(runs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.settings.Workers)
	for i, run := range runs {
		g.Go(func() error {
			r, err := s.fitRun(gctx, run)
			if err != nil {
				return errors.Wrapf(err, "run %s", filepath.Base(run.Signal))
			}
			fitted[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	acc := deconv.NewAccumulator()
	channels := fitted[0].channels
	for i, f := range fitted {
		if !slices.Equal(channels, f.channels) {
			return nil, nil, errors.ShapeMismatchError("run %s channels differ from the first run", filepath.Base(runs[i].Signal))
		}
		if err := acc.Add(f.result); err != nil {
			return nil, nil, errors.Wrapf(err, "run %s", filepath.Base(runs[i].Signal))
		}
	}
	return acc, channels, nil
}

// fitRun computes surprisal for the run's words and regresses the recording
// on the event-locked and surprisal conditions.
func (s *EEGService) fitRun(ctx context.Context, run ports.RunFiles) (*fittedRun, error) {
	start := time.Now()

	words, err := s.texts.ReadWords(ctx, run.Words)
	if err != nil {
		return nil, err
	}
	surprisal, err := s.covariates.Surprisal(ctx, s.settings.Model, words, s.settings.ContextLength)
	if err != nil {
		return nil, err
	}
	if len(surprisal) != len(words) {
		return nil, errors.ShapeMismatchError("covariate source returned %d values for %d words", len(surprisal), len(words))
	}

	rec, err := s.signals.LoadRecording(ctx, run, s.settings.EventType)
	if err != nil {
		return nil, err
	}
	if len(rec.Events.WithCodes([]int{1})) == 0 {
		s.logger.Warn("%s has no %s events with code 1, its event-locked response is empty",
			filepath.Base(run.Signal), s.settings.EventType)
	}

	reg, err := rerp.NewRegistry(s.settings.Window,
		rerp.NewEventCondition(s.settings.EventType, 1),
		rerp.NewCovariateCondition(SurprisalCondition, surprisal),
	)
	if err != nil {
		return nil, err
	}

	opts := s.settings.Options
	opts.SamplingRate = rec.SamplingRate
	opts.Artifacts = rec.Artifacts
	result, err := deconv.Fit(rec.Signal, rec.Events, reg, opts)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Fitted %s: %d events, %d rows, %d columns in %v",
		filepath.Base(run.Signal), rec.Events.Len(), result.Samples, result.Layout.Columns(), time.Since(start))
	return &fittedRun{result: result, channels: rec.Channels}, nil
}

func (s *EEGService) finish(ctx context.Context, kind models.AnalysisKind, acc *deconv.Accumulator, channels []string, output string) (*EEGResult, error) {
	return s.finishWith(ctx, kind, acc, channels, acc.Runs(), output)
}

// finishWith reshapes the accumulated coefficients, then exports and
// persists them when an exporter or repository is configured.
func (s *EEGService) finishWith(ctx context.Context, kind models.AnalysisKind, acc *deconv.Accumulator, channels []string, recordings int, output string) (*EEGResult, error) {
	byName, err := acc.Responses()
	if err != nil {
		return nil, err
	}
	responses := deconv.Ordered(byName, acc.Result().Layout)

	run := models.NewAnalysisRun(kind, s.settings.Model, s.settings.ContextLength, map[string]interface{}{
		"tmin":          s.settings.Window.TMin,
		"tmax":          s.settings.Window.TMax,
		"lambda":        s.settings.Options.Lambda,
		"decimation":    s.settings.Options.Decimation,
		"event_type":    s.settings.EventType,
		"grand_average": s.settings.GrandAverage && kind == models.AnalysisEEGCrossSubject,
	})
	run.Recordings = recordings

	if s.exporter != nil && output != "" {
		path := filepath.Join(output, fmt.Sprintf("rerp_%s_%s.xlsx", kind, s.settings.Model))
		if err := s.exporter.WriteResponses(path, channels, responses); err != nil {
			return nil, errors.Wrap(err, "failed to export responses")
		}
	}

	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, run); err != nil {
			return nil, err
		}
		if err := s.repo.SaveResponses(ctx, Summarize(run, channels, responses)); err != nil {
			return nil, err
		}
	}

	s.logger.Info("%s finished: %d recordings, %d conditions", kind, recordings, len(responses))
	return &EEGResult{Run: run, Channels: channels, Responses: responses, Recordings: recordings}, nil
}

// Summarize reduces each response to its largest absolute coefficient
func Summarize(run *models.AnalysisRun, channels []string, responses []rerp.FittedResponse) []models.ResponseSummary {
	out := make([]models.ResponseSummary, 0, len(responses))
	for _, resp := range responses {
		sum := models.ResponseSummary{
			RunID:     run.ID,
			Condition: resp.Condition,
			Trials:    resp.TrialCount,
			Lags:      len(resp.TimeAxis),
		}
		best := -1.0
		rows, cols := resp.Coefficients.Dims()
		for ch := 0; ch < rows; ch++ {
			for k := 0; k < cols; k++ {
				v := resp.Coefficients.At(ch, k)
				if math.Abs(v) > best {
					best = math.Abs(v)
					sum.PeakAmplitude = v
					sum.PeakLatency = resp.TimeAxis[k]
					if ch < len(channels) {
						sum.PeakChannel = channels[ch]
					}
				}
			}
		}
		out = append(out, sum)
	}
	return out
}
