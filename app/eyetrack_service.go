package app

import (
	"context"
	"fmt"
	"path/filepath"

	"brainlm/internal/errors"
	"brainlm/internal/logging"
	"brainlm/internal/reading"
	"brainlm/internal/regression"
	"brainlm/models"
	"brainlm/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

// AggregateSubject labels scores of the across-subject mean
const AggregateSubject = "aggregate"

// Five-number summary row labels
const (
	SummaryMin    = "min"
	SummaryQ1     = "q1"
	SummaryMedian = "median"
	SummaryQ3     = "q3"
	SummaryMax    = "max"
)

// ReadingSettings configures the eye-tracking model comparison
type ReadingSettings struct {
	Columns       ports.ReadingColumns
	MetricColumn  string
	Subjects      []string // empty uses every subject in the file
	Threshold     float64
	OutlierSD     float64
	WordLimit     int // aggregated mode only; 0 keeps every word
	Folds         int
	Model         string
	ContextLength int
}

// SubjectScores holds one subject's cross-validated scores per measure
type SubjectScores struct {
	Subject   string
	Base      []float64
	Surprisal []float64
}

// IndividualResult is the outcome of the per-subject comparison
type IndividualResult struct {
	Run      *models.AnalysisRun
	Measures []string
	Subjects []SubjectScores
	// Summaries holds one five-number table per feature set
	Summaries []models.ScoreTable
}

// AggregatedResult is the outcome of the across-subject comparison
type AggregatedResult struct {
	Run   *models.AnalysisRun
	Table models.ScoreTable
}

// EyeTrackService compares lexical and lexical+surprisal models of reading
// measures with K-fold cross-validation
type EyeTrackService struct {
	source     ports.ReadingSource
	covariates ports.CovariateSource
	exporter   ports.ResultExporter
	repo       ports.ResultRepository
	settings   ReadingSettings
	logger     *logging.Logger
}

// NewEyeTrackService creates an eye-tracking service. exporter and repo may be nil.
func NewEyeTrackService(
	source ports.ReadingSource,
	covariates ports.CovariateSource,
	exporter ports.ResultExporter,
	repo ports.ResultRepository,
	settings ReadingSettings,
	logger *logging.Logger,
) *EyeTrackService {
	if settings.Folds == 0 {
		settings.Folds = regression.DefaultFolds
	}
	return &EyeTrackService{
		source:     source,
		covariates: covariates,
		exporter:   exporter,
		repo:       repo,
		settings:   settings,
		logger:     logger.With("EyeTrackService"),
	}
}

// Aggregated averages the subjects word by word, preprocesses the mean
// measures and scores both feature sets on the first WordLimit words.
func (s *EyeTrackService) Aggregated(ctx context.Context, path, output string) (*AggregatedResult, error) {
	subjects, err := s.loadSubjects(ctx, path)
	if err != nil {
		return nil, err
	}
	mean, err := reading.Aggregate(subjects)
	if err != nil {
		return nil, err
	}
	mean, err = s.attachSurprisal(ctx, mean)
	if err != nil {
		return nil, err
	}
	prepared, err := s.preprocess(mean)
	if err != nil {
		return nil, err
	}
	prepared = reading.Head(prepared, s.settings.WordLimit)

	base, surprisal, err := s.compare(prepared)
	if err != nil {
		return nil, err
	}

	difference := make([]float64, len(base))
	for j := range base {
		difference[j] = surprisal[j] - base[j]
	}
	table := models.ScoreTable{
		Title:    s.settings.Model,
		Measures: append([]string(nil), prepared.Measures...),
		Rows: []models.ScoreRow{
			{Label: models.FeatureSetBase, Values: base},
			{Label: models.FeatureSetSurprisal, Values: surprisal},
			{Label: models.FeatureSetDifference, Values: difference},
		},
	}

	run := s.newRun(models.AnalysisReadingAggregated, len(subjects))
	if err := s.export(output, run, table); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, run, table.Records(run.ID, AggregateSubject)); err != nil {
		return nil, err
	}

	s.logger.Info("Aggregated comparison over %d subjects and %d words done", len(subjects), prepared.Len())
	return &AggregatedResult{Run: run, Table: table}, nil
}

// Individual scores both feature sets for every subject separately and
// summarizes the score distribution per measure.
func (s *EyeTrackService) Individual(ctx context.Context, path, output string) (*IndividualResult, error) {
	subjects, err := s.loadSubjects(ctx, path)
	if err != nil {
		return nil, err
	}

	result := &IndividualResult{Measures: append([]string(nil), subjects[0].Measures...)}
	var records []models.ScoreRecord
	run := s.newRun(models.AnalysisReadingIndividual, len(subjects))

	for _, subject := range subjects {
		id := subject.Records[0].Subject
		tagged, err := s.attachSurprisal(ctx, subject)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %s", id)
		}
		prepared, err := s.preprocess(tagged)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %s", id)
		}
		base, surprisal, err := s.compare(prepared)
		if err != nil {
			return nil, errors.Wrapf(err, "subject %s", id)
		}
		result.Subjects = append(result.Subjects, SubjectScores{Subject: id, Base: base, Surprisal: surprisal})

		table := models.ScoreTable{
			Measures: result.Measures,
			Rows: []models.ScoreRow{
				{Label: models.FeatureSetBase, Values: base},
				{Label: models.FeatureSetSurprisal, Values: surprisal},
			},
		}
		records = append(records, table.Records(run.ID, id)...)
		s.logger.Debug("Subject %s: %d words scored", id, prepared.Len())
	}

	for _, set := range []string{models.FeatureSetBase, models.FeatureSetSurprisal} {
		summary, err := summarize(set, result.Measures, result.Subjects)
		if err != nil {
			return nil, err
		}
		result.Summaries = append(result.Summaries, summary)
	}
	result.Run = run

	if err := s.export(output, run, result.Summaries...); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, run, records); err != nil {
		return nil, err
	}

	s.logger.Info("Individual comparison over %d subjects done", len(subjects))
	return result, nil
}

// loadSubjects reads the reading data and splits it per subject
func (s *EyeTrackService) loadSubjects(ctx context.Context, path string) ([]reading.Table, error) {
	table, err := s.source.ReadReadingData(ctx, path, s.settings.Columns)
	if err != nil {
		return nil, err
	}
	ids := s.settings.Subjects
	if len(ids) == 0 {
		ids = reading.Subjects(table)
	}
	if len(ids) == 0 {
		return nil, errors.InvalidInput("reading data has no subjects")
	}
	return reading.SplitBySubject(table, ids)
}

// preprocess removes outliers, then fixations below the lexical threshold
func (s *EyeTrackService) preprocess(t reading.Table) (reading.Table, error) {
	cleaned, err := reading.RemoveOutliers(t, s.settings.MetricColumn, s.settings.OutlierSD)
	if err != nil {
		return reading.Table{}, err
	}
	return reading.ApplyThreshold(cleaned, s.settings.MetricColumn, s.settings.Threshold)
}

// attachSurprisal scores the full text before any word is filtered out, so
// every subject asks the covariate source for the same word sequence.
func (s *EyeTrackService) attachSurprisal(ctx context.Context, t reading.Table) (reading.Table, error) {
	values, err := s.covariates.Surprisal(ctx, s.settings.Model, t.Words(), s.settings.ContextLength)
	if err != nil {
		return reading.Table{}, err
	}
	return reading.WithSurprisal(t, values)
}

// compare returns per-measure R² of the lexical and lexical+surprisal models
func (s *EyeTrackService) compare(t reading.Table) (base, withSurprisal []float64, err error) {
	if t.Len() == 0 {
		return nil, nil, errors.EmptyDesignError("no words left after preprocessing")
	}
	lengths, frequencies := reading.Lexical(t.Words())
	y := reading.MeasureMatrix(t)

	base, err = s.score(reading.FeatureMatrix(lengths, frequencies), y)
	if err != nil {
		return nil, nil, errors.Wrap(err, "scoring lexical model")
	}
	withSurprisal, err = s.score(reading.FeatureMatrix(t.Surprisals(), lengths, frequencies), y)
	if err != nil {
		return nil, nil, errors.Wrap(err, "scoring surprisal model")
	}
	return base, withSurprisal, nil
}

func (s *EyeTrackService) score(x, y *mat.Dense) ([]float64, error) {
	return regression.KFoldScore(s.settings.Folds, x, y, regression.NewLinear())
}

func (s *EyeTrackService) newRun(kind models.AnalysisKind, subjects int) *models.AnalysisRun {
	run := models.NewAnalysisRun(kind, s.settings.Model, s.settings.ContextLength, map[string]interface{}{
		"metric":     s.settings.MetricColumn,
		"threshold":  s.settings.Threshold,
		"outlier_sd": s.settings.OutlierSD,
		"word_limit": s.settings.WordLimit,
		"folds":      s.settings.Folds,
	})
	run.Recordings = subjects
	return run
}

func (s *EyeTrackService) export(output string, run *models.AnalysisRun, tables ...models.ScoreTable) error {
	if s.exporter == nil || output == "" {
		return nil
	}
	path := filepath.Join(output, fmt.Sprintf("scores_%s_%s.xlsx", run.Kind, s.settings.Model))
	if err := s.exporter.WriteScores(path, tables...); err != nil {
		return errors.Wrap(err, "failed to export scores")
	}
	return nil
}

func (s *EyeTrackService) persist(ctx context.Context, run *models.AnalysisRun, records []models.ScoreRecord) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.SaveRun(ctx, run); err != nil {
		return err
	}
	return s.repo.SaveScores(ctx, records)
}

// summarize builds the five-number summary of one feature set across subjects
func summarize(set string, measures []string, subjects []SubjectScores) (models.ScoreTable, error) {
	labels := []string{SummaryMin, SummaryQ1, SummaryMedian, SummaryQ3, SummaryMax}
	rows := make([]models.ScoreRow, len(labels))
	for i, l := range labels {
		rows[i] = models.ScoreRow{Label: l, Values: make([]float64, len(measures))}
	}

	for j := range measures {
		col := make(stats.Float64Data, len(subjects))
		for i, sub := range subjects {
			if set == models.FeatureSetBase {
				col[i] = sub.Base[j]
			} else {
				col[i] = sub.Surprisal[j]
			}
		}
		lo, err := col.Min()
		if err != nil {
			return models.ScoreTable{}, errors.Wrapf(err, "minimum of %s", measures[j])
		}
		hi, err := col.Max()
		if err != nil {
			return models.ScoreTable{}, errors.Wrapf(err, "maximum of %s", measures[j])
		}
		median, err := col.Median()
		if err != nil {
			return models.ScoreTable{}, errors.Wrapf(err, "median of %s", measures[j])
		}
		q1, err := stats.PercentileNearestRank(col, 25)
		if err != nil {
			return models.ScoreTable{}, errors.Wrapf(err, "first quartile of %s", measures[j])
		}
		q3, err := stats.PercentileNearestRank(col, 75)
		if err != nil {
			return models.ScoreTable{}, errors.Wrapf(err, "third quartile of %s", measures[j])
		}
		rows[0].Values[j] = lo
		rows[1].Values[j] = q1
		rows[2].Values[j] = median
		rows[3].Values[j] = q3
		rows[4].Values[j] = hi
	}
	return models.ScoreTable{Title: set, Measures: append([]string(nil), measures...), Rows: rows}, nil
}
