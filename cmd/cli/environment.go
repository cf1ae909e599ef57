package main

import (
	"context"
	"os"
	"strings"

	"brainlm/adapters/excel"
	"brainlm/adapters/files"
	"brainlm/adapters/lm"
	"brainlm/adapters/store"
	"brainlm/app"
	"brainlm/domain/rerp"
	"brainlm/internal/config"
	"brainlm/internal/deconv"
	"brainlm/internal/errors"
	"brainlm/internal/logging"
	"brainlm/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// overrides holds the values of the global flags
type overrides struct {
	model        string
	contextLen   int
	source       string
	output       string
	workers      int
	samplingRate float64
	tmin         float64
	tmax         float64
	lambda       float64
	decimation   int
	eventType    string
	channelFile  string
	metric       string
	subjects     []string
	sheet        string
	threshold    float64
	wordLimit    int
	folds        int
	driver       string
	dsn          string
	logLevel     string
}

// environment is the configuration and logger shared by every command
type environment struct {
	flags  overrides
	cfg    *config.Config
	logger *logging.Logger
}

func (e *environment) bindFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&e.flags.model, "model", "", "Language model name (LM_MODEL)")
	f.IntVar(&e.flags.contextLen, "context", 0, "Language model context length (CONTEXT_LENGTH)")
	f.StringVar(&e.flags.source, "surprisal-source", "", "Surprisal source: table|command|http (SURPRISAL_SOURCE)")
	f.StringVar(&e.flags.output, "output", "", "Directory for exported workbooks, empty disables export (OUTPUT_DIR)")
	f.IntVar(&e.flags.workers, "workers", 0, "Recordings fitted in parallel (WORKERS)")
	f.Float64Var(&e.flags.samplingRate, "sampling-rate", 0, "Signal sampling rate in Hz (SAMPLING_RATE)")
	f.Float64Var(&e.flags.tmin, "tmin", 0, "Response window start in seconds (RERP_TMIN)")
	f.Float64Var(&e.flags.tmax, "tmax", 0, "Response window end in seconds (RERP_TMAX)")
	f.Float64Var(&e.flags.lambda, "lambda", 0, "Ridge penalty (RIDGE_LAMBDA)")
	f.IntVar(&e.flags.decimation, "decimation", 0, "Keep every n-th sample (DECIMATION)")
	f.StringVar(&e.flags.eventType, "event-type", "", "Event type locked to word onsets (EVENT_TYPE)")
	f.StringVar(&e.flags.channelFile, "channel-file", "", "File with one channel name per line (CHANNEL_FILE)")
	f.StringVar(&e.flags.metric, "metric", "", "Measure used for thresholding and outliers (READING_METRIC)")
	f.StringSliceVar(&e.flags.subjects, "subjects", nil, "Subject IDs to analyze (READING_SUBJECTS)")
	f.StringVar(&e.flags.sheet, "sheet", "", "Workbook sheet of the reading data (READING_SHEET)")
	f.Float64Var(&e.flags.threshold, "threshold", 0, "Minimum metric value in ms (READING_THRESHOLD)")
	f.IntVar(&e.flags.wordLimit, "word-limit", 0, "Words scored in aggregated mode (WORD_LIMIT)")
	f.IntVar(&e.flags.folds, "folds", 0, "Cross-validation folds (KFOLD_COUNT)")
	f.StringVar(&e.flags.driver, "driver", "", "Results store driver: sqlite|postgres (RESULTS_DRIVER)")
	f.StringVar(&e.flags.dsn, "dsn", "", "Results store DSN, empty disables persistence (RESULTS_DSN)")
	f.StringVar(&e.flags.logLevel, "log-level", "", "ERROR|WARN|INFO|DEBUG (LOG_LEVEL)")
}

// load reads .env and the environment, then applies the flags that were set
func (e *environment) load(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.ConfigurationError("failed to read .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	e.apply(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return errors.Wrap(err, "invalid flag values")
	}
	e.cfg = cfg
	e.logger = logging.NewWriter(logging.ParseLevel(cfg.LogLevel), "brainlm", cmd.ErrOrStderr())
	return nil
}

func (e *environment) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	o := e.flags
	if changed("model") {
		cfg.Language.Model = o.model
	}
	if changed("context") {
		cfg.Language.ContextLength = o.contextLen
	}
	if changed("surprisal-source") {
		cfg.Language.Source = o.source
	}
	if changed("output") {
		cfg.Results.OutputDir = o.output
	}
	if changed("workers") {
		cfg.Workers = o.workers
	}
	if changed("sampling-rate") {
		cfg.EEG.SamplingRate = o.samplingRate
	}
	if changed("tmin") {
		cfg.EEG.TMin = o.tmin
	}
	if changed("tmax") {
		cfg.EEG.TMax = o.tmax
	}
	if changed("lambda") {
		cfg.EEG.Lambda = o.lambda
	}
	if changed("decimation") {
		cfg.EEG.Decimation = o.decimation
	}
	if changed("event-type") {
		cfg.EEG.EventType = o.eventType
	}
	if changed("channel-file") {
		cfg.EEG.ChannelFile = o.channelFile
	}
	if changed("metric") {
		cfg.Reading.MetricColumn = o.metric
	}
	if changed("subjects") {
		cfg.Reading.Subjects = o.subjects
	}
	if changed("sheet") {
		cfg.Reading.Sheet = o.sheet
	}
	if changed("threshold") {
		cfg.Reading.Threshold = o.threshold
	}
	if changed("word-limit") {
		cfg.Reading.WordLimit = o.wordLimit
	}
	if changed("folds") {
		cfg.Reading.Folds = o.folds
	}
	if changed("driver") {
		cfg.Results.Driver = o.driver
	}
	if changed("dsn") {
		cfg.Results.DSN = o.dsn
	}
	if changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
}

// covariateSource builds the configured surprisal source
func (e *environment) covariateSource() (ports.CovariateSource, error) {
	lang := e.cfg.Language
	switch lang.Source {
	case config.SourceCommand:
		fields := strings.Fields(lang.Command)
		if len(fields) == 0 {
			return nil, errors.ConfigInvalid("SURPRISAL_COMMAND is empty")
		}
		return lm.NewCommandScorer(fields[0], fields[1:]...), nil
	case config.SourceHTTP:
		return lm.NewHTTPScorer(lang.URL, lang.Timeout), nil
	default:
		return files.NewSurprisalTable(lang.TableDir, lang.TableBase), nil
	}
}

// repository opens the results store when one is configured. The returned
// close function is always safe to call.
func (e *environment) repository(ctx context.Context) (ports.ResultRepository, func(), error) {
	if !e.cfg.Results.StoreEnabled() {
		return nil, func() {}, nil
	}
	db, err := store.Open(ctx, e.cfg.Results.Driver, e.cfg.Results.DSN)
	if err != nil {
		return nil, nil, err
	}
	return store.NewResultRepository(db), func() { db.Close() }, nil
}

func (e *environment) requireRepository(ctx context.Context) (ports.ResultRepository, func(), error) {
	if !e.cfg.Results.StoreEnabled() {
		return nil, nil, errors.ConfigInvalid("no results store configured, set RESULTS_DSN or --dsn")
	}
	return e.repository(ctx)
}

func (e *environment) exporter() ports.ResultExporter {
	if e.cfg.Results.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(e.cfg.Results.OutputDir, 0o755); err != nil {
		e.logger.Warn("Export disabled, cannot create %s: %v", e.cfg.Results.OutputDir, err)
		return nil
	}
	return excel.NewExporter()
}

func (e *environment) eegService(ctx context.Context, grandAverage bool) (*app.EEGService, func(), error) {
	covariates, err := e.covariateSource()
	if err != nil {
		return nil, nil, err
	}
	repo, closeFn, err := e.repository(ctx)
	if err != nil {
		return nil, nil, err
	}

	eeg := e.cfg.EEG
	opts := deconv.DefaultOptions()
	opts.SamplingRate = eeg.SamplingRate
	opts.Lambda = eeg.Lambda
	opts.Decimation = eeg.Decimation
	opts.FirstSample = eeg.FirstSample

	source := files.NewSource(eeg.SamplingRate, eeg.ChannelFile)
	settings := app.EEGSettings{
		Window:        rerp.Window{TMin: eeg.TMin, TMax: eeg.TMax},
		Options:       opts,
		EventType:     eeg.EventType,
		Model:         e.cfg.Language.Model,
		ContextLength: e.cfg.Language.ContextLength,
		Workers:       e.cfg.Workers,
		GrandAverage:  grandAverage,
	}
	svc := app.NewEEGService(source, source, covariates, source, e.exporter(), repo, settings, e.logger)
	return svc, closeFn, nil
}

func (e *environment) eyeTrackService(ctx context.Context) (*app.EyeTrackService, func(), error) {
	covariates, err := e.covariateSource()
	if err != nil {
		return nil, nil, err
	}
	repo, closeFn, err := e.repository(ctx)
	if err != nil {
		return nil, nil, err
	}

	rc := e.cfg.Reading
	settings := app.ReadingSettings{
		Columns: ports.ReadingColumns{
			Subject:  rc.SubjectColumn,
			Word:     rc.WordColumn,
			Measures: rc.Measures,
		},
		MetricColumn:  rc.MetricColumn,
		Subjects:      rc.Subjects,
		Threshold:     rc.Threshold,
		OutlierSD:     rc.OutlierSD,
		WordLimit:     rc.WordLimit,
		Folds:         rc.Folds,
		Model:         e.cfg.Language.Model,
		ContextLength: e.cfg.Language.ContextLength,
	}
	svc := app.NewEyeTrackService(excel.NewReadingReader(rc.Sheet), covariates, e.exporter(), repo, settings, e.logger)
	return svc, closeFn, nil
}

func runFiles(args []string) ports.RunFiles {
	return ports.RunFiles{Signal: args[0], Events: args[1], Words: args[2]}
}
