package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"brainlm/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	EEG      EEGConfig
	Reading  ReadingConfig
	Language LanguageConfig
	Results  ResultsConfig
	Workers  int
	LogLevel string
}

// EEGConfig holds the regression engine settings
type EEGConfig struct {
	SamplingRate float64
	TMin         float64
	TMax         float64
	Lambda       float64
	Decimation   int
	FirstSample  int
	EventType    string
	ChannelFile  string
}

// ReadingConfig holds eye-tracking preprocessing settings
type ReadingConfig struct {
	SubjectColumn string
	WordColumn    string
	MetricColumn  string
	Measures      []string
	Subjects      []string
	Sheet         string
	Threshold     float64
	OutlierSD     float64
	WordLimit     int
	Folds         int
}

// LanguageConfig selects how surprisal values are obtained
type LanguageConfig struct {
	Model         string
	ContextLength int
	Source        string // table | command | http
	TableDir      string
	TableBase     string
	Command       string
	URL           string
	Timeout       time.Duration
}

// ResultsConfig holds the results store and export settings
type ResultsConfig struct {
	Driver    string
	DSN       string
	OutputDir string
}

// StoreEnabled reports whether runs should be persisted
func (r ResultsConfig) StoreEnabled() bool {
	return strings.TrimSpace(r.DSN) != ""
}

// Surprisal source kinds
const (
	SourceTable   = "table"
	SourceCommand = "command"
	SourceHTTP    = "http"
)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		EEG:      *loadEEGConfig(),
		Reading:  *loadReadingConfig(),
		Language: *loadLanguageConfig(),
		Results:  *loadResultsConfig(),
		Workers:  getEnvIntOrDefault("WORKERS", 1),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := Validate(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadEEGConfig() *EEGConfig {
	return &EEGConfig{
		SamplingRate: getEnvFloatOrDefault("SAMPLING_RATE", 128),
		TMin:         getEnvFloatOrDefault("RERP_TMIN", -0.2),
		TMax:         getEnvFloatOrDefault("RERP_TMAX", 1.0),
		Lambda:       getEnvFloatOrDefault("RIDGE_LAMBDA", 1000),
		Decimation:   getEnvIntOrDefault("DECIMATION", 1),
		FirstSample:  getEnvIntOrDefault("FIRST_SAMPLE", 0),
		EventType:    getEnvOrDefault("EVENT_TYPE", "T1"),
		ChannelFile:  getEnvOrDefault("CHANNEL_FILE", ""),
	}
}

func loadReadingConfig() *ReadingConfig {
	return &ReadingConfig{
		SubjectColumn: getEnvOrDefault("READING_SUBJECT_COLUMN", "PP_NR"),
		WordColumn:    getEnvOrDefault("READING_WORD_COLUMN", "WORD"),
		MetricColumn:  getEnvOrDefault("READING_METRIC", "WORD_FIRST_FIXATION_DURATION"),
		Measures: getEnvListOrDefault("READING_MEASURES", []string{
			"WORD_GAZE_DURATION",
			"WORD_FIRST_FIXATION_DURATION",
			"WORD_TOTAL_READING_TIME",
			"WORD_SKIP",
		}),
		Subjects:  getEnvListOrDefault("READING_SUBJECTS", nil),
		Sheet:     getEnvOrDefault("READING_SHEET", ""),
		Threshold: getEnvFloatOrDefault("READING_THRESHOLD", 100),
		OutlierSD: getEnvFloatOrDefault("OUTLIER_SD", 2.5),
		WordLimit: getEnvIntOrDefault("WORD_LIMIT", 100),
		Folds:     getEnvIntOrDefault("KFOLD_COUNT", 5),
	}
}

func loadLanguageConfig() *LanguageConfig {
	return &LanguageConfig{
		Model:         getEnvOrDefault("LM_MODEL", "gpt2"),
		ContextLength: getEnvIntOrDefault("CONTEXT_LENGTH", 50),
		Source:        getEnvOrDefault("SURPRISAL_SOURCE", SourceTable),
		TableDir:      getEnvOrDefault("SURPRISAL_DIR", "./surprisal"),
		TableBase:     getEnvOrDefault("SURPRISAL_TABLE", "surprisal"),
		Command:       getEnvOrDefault("SURPRISAL_COMMAND", ""),
		URL:           getEnvOrDefault("SURPRISAL_URL", ""),
		Timeout:       getEnvDurationOrDefault("SURPRISAL_TIMEOUT", 5*time.Minute),
	}
}

func loadResultsConfig() *ResultsConfig {
	return &ResultsConfig{
		Driver:    getEnvOrDefault("RESULTS_DRIVER", "sqlite"),
		DSN:       getEnvOrDefault("RESULTS_DSN", ""),
		OutputDir: getEnvOrDefault("OUTPUT_DIR", "./output"),
	}
}

// Validate checks a configuration, typically after flag overrides.
func Validate(config *Config) error {
	if config.EEG.SamplingRate <= 0 {
		return errors.ConfigurationError("sampling rate must be positive, got %v", config.EEG.SamplingRate)
	}
	if config.EEG.TMax < config.EEG.TMin {
		return errors.ConfigurationError("response window tmax %v precedes tmin %v", config.EEG.TMax, config.EEG.TMin)
	}
	if config.EEG.Lambda <= 0 {
		return errors.ConfigurationError("ridge lambda must be positive, got %v", config.EEG.Lambda)
	}
	if config.EEG.Decimation < 1 {
		return errors.ConfigurationError("decimation factor must be at least 1, got %d", config.EEG.Decimation)
	}
	if config.Reading.Folds < 2 {
		return errors.ConfigurationError("fold count must be at least 2, got %d", config.Reading.Folds)
	}
	if config.Reading.OutlierSD <= 0 {
		return errors.ConfigurationError("outlier band must be positive, got %v", config.Reading.OutlierSD)
	}
	if config.Language.ContextLength < 1 {
		return errors.ConfigurationError("context length must be at least 1, got %d", config.Language.ContextLength)
	}
	switch config.Language.Source {
	case SourceTable:
	case SourceCommand:
		if config.Language.Command == "" {
			return errors.ConfigInvalid("SURPRISAL_COMMAND is required for the command surprisal source")
		}
	case SourceHTTP:
		if config.Language.URL == "" {
			return errors.ConfigInvalid("SURPRISAL_URL is required for the http surprisal source")
		}
	default:
		return errors.ConfigInvalid("unknown surprisal source " + strconv.Quote(config.Language.Source))
	}
	switch config.Results.Driver {
	case "sqlite", "postgres":
	default:
		return errors.ConfigInvalid("unsupported results driver " + strconv.Quote(config.Results.Driver))
	}
	if config.Workers < 1 {
		return errors.ConfigurationError("workers must be at least 1, got %d", config.Workers)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListOrDefault splits a comma separated value, dropping blanks
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
