package config

import (
	"testing"
	"time"

	"brainlm/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 128.0, cfg.EEG.SamplingRate)
	assert.Equal(t, -0.2, cfg.EEG.TMin)
	assert.Equal(t, 1.0, cfg.EEG.TMax)
	assert.Equal(t, 1000.0, cfg.EEG.Lambda)
	assert.Equal(t, 5, cfg.Reading.Folds)
	assert.Equal(t, 100.0, cfg.Reading.Threshold)
	assert.Equal(t, 2.5, cfg.Reading.OutlierSD)
	assert.Equal(t, 100, cfg.Reading.WordLimit)
	assert.Len(t, cfg.Reading.Measures, 4)
	assert.Equal(t, SourceTable, cfg.Language.Source)
	assert.False(t, cfg.Results.StoreEnabled())
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SAMPLING_RATE", "256")
	t.Setenv("RIDGE_LAMBDA", "10")
	t.Setenv("READING_SUBJECTS", "pp21, pp22,,")
	t.Setenv("SURPRISAL_TIMEOUT", "30s")
	t.Setenv("RESULTS_DSN", "file:results.db")
	t.Setenv("WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 256.0, cfg.EEG.SamplingRate)
	assert.Equal(t, 10.0, cfg.EEG.Lambda)
	assert.Equal(t, []string{"pp21", "pp22"}, cfg.Reading.Subjects)
	assert.Equal(t, 30*time.Second, cfg.Language.Timeout)
	assert.True(t, cfg.Results.StoreEnabled())
	assert.Equal(t, 1, cfg.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]struct {
		key, value string
		code       string
	}{
		"negative rate":   {"SAMPLING_RATE", "-1", errors.CodeConfiguration},
		"zero lambda":     {"RIDGE_LAMBDA", "0", errors.CodeConfiguration},
		"one fold":        {"KFOLD_COUNT", "1", errors.CodeConfiguration},
		"inverted window": {"RERP_TMAX", "-0.5", errors.CodeConfiguration},
		"bad source":      {"SURPRISAL_SOURCE", "oracle", errors.CodeConfigInvalid},
		"command missing": {"SURPRISAL_SOURCE", SourceCommand, errors.CodeConfigInvalid},
		"bad driver":      {"RESULTS_DRIVER", "mysql", errors.CodeConfigInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.code), err.Error())
		})
	}
}
