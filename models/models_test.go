package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONBMap_ValueScan(t *testing.T) {
	in := JSONBMap{"lambda": 1000.0, "folds": 5.0}
	v, err := in.Value()
	require.NoError(t, err)

	var out JSONBMap
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(nil))
	assert.Empty(t, out)

	var nilMap JSONBMap
	v, err = nilMap.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestNewAnalysisRun(t *testing.T) {
	run := NewAnalysisRun(AnalysisEEGSingleRun, "gpt2", 50, nil)
	assert.NotEqual(t, [16]byte{}, [16]byte(run.ID))
	assert.NotNil(t, run.Parameters)
	assert.Equal(t, 50, run.ContextLength)
}

func TestScoreTable_Records(t *testing.T) {
	run := NewAnalysisRun(AnalysisReadingAggregated, "gpt2", 50, nil)
	table := ScoreTable{
		Measures: []string{"GAZE", "SKIP"},
		Rows: []ScoreRow{
			{Label: FeatureSetBase, Values: []float64{0.1, 0.2}},
			{Label: FeatureSetSurprisal, Values: []float64{0.15, 0.22}},
		},
	}

	recs := table.Records(run.ID, "aggregate")
	require.Len(t, recs, 4)
	assert.Equal(t, "SKIP", recs[3].Measure)
	assert.Equal(t, FeatureSetSurprisal, recs[3].FeatureSet)
	assert.Equal(t, 0.22, recs[3].RSquared)
}
