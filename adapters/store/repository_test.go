package store

import (
	"context"
	"testing"
	"time"

	"brainlm/internal/errors"
	"brainlm/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	run := models.NewAnalysisRun(models.AnalysisEEGSingleSubject, "gpt2", 50, map[string]interface{}{"lambda": 1000.0})
	run.Recordings = 4
	require.NoError(t, repo.SaveRun(ctx, run))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, models.AnalysisEEGSingleSubject, got.Kind)
	assert.Equal(t, 4, got.Recordings)
	assert.Equal(t, 1000.0, got.Parameters["lambda"])
	assert.WithinDuration(t, run.CreatedAt, got.CreatedAt, time.Microsecond)
}

func TestGetRun_NotFound(t *testing.T) {
	repo := NewResultRepository(openTestDB(t))
	_, err := repo.GetRun(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i, offset := range []time.Duration{0, 100 * time.Millisecond, 120 * time.Millisecond} {
		run := models.NewAnalysisRun(models.AnalysisReadingAggregated, "gpt2", i, nil)
		run.CreatedAt = base.Add(offset)
		require.NoError(t, repo.SaveRun(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestScoresAndResponses(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	run := models.NewAnalysisRun(models.AnalysisReadingIndividual, "gpt2", 50, nil)
	require.NoError(t, repo.SaveRun(ctx, run))

	table := models.ScoreTable{
		Measures: []string{"GAZE"},
		Rows: []models.ScoreRow{
			{Label: models.FeatureSetBase, Values: []float64{0.1}},
			{Label: models.FeatureSetSurprisal, Values: []float64{0.3}},
		},
	}
	require.NoError(t, repo.SaveScores(ctx, table.Records(run.ID, "1")))

	scores, err := repo.GetScores(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, models.FeatureSetSurprisal, scores[1].FeatureSet)
	assert.Equal(t, 0.3, scores[1].RSquared)
	assert.Equal(t, run.ID, scores[1].RunID)

	summaries := []models.ResponseSummary{
		{RunID: run.ID, Condition: "T1", Trials: 40, Lags: 155, PeakChannel: "Cz", PeakLatency: 0.4, PeakAmplitude: -2.5},
	}
	require.NoError(t, repo.SaveResponses(ctx, summaries))
	got, err := repo.GetResponses(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, summaries, got)
}

func TestSaveScores_RollsBackOnConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	run := models.NewAnalysisRun(models.AnalysisReadingAggregated, "gpt2", 50, nil)
	require.NoError(t, repo.SaveRun(ctx, run))

	dup := models.ScoreRecord{RunID: run.ID, Subject: "aggregate", FeatureSet: models.FeatureSetBase, Measure: "GAZE", RSquared: 0.2}
	err := repo.SaveScores(ctx, []models.ScoreRecord{dup, dup})
	assert.True(t, errors.Is(err, errors.CodeDatabaseError))

	scores, err := repo.GetScores(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestSaveScores_UnknownRun(t *testing.T) {
	repo := NewResultRepository(openTestDB(t))
	err := repo.SaveScores(context.Background(), []models.ScoreRecord{{RunID: uuid.New(), Subject: "1", FeatureSet: "base", Measure: "GAZE"}})
	assert.Error(t, err)
}
