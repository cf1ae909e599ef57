package ports

import (
	"context"

	"brainlm/domain/rerp"
	"brainlm/models"

	"github.com/google/uuid"
)

// ResultRepository persists analysis runs and their outcomes
type ResultRepository interface {
	SaveRun(ctx context.Context, run *models.AnalysisRun) error
	SaveScores(ctx context.Context, scores []models.ScoreRecord) error
	SaveResponses(ctx context.Context, summaries []models.ResponseSummary) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.AnalysisRun, error)
	GetScores(ctx context.Context, runID uuid.UUID) ([]models.ScoreRecord, error)
	GetResponses(ctx context.Context, runID uuid.UUID) ([]models.ResponseSummary, error)
}

// ResultExporter writes analysis outputs for downstream plotting
type ResultExporter interface {
	WriteResponses(path string, channels []string, responses []rerp.FittedResponse) error
	WriteScores(path string, tables ...models.ScoreTable) error
}
