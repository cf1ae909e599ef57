package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JSONBMap stores free-form run parameters as a JSON document column
type JSONBMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONBMap)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*j = make(JSONBMap)
		return nil
	}

	if len(bytes) == 0 {
		*j = make(JSONBMap)
		return nil
	}

	result := make(JSONBMap)
	if err := json.Unmarshal(bytes, &result); err != nil {
		return err
	}
	*j = result
	return nil
}

// AnalysisKind names the run configuration that produced a result
type AnalysisKind string

const (
	AnalysisEEGSingleRun      AnalysisKind = "eeg_single_run"
	AnalysisEEGSingleSubject  AnalysisKind = "eeg_single_subject"
	AnalysisEEGCrossSubject   AnalysisKind = "eeg_cross_subject"
	AnalysisReadingAggregated AnalysisKind = "eyetrack_aggregated"
	AnalysisReadingIndividual AnalysisKind = "eyetrack_individual"
)

// AnalysisRun is one invocation of an analysis
type AnalysisRun struct {
	ID            uuid.UUID    `json:"id" db:"id"`
	Kind          AnalysisKind `json:"kind" db:"kind"`
	Model         string       `json:"model" db:"model"`
	ContextLength int          `json:"context_length" db:"context_length"`
	Recordings    int          `json:"recordings" db:"recordings"`
	Parameters    JSONBMap     `json:"parameters" db:"parameters"`
	CreatedAt     time.Time    `json:"created_at" db:"created_at"`
}

// NewAnalysisRun creates a run record with a time-ordered ID
func NewAnalysisRun(kind AnalysisKind, model string, contextLength int, params map[string]interface{}) *AnalysisRun {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	p := JSONBMap(params)
	if p == nil {
		p = make(JSONBMap)
	}
	return &AnalysisRun{
		ID:            id,
		Kind:          kind,
		Model:         model,
		ContextLength: contextLength,
		Parameters:    p,
		CreatedAt:     time.Now().UTC(),
	}
}

// Feature set labels of the reading-measure comparison
const (
	FeatureSetBase       = "base"
	FeatureSetSurprisal  = "surprisal"
	FeatureSetDifference = "difference"
)

// ScoreRecord is one cross-validated R² value
type ScoreRecord struct {
	RunID      uuid.UUID `json:"run_id" db:"run_id"`
	Subject    string    `json:"subject" db:"subject"`
	FeatureSet string    `json:"feature_set" db:"feature_set"`
	Measure    string    `json:"measure" db:"measure"`
	RSquared   float64   `json:"r_squared" db:"r_squared"`
}

// ResponseSummary condenses one fitted response for storage
type ResponseSummary struct {
	RunID         uuid.UUID `json:"run_id" db:"run_id"`
	Condition     string    `json:"condition" db:"condition_name"`
	Trials        int       `json:"trials" db:"trials"`
	Lags          int       `json:"lags" db:"lags"`
	PeakChannel   string    `json:"peak_channel" db:"peak_channel"`
	PeakLatency   float64   `json:"peak_latency" db:"peak_latency"`
	PeakAmplitude float64   `json:"peak_amplitude" db:"peak_amplitude"`
}

// ScoreRow is one labelled row of a score table
type ScoreRow struct {
	Label  string
	Values []float64
}

// ScoreTable is a labelled rows×measures table of scores
type ScoreTable struct {
	Title    string
	Measures []string
	Rows     []ScoreRow
}

// Records flattens the table into score records for subject.
// Row labels are used as feature set names.
func (t ScoreTable) Records(runID uuid.UUID, subject string) []ScoreRecord {
	var out []ScoreRecord
	for _, row := range t.Rows {
		for j, v := range row.Values {
			out = append(out, ScoreRecord{
				RunID:      runID,
				Subject:    subject,
				FeatureSet: row.Label,
				Measure:    t.Measures[j],
				RSquared:   v,
			})
		}
	}
	return out
}
