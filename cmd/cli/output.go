package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"brainlm/app"
	"brainlm/internal/errors"
	"brainlm/models"
	"brainlm/ports"

	"github.com/google/uuid"
)

func printRunHeader(w io.Writer, run *models.AnalysisRun) {
	fmt.Fprintf(w, "Run %s (%s)\n", run.ID, run.Kind)
	fmt.Fprintf(w, "Model: %s, context %d, recordings %d\n\n", run.Model, run.ContextLength, run.Recordings)
}

func printEEGResult(w io.Writer, res *app.EEGResult) {
	printRunHeader(w, res.Run)
	printSummaries(w, app.Summarize(res.Run, res.Channels, res.Responses))
}

func printSummaries(w io.Writer, summaries []models.ResponseSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONDITION\tTRIALS\tLAGS\tPEAK CHANNEL\tPEAK LATENCY (s)\tPEAK AMPLITUDE")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%.3f\t%.4g\n",
			s.Condition, s.Trials, s.Lags, s.PeakChannel, s.PeakLatency, s.PeakAmplitude)
	}
	tw.Flush()
}

func printScoreTable(w io.Writer, table models.ScoreTable) {
	if table.Title != "" {
		fmt.Fprintf(w, "%s\n", table.Title)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\t%s\n", strings.Join(table.Measures, "\t"))
	for _, row := range table.Rows {
		cells := make([]string, len(row.Values))
		for i, v := range row.Values {
			cells[i] = fmt.Sprintf("%.4f", v)
		}
		fmt.Fprintf(tw, "%s\t%s\n", row.Label, strings.Join(cells, "\t"))
	}
	tw.Flush()
	fmt.Fprintln(w)
}

func printRuns(w io.Writer, runs []*models.AnalysisRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No stored runs")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tMODEL\tCONTEXT\tRECORDINGS\tCREATED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Kind, r.Model, r.ContextLength, r.Recordings, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	tw.Flush()
}

// showRun prints a stored run with its response summaries or its scores
func showRun(ctx context.Context, w io.Writer, repo ports.ResultRepository, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return errors.InvalidInput(fmt.Sprintf("invalid run id %q", rawID))
	}
	run, err := repo.GetRun(ctx, id)
	if err != nil {
		return err
	}
	printRunHeader(w, run)

	summaries, err := repo.GetResponses(ctx, id)
	if err != nil {
		return err
	}
	if len(summaries) > 0 {
		printSummaries(w, summaries)
		return nil
	}

	scores, err := repo.GetScores(ctx, id)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SUBJECT\tFEATURE SET\tMEASURE\tR²")
	for _, s := range scores {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\n", s.Subject, s.FeatureSet, s.Measure, s.RSquared)
	}
	tw.Flush()
	return nil
}
