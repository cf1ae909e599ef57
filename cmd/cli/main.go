package main

import (
	"fmt"
	"os"

	"brainlm/internal/errors"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}

// formatError prefixes application errors with their code
func formatError(err error) string {
	if !errors.IsAppError(err) {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %s", errors.GetCode(err), err.Error())
}

func newRootCmd() *cobra.Command {
	env := &environment{}

	rootCmd := &cobra.Command{
		Use:   "brainlm",
		Short: "Relate language-model surprisal to EEG and eye-tracking data",
		Long: `brainlm fits regression-based ERPs of EEG recordings with a word surprisal
covariate and scores eye-tracking reading measures with and without surprisal.

Configuration is read from the environment (and a .env file when present);
flags override it.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return env.load(cmd)
		},
	}
	rootCmd.SilenceUsage = true
	env.bindFlags(rootCmd)

	rootCmd.AddCommand(
		newEEGCmd(env),
		newEyeTrackCmd(env),
		newRunsCmd(env),
	)
	return rootCmd
}

func newEEGCmd(env *environment) *cobra.Command {
	var grandAverage bool

	cmd := &cobra.Command{
		Use:   "eeg",
		Short: "Fit rERPs of EEG recordings",
	}

	srCmd := &cobra.Command{
		Use:   "sr <signal> <events> <words>",
		Short: "Fit a single recording",
		Long: `Fit a single recording.

Example:
  brainlm eeg sr data/pp21/run1.csv data/events/run1.csv data/words/run1.csv`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := env.eegService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := svc.SingleRun(cmd.Context(), runFiles(args), env.cfg.Results.OutputDir)
			if err != nil {
				return err
			}
			printEEGResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	ssCmd := &cobra.Command{
		Use:   "ss <signal-dir> <events-dir> <words-dir>",
		Short: "Fit and sum every recording of one subject",
		Long: `Fit and sum every recording of one subject.

Example:
  brainlm eeg ss data/pp21 data/events data/words --workers 4`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := env.eegService(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := svc.SingleSubject(cmd.Context(), args[0], args[1], args[2], env.cfg.Results.OutputDir)
			if err != nil {
				return err
			}
			printEEGResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	csCmd := &cobra.Command{
		Use:   "cs <subjects-dir> <events-dir> <words-dir>",
		Short: "Fit every recording of every subject directory",
		Long: `Fit every recording of every subject directory.

Example:
  brainlm eeg cs data/subjects data/events data/words --grand-average`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := env.eegService(cmd.Context(), grandAverage)
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := svc.CrossSubject(cmd.Context(), args[0], args[1], args[2], env.cfg.Results.OutputDir)
			if err != nil {
				return err
			}
			printEEGResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	csCmd.Flags().BoolVar(&grandAverage, "grand-average", false, "Average subject sums instead of summing every run")

	cmd.AddCommand(srCmd, ssCmd, csCmd)
	return cmd
}

func newEyeTrackCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eye-track",
		Short: "Score reading measures with and without surprisal",
	}

	aggCmd := &cobra.Command{
		Use:   "agg <reading-file>",
		Short: "Score the across-subject mean of each word",
		Long: `Score the across-subject mean of each word.

Example:
  brainlm eye-track agg data/reading.xlsx --model gpt2 --context 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := env.eyeTrackService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := svc.Aggregated(cmd.Context(), args[0], env.cfg.Results.OutputDir)
			if err != nil {
				return err
			}
			printRunHeader(cmd.OutOrStdout(), res.Run)
			printScoreTable(cmd.OutOrStdout(), res.Table)
			return nil
		},
	}

	indvCmd := &cobra.Command{
		Use:   "indv <reading-file>",
		Short: "Score every subject separately and summarize",
		Long: `Score every subject separately and summarize.

Example:
  brainlm eye-track indv data/reading.csv --subjects pp21,pp22,pp23`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := env.eyeTrackService(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			res, err := svc.Individual(cmd.Context(), args[0], env.cfg.Results.OutputDir)
			if err != nil {
				return err
			}
			printRunHeader(cmd.OutOrStdout(), res.Run)
			for _, summary := range res.Summaries {
				printScoreTable(cmd.OutOrStdout(), summary)
			}
			return nil
		},
	}

	cmd.AddCommand(aggCmd, indvCmd)
	return cmd
}

func newRunsCmd(env *environment) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored analysis runs",
		Long: `List the analysis runs saved in the results store, newest first.
Requires RESULTS_DSN or --dsn.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := env.requireRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum runs to list")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the stored scores or response summaries of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closeFn, err := env.requireRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			return showRun(cmd.Context(), cmd.OutOrStdout(), repo, args[0])
		},
	}

	cmd.AddCommand(showCmd)
	return cmd
}
