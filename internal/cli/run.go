package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/runner"
	"github.com/voxlog/voxlog/internal/transform"
)

// NewRunCommand creates the run command: execute a pipeline against a
// recording's transcript.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "run <pipeline-id> <recording-id>",
		Short:         "Run a pipeline against a recording",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			chat := transform.NewOpenAIClient(rootOpts.cfg.Chat)
			run, err := runner.New(s, chat).Execute(cmd.Context(), args[0], args[1])
			if err != nil && run.ID == "" {
				// Failed before a run was recorded.
				return err
			}

			f := rootOpts.formatter(cmd)
			if done, jsonErr := f.JSON(run); done {
				if jsonErr != nil {
					return jsonErr
				}
			} else if run.Status == model.RunCompleted {
				fmt.Fprintln(cmd.OutOrStdout(), run.Output)
			}

			if err != nil {
				return WrapExitError(ExitFailure, fmt.Sprintf("run %s failed", run.ID), err)
			}
			return nil
		},
	}
}

// NewRunsCommand creates the runs command: show the execution log of a
// recording.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	var showResults bool

	cmd := &cobra.Command{
		Use:           "runs <recording-id>",
		Short:         "Show pipeline runs against a recording",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRunsForRecording(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			f := rootOpts.formatter(cmd)
			if done, err := f.JSON(runs); done {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPIPELINE\tSTARTED\tSTATUS")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					run.ID, run.PipelineID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !showResults {
				return nil
			}
			for _, run := range runs {
				results, err := s.ListResultsForRun(cmd.Context(), run.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nrun %s:\n", run.ID)
				for _, r := range results {
					fmt.Fprintf(out, "  %s %s", r.TransformationID, r.Status)
					if r.Error != "" {
						fmt.Fprintf(out, " (%s)", r.Error)
					}
					fmt.Fprintln(out)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showResults, "results", false, "include per-step results")
	return cmd
}
