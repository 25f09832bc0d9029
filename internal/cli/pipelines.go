package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxlog/voxlog/internal/compiler"
)

// NewPipelinesCommand creates the pipelines command group.
func NewPipelinesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipelines",
		Short: "Manage transformation pipelines",
	}
	cmd.AddCommand(newPipelinesListCommand(rootOpts))
	cmd.AddCommand(newPipelinesImportCommand(rootOpts))
	cmd.AddCommand(newPipelinesRmCommand(rootOpts))
	return cmd
}

func newPipelinesListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List pipelines",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			pipelines, err := s.ListPipelines(cmd.Context())
			if err != nil {
				return err
			}

			f := rootOpts.formatter(cmd)
			if done, err := f.JSON(pipelines); done {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTEPS")
			for _, p := range pipelines {
				enabled := 0
				for _, step := range p.Steps {
					if step.Enabled {
						enabled++
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%d (%d enabled)\n", p.ID, p.Title, len(p.Steps), enabled)
			}
			return w.Flush()
		},
	}
}

func newPipelinesImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "import <definition.cue>",
		Short:         "Import a CUE pipeline definition",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := compiler.LoadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid pipeline definition", err)
			}

			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := compiler.Import(cmd.Context(), s, def)
			if err != nil {
				return err
			}

			f := rootOpts.formatter(cmd)
			if done, err := f.JSON(p); done {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s (%d steps)\n", p.Title, p.ID, len(p.Steps))
			return nil
		},
	}
}

func newPipelinesRmCommand(rootOpts *RootOptions) *cobra.Command {
	var cascade bool

	cmd := &cobra.Command{
		Use:           "rm <pipeline-id>",
		Short:         "Delete a pipeline",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if cascade {
				err = s.DeletePipelineCascade(cmd.Context(), args[0])
			} else {
				err = s.DeletePipeline(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success("deleted " + args[0])
		},
	}

	cmd.Flags().BoolVar(&cascade, "cascade", false, "also delete the transformations the pipeline references")
	return cmd
}
