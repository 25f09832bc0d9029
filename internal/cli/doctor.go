package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxlog/voxlog/internal/store"
)

// NewGCCommand creates the gc command: apply the configured retention policy
// immediately.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "gc",
		Short:         "Apply the retention policy now",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			deleted, err := s.ApplyRetention(cmd.Context(), rootOpts.cfg.Retention)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(fmt.Sprintf("deleted %d recording(s)", len(deleted)))
		},
	}
}

// NewDoctorCommand creates the doctor command: diagnose a database that
// fails to open, typically after a failed migration.
//
// With --export the diagnostic dump carried by the migration error is
// written to a JSON file for manual recovery. With --reset the database file
// is deleted so the next open starts fresh. Without either flag, doctor
// reports the failure and the recovery options.
func NewDoctorCommand(rootOpts *RootOptions) *cobra.Command {
	var exportPath string
	var reset bool

	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Diagnose and recover a broken database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			path := rootOpts.dbPath()

			s, err := store.Open(path)
			if err == nil {
				s.Close()
				return rootOpts.formatter(cmd).Success("database is healthy")
			}

			se, ok := store.AsMigration(err)
			if !ok {
				return WrapExitError(ExitCommandError, "cannot open database", err)
			}

			fmt.Fprintf(out, "migration failed: %s\n", se.Title)
			if se.Detail != "" {
				fmt.Fprintln(out, se.Detail)
			}

			if exportPath != "" {
				if se.Dump == nil {
					return NewExitError(ExitFailure, "no diagnostic dump available to export")
				}
				if err := se.Dump.WriteFile(exportPath); err != nil {
					return WrapExitError(ExitFailure, "cannot export diagnostic dump", err)
				}
				fmt.Fprintf(out, "diagnostic dump written to %s\n", exportPath)
			}

			if reset {
				// WAL sidecars can survive an error-path close and would be
				// recovered into the fresh database on next open.
				for _, p := range []string{path, path + "-wal", path + "-shm"} {
					if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
						return WrapExitError(ExitFailure, "cannot delete database file", err)
					}
				}
				fmt.Fprintf(out, "deleted %s; a fresh database will be created on next use\n", path)
				return nil
			}

			if exportPath == "" {
				fmt.Fprintln(out, "recovery options:")
				fmt.Fprintln(out, "  voxlog doctor --export dump.json   export data for manual recovery")
				fmt.Fprintln(out, "  voxlog doctor --reset              delete the database and start fresh")
			}
			return NewExitError(ExitFailure, "database needs recovery")
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "write the diagnostic dump to this file")
	cmd.Flags().BoolVar(&reset, "reset", false, "delete the database file")
	return cmd
}
