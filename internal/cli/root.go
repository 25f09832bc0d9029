// Package cli implements the voxlog command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/voxlog/voxlog/internal/config"
	"github.com/voxlog/voxlog/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	DBPath     string // overrides the configured database path
	Verbose    bool
	Format     string // "json" | "text"

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the voxlog CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "voxlog",
		Short: "voxlog - voice dictation log",
		Long:  "Capture dictations, transcribe them, and refine transcripts through transformation pipelines.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.ConfigPath == "" {
				opts.ConfigPath = config.DefaultPath()
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			opts.cfg = &cfg

			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: user config dir)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "database file (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRecordingsCommand(opts))
	cmd.AddCommand(NewCaptureCommand(opts))
	cmd.AddCommand(NewTranscribeCommand(opts))
	cmd.AddCommand(NewPipelinesCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewDoctorCommand(opts))

	return cmd
}

// dbPath resolves the database location: flag first, then config.
func (o *RootOptions) dbPath() string {
	if o.DBPath != "" {
		return o.DBPath
	}
	return o.cfg.DBPath
}

// openStore opens the configured database, mapping a migration failure to
// ExitFailure so scripts can distinguish it from bad usage.
func (o *RootOptions) openStore() (*store.Store, error) {
	s, err := store.Open(o.dbPath())
	if store.IsMigration(err) {
		return nil, WrapExitError(ExitFailure, "schema migration failed (run 'voxlog doctor')", err)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot open database", err)
	}
	return s, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
