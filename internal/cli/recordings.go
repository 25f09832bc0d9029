package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/transcribe"
)

// NewRecordingsCommand creates the recordings command group.
func NewRecordingsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "Inspect and manage recordings",
	}
	cmd.AddCommand(newRecordingsListCommand(rootOpts))
	cmd.AddCommand(newRecordingsShowCommand(rootOpts))
	cmd.AddCommand(newRecordingsRmCommand(rootOpts))
	return cmd
}

func newRecordingsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List recordings, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			recordings, err := s.ListRecordings(cmd.Context())
			if err != nil {
				return err
			}

			f := rootOpts.formatter(cmd)
			if done, err := f.JSON(recordingsForOutput(recordings)); done {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tTITLE")
			for _, r := range recordings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.Title)
			}
			return w.Flush()
		},
	}
}

func newRecordingsShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <recording-id>",
		Short:         "Show one recording including its transcript",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			rec, err := s.GetRecording(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			f := rootOpts.formatter(cmd)
			if done, err := f.JSON(recordingForOutput(rec)); done {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", rec.ID)
			fmt.Fprintf(out, "Title:    %s\n", rec.Title)
			if rec.Subtitle != "" {
				fmt.Fprintf(out, "Subtitle: %s\n", rec.Subtitle)
			}
			fmt.Fprintf(out, "Created:  %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(out, "Status:   %s\n", rec.Status)
			fmt.Fprintf(out, "Audio:    %d bytes\n", len(rec.Audio))
			if rec.TranscribedText != "" {
				fmt.Fprintf(out, "\n%s\n", rec.TranscribedText)
			}
			return nil
		},
	}
}

func newRecordingsRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rm <recording-id>...",
		Short:         "Delete recordings",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			deleted, err := s.DeleteRecordings(cmd.Context(), args)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(fmt.Sprintf("deleted %d recording(s)", deleted))
		},
	}
}

// NewCaptureCommand creates the capture command: store an audio file as a
// new recording and apply retention.
func NewCaptureCommand(rootOpts *RootOptions) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:           "capture <audio-file>",
		Short:         "Store an audio file as a new recording",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			audio, err := os.ReadFile(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot read audio file", err)
			}

			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			svc := transcribe.NewService(s, nil, rootOpts.cfg.Retention)
			rec, err := svc.Capture(cmd.Context(), title, audio)
			if err != nil {
				return err
			}
			return rootOpts.formatter(cmd).Success(rec.ID)
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "recording title (derived from transcript when empty)")
	return cmd
}

// NewTranscribeCommand creates the transcribe command.
func NewTranscribeCommand(rootOpts *RootOptions) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:           "transcribe <recording-id>",
		Short:         "Transcribe a recording through the configured provider",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			provider := transcribe.NewHTTPProvider(rootOpts.cfg.Transcription)
			svc := transcribe.NewService(s, provider, rootOpts.cfg.Retention)

			if reset {
				if _, err := svc.Reset(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			rec, err := svc.Transcribe(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "transcription failed", err)
			}

			f := rootOpts.formatter(cmd)
			if done, err := f.JSON(recordingForOutput(rec)); done {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.TranscribedText)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "reset a DONE or FAILED recording before transcribing")
	return cmd
}

// recordingOutput is the JSON shape for recordings; the audio payload is
// reduced to its size.
type recordingOutput struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Subtitle        string `json:"subtitle,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
	Status          string `json:"status"`
	TranscribedText string `json:"transcribedText,omitempty"`
	AudioBytes      int    `json:"audioBytes"`
}

func recordingForOutput(r model.Recording) recordingOutput {
	return recordingOutput{
		ID:              r.ID,
		Title:           r.Title,
		Subtitle:        r.Subtitle,
		CreatedAt:       r.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		UpdatedAt:       r.UpdatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
		Status:          string(r.Status),
		TranscribedText: r.TranscribedText,
		AudioBytes:      len(r.Audio),
	}
}

func recordingsForOutput(recs []model.Recording) []recordingOutput {
	out := make([]recordingOutput, len(recs))
	for i, r := range recs {
		out[i] = recordingForOutput(r)
	}
	return out
}
