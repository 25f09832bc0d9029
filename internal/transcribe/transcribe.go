// Package transcribe turns captured audio into transcript text and drives
// the recording lifecycle: UNPROCESSED → TRANSCRIBING → DONE or FAILED, with
// an escape hatch back to UNPROCESSED for abandoned or retried attempts.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/store"
)

// Provider converts an audio payload into transcript text.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Service coordinates capture, transcription, and retention.
type Service struct {
	store     *store.Store
	provider  Provider
	retention store.RetentionPolicy
}

// NewService wires the transcription service. provider may be nil when no
// speech endpoint is configured; Transcribe then fails the attempt.
func NewService(st *store.Store, provider Provider, retention store.RetentionPolicy) *Service {
	return &Service{store: st, provider: provider, retention: retention}
}

// Capture stores a freshly recorded dictation as UNPROCESSED and then
// applies the retention policy, so the store converges to the configured
// maximum immediately after every capture.
func (s *Service) Capture(ctx context.Context, title string, audio []byte) (model.Recording, error) {
	rec, err := s.store.AddRecording(ctx, model.Recording{
		ID:     uuid.Must(uuid.NewV7()).String(),
		Title:  title,
		Status: model.StatusUnprocessed,
		Audio:  audio,
	})
	if err != nil {
		return model.Recording{}, err
	}
	slog.Info("recording captured", "recording", rec.ID, "bytes", len(audio))

	if _, err := s.store.ApplyRetention(ctx, s.retention); err != nil {
		// The capture itself succeeded; cleanup can run again next time.
		slog.Warn("retention cleanup failed", "error", err)
	}
	return rec, nil
}

// Transcribe runs one transcription attempt on an UNPROCESSED recording.
//
// The recording moves to TRANSCRIBING first, so a concurrent observer sees
// the attempt in flight. Success stores the transcript, derives a title and
// subtitle when none were set, and lands on DONE. A provider failure lands on
// FAILED, which persists across restarts.
func (s *Service) Transcribe(ctx context.Context, recordingID string) (model.Recording, error) {
	rec, err := s.transition(ctx, recordingID, model.StatusTranscribing)
	if err != nil {
		return model.Recording{}, err
	}

	if s.provider == nil {
		return s.finishFailed(ctx, rec, fmt.Errorf("no transcription provider configured"))
	}

	text, err := s.provider.Transcribe(ctx, rec.Audio, rec.ID+".wav")
	if err != nil {
		return s.finishFailed(ctx, rec, err)
	}

	rec.TranscribedText = text
	rec.Status = model.StatusDone
	if rec.Title == "" {
		rec.Title, rec.Subtitle = deriveTitle(text)
	}
	updated, err := s.store.UpdateRecording(ctx, rec)
	if err != nil {
		return model.Recording{}, err
	}
	slog.Info("transcription done", "recording", rec.ID, "chars", len(text))
	return updated, nil
}

// Abandon returns an in-flight TRANSCRIBING recording to UNPROCESSED, e.g.
// when the client shuts down mid-attempt.
func (s *Service) Abandon(ctx context.Context, recordingID string) (model.Recording, error) {
	return s.transition(ctx, recordingID, model.StatusUnprocessed)
}

// Reset returns a DONE or FAILED recording to UNPROCESSED so it can be
// transcribed again. The previous transcript is kept until the new attempt
// overwrites it.
func (s *Service) Reset(ctx context.Context, recordingID string) (model.Recording, error) {
	return s.transition(ctx, recordingID, model.StatusUnprocessed)
}

// transition moves a recording along the lifecycle, rejecting edges the
// state machine does not allow.
func (s *Service) transition(ctx context.Context, recordingID string, to model.TranscriptionStatus) (model.Recording, error) {
	rec, err := s.store.GetRecording(ctx, recordingID)
	if err != nil {
		return model.Recording{}, err
	}
	if !model.ValidTransition(rec.Status, to) {
		return model.Recording{}, fmt.Errorf("recording %s: invalid transition %s → %s", recordingID, rec.Status, to)
	}
	rec.Status = to
	return s.store.UpdateRecording(ctx, rec)
}

func (s *Service) finishFailed(ctx context.Context, rec model.Recording, cause error) (model.Recording, error) {
	slog.Warn("transcription failed", "recording", rec.ID, "error", cause)
	rec.Status = model.StatusFailed
	updated, err := s.store.UpdateRecording(ctx, rec)
	if err != nil {
		return model.Recording{}, err
	}
	return updated, cause
}

const maxTitleLen = 60

// deriveTitle builds a title from the opening of the transcript and a
// subtitle from what follows, both clipped at word boundaries.
func deriveTitle(text string) (title, subtitle string) {
	text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	if text == "" {
		return "Untitled recording " + time.Now().UTC().Format("2006-01-02 15:04"), ""
	}

	title = clipWords(text, maxTitleLen)
	rest := strings.TrimSpace(strings.TrimPrefix(text, title))
	if rest != "" {
		subtitle = clipWords(rest, maxTitleLen)
	}
	return title, subtitle
}

func clipWords(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	clipped := string(runes[:n])
	if i := strings.LastIndexByte(clipped, ' '); i > 0 {
		clipped = clipped[:i]
	}
	return clipped
}
