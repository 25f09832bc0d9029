package model

import "time"

// TranscriptionStatus tracks where a recording is in the transcription
// lifecycle. Transitions are monotonic within one attempt:
//
//	UNPROCESSED → TRANSCRIBING → DONE
//	                         └─→ FAILED
//
// An abandoned attempt may move back from TRANSCRIBING to UNPROCESSED.
// The store does not enforce transitions; the transcribe service does.
type TranscriptionStatus string

const (
	StatusUnprocessed  TranscriptionStatus = "UNPROCESSED"
	StatusTranscribing TranscriptionStatus = "TRANSCRIBING"
	StatusDone         TranscriptionStatus = "DONE"
	StatusFailed       TranscriptionStatus = "FAILED"
)

// ValidTransition reports whether moving a recording from one transcription
// status to another is an allowed edge of the lifecycle state machine.
func ValidTransition(from, to TranscriptionStatus) bool {
	switch from {
	case StatusUnprocessed:
		return to == StatusTranscribing
	case StatusTranscribing:
		return to == StatusDone || to == StatusFailed || to == StatusUnprocessed
	case StatusDone, StatusFailed:
		return to == StatusUnprocessed
	default:
		return false
	}
}

// Recording is one captured dictation. Audio may be absent (nil) when the
// capture collaborator failed to deliver a payload or the blob was purged.
// TranscribedText is empty until transcription completes.
type Recording struct {
	ID              string
	Title           string
	Subtitle        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TranscribedText string
	Status          TranscriptionStatus
	Audio           []byte
}
