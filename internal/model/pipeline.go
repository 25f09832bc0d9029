package model

import "time"

// PipelineStep references a transformation by ID within a pipeline's ordered
// sequence. Disabled steps are skipped at execution time. A pipeline does not
// own the transformations it references; the referenced transformation may
// have been deleted independently, which surfaces as a dangling-reference
// failure when the step executes.
type PipelineStep struct {
	TransformationID string `json:"transformationId"`
	Enabled          bool   `json:"enabled"`
}

// Pipeline is an ordered, reusable chain of transformation references.
// Step order is semantically significant: execution proceeds in sequence.
type Pipeline struct {
	ID          string
	Title       string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Steps       []PipelineStep
}

// RunStatus tracks the lifecycle of one pipeline execution.
// running → completed and running → failed are the only edges; both are
// terminal. Runs are never deleted, forming an audit trail.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// PipelineRun records one execution of a pipeline against one recording.
// Input captures the recording's transcribed text at start. Output is set
// only on completion, Error only on failure, CompletedAt on either terminal
// transition.
type PipelineRun struct {
	ID          string
	PipelineID  string
	RecordingID string
	Input       string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Output      string
}

// TransformationResult is the outcome of one transformation step executed
// within a pipeline run. One row per executed step; skipped (disabled) steps
// produce no row.
type TransformationResult struct {
	ID               string
	PipelineRunID    string
	TransformationID string
	Status           RunStatus
	StartedAt        time.Time
	CompletedAt      time.Time
	Error            string
	Output           string
}
