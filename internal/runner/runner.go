// Package runner executes pipelines against recordings: each enabled step
// feeds its output into the next, every executed step leaves a result row,
// and the run log records the terminal outcome.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxlog/voxlog/internal/model"
	"github.com/voxlog/voxlog/internal/store"
	"github.com/voxlog/voxlog/internal/transform"
)

// Runner drives pipeline runs. Safe for sequential use; the store is the
// single writer underneath.
type Runner struct {
	store *store.Store
	chat  transform.ChatClient
}

// New returns a Runner. chat may be nil when no language-model provider is
// configured; prompt transformations then fail their step.
func New(st *store.Store, chat transform.ChatClient) *Runner {
	return &Runner{store: st, chat: chat}
}

// Execute runs a pipeline against a recording's transcribed text.
//
// The run starts in the running state with the transcript captured as input.
// Steps execute strictly in sequence; disabled steps are skipped and leave no
// result row. A step whose transformation has been deleted fails with a
// dangling-reference error. The first step failure short-circuits the rest
// and fails the run; otherwise the final step's output completes it.
//
// The terminal run is returned in both cases. The error return carries the
// failing step's error, nil on completion.
func (r *Runner) Execute(ctx context.Context, pipelineID, recordingID string) (model.PipelineRun, error) {
	pipeline, err := r.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		return model.PipelineRun{}, err
	}
	rec, err := r.store.GetRecording(ctx, recordingID)
	if err != nil {
		return model.PipelineRun{}, err
	}

	run, err := r.store.StartRun(ctx, pipeline.ID, rec.ID, rec.TranscribedText)
	if err != nil {
		return model.PipelineRun{}, err
	}
	slog.Info("pipeline run started", "run", run.ID, "pipeline", pipeline.ID, "recording", rec.ID)

	text := run.Input
	for i, step := range pipeline.Steps {
		if !step.Enabled {
			slog.Debug("step skipped", "run", run.ID, "step", i, "transformation", step.TransformationID)
			continue
		}

		out, stepErr := r.executeStep(ctx, run.ID, step.TransformationID, text)
		if stepErr != nil {
			return r.failRun(ctx, run, fmt.Sprintf("step %d (%s): %v", i, step.TransformationID, stepErr), stepErr)
		}
		text = out
	}

	now := time.Now().UTC()
	run.Status = model.RunCompleted
	run.CompletedAt = &now
	run.Output = text
	run, err = r.store.UpdateRun(ctx, run)
	if err != nil {
		return run, err
	}
	slog.Info("pipeline run completed", "run", run.ID)
	return run, nil
}

// executeStep resolves and applies one transformation, recording its result
// row whether it succeeds or fails.
func (r *Runner) executeStep(ctx context.Context, runID, transformationID, input string) (string, error) {
	startedAt := time.Now().UTC()

	result := model.TransformationResult{
		PipelineRunID:    runID,
		TransformationID: transformationID,
		StartedAt:        startedAt,
	}

	out, err := r.applyTransformation(ctx, transformationID, input)
	if err != nil {
		result.Status = model.RunFailed
		result.Error = err.Error()
	} else {
		result.Status = model.RunCompleted
		result.Output = out
	}

	if _, addErr := r.store.AddResult(ctx, result); addErr != nil {
		slog.Error("failed to record step result", "run", runID, "transformation", transformationID, "error", addErr)
	}
	return out, err
}

func (r *Runner) applyTransformation(ctx context.Context, id, input string) (string, error) {
	t, err := r.store.GetTransformation(ctx, id)
	if store.IsNotFound(err) {
		return "", store.DanglingRef("transformation", id)
	}
	if err != nil {
		return "", err
	}

	tr, err := transform.New(t, r.chat)
	if err != nil {
		return "", err
	}
	return tr.Apply(ctx, input)
}

// failRun records the terminal failed state. Runs never revert to running.
func (r *Runner) failRun(ctx context.Context, run model.PipelineRun, msg string, cause error) (model.PipelineRun, error) {
	now := time.Now().UTC()
	run.Status = model.RunFailed
	run.CompletedAt = &now
	run.Error = msg

	updated, err := r.store.UpdateRun(ctx, run)
	if err != nil {
		slog.Error("failed to record run failure", "run", run.ID, "error", err)
		return run, cause
	}
	slog.Warn("pipeline run failed", "run", run.ID, "error", msg)
	return updated, cause
}
