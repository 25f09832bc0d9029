package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voxlog/voxlog/internal/model"
)

// StartRun creates a pipeline run in the running state with a generated
// time-sortable ID and the current timestamp, capturing the recording's
// transcribed text at start as the run input. Returns the stored run.
func (s *Store) StartRun(ctx context.Context, pipelineID, recordingID, input string) (model.PipelineRun, error) {
	run := model.PipelineRun{
		ID:          uuid.Must(uuid.NewV7()).String(),
		PipelineID:  pipelineID,
		RecordingID: recordingID,
		Input:       input,
		Status:      model.RunRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipelineRuns (id, pipelineId, recordingId, input, status, startedAt, completedAt, error, output)
		VALUES (?, ?, ?, ?, ?, ?, NULL, '', '')
	`, run.ID, run.PipelineID, run.RecordingID, run.Input, string(run.Status), toMillis(run.StartedAt))
	if err != nil {
		return model.PipelineRun{}, transportErr("failed to start pipeline run", err)
	}

	s.notify(Change{Table: "pipelineRuns", Op: OpPut, ID: run.ID, Entity: run})
	return run, nil
}

// UpdateRun fully replaces the run matched by ID. Used for the terminal
// running→completed and running→failed transitions; runs are never deleted.
func (s *Store) UpdateRun(ctx context.Context, run model.PipelineRun) (model.PipelineRun, error) {
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = toMillis(*run.CompletedAt)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pipelineRuns
		SET pipelineId = ?, recordingId = ?, input = ?, status = ?,
		    startedAt = ?, completedAt = ?, error = ?, output = ?
		WHERE id = ?
	`, run.PipelineID, run.RecordingID, run.Input, string(run.Status),
		toMillis(run.StartedAt), completedAt, run.Error, run.Output, run.ID)
	if err != nil {
		return model.PipelineRun{}, transportErr("failed to update pipeline run", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.PipelineRun{}, transportErr("failed to update pipeline run", err)
	}
	if affected == 0 {
		return model.PipelineRun{}, notFoundErr("pipeline run", run.ID)
	}

	s.notify(Change{Table: "pipelineRuns", Op: OpPut, ID: run.ID, Entity: run})
	return run, nil
}

// GetRun retrieves a single pipeline run by ID.
// Returns a KindNotFound error if no such run exists.
func (s *Store) GetRun(ctx context.Context, id string) (model.PipelineRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pipelineId, recordingId, input, status, startedAt, completedAt, error, output
		FROM pipelineRuns
		WHERE id = ?
	`, id)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PipelineRun{}, notFoundErr("pipeline run", id)
	}
	if err != nil {
		return model.PipelineRun{}, transportErr("failed to read pipeline run", err)
	}
	return run, nil
}

// ListRunsForRecording returns all runs against a recording, most recent
// first by start time.
func (s *Store) ListRunsForRecording(ctx context.Context, recordingID string) ([]model.PipelineRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipelineId, recordingId, input, status, startedAt, completedAt, error, output
		FROM pipelineRuns
		WHERE recordingId = ?
		ORDER BY startedAt DESC, id DESC
	`, recordingID)
	if err != nil {
		return nil, transportErr("failed to list pipeline runs", err)
	}
	defer rows.Close()

	runs := []model.PipelineRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, transportErr("failed to scan pipeline run", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, transportErr("failed to iterate pipeline runs", err)
	}

	return runs, nil
}

// AddResult inserts one transformation-step outcome with a generated ID.
// The completion timestamp is stamped at insert time if unset.
func (s *Store) AddResult(ctx context.Context, r model.TransformationResult) (model.TransformationResult, error) {
	if r.ID == "" {
		r.ID = uuid.Must(uuid.NewV7()).String()
	}
	if r.CompletedAt.IsZero() {
		r.CompletedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transformationResults (id, pipelineRunId, transformationId, status, startedAt, completedAt, error, output)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.PipelineRunID, r.TransformationID, string(r.Status),
		toMillis(r.StartedAt), toMillis(r.CompletedAt), r.Error, r.Output)
	if err != nil {
		return model.TransformationResult{}, transportErr("failed to add transformation result", err)
	}

	s.notify(Change{Table: "transformationResults", Op: OpPut, ID: r.ID, Entity: r})
	return r, nil
}

// ListResultsForRun returns the step outcomes of one run ordered by start
// time, which matches pipeline sequence order during execution.
func (s *Store) ListResultsForRun(ctx context.Context, runID string) ([]model.TransformationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pipelineRunId, transformationId, status, startedAt, completedAt, error, output
		FROM transformationResults
		WHERE pipelineRunId = ?
		ORDER BY startedAt ASC, id ASC
	`, runID)
	if err != nil {
		return nil, transportErr("failed to list transformation results", err)
	}
	defer rows.Close()

	results := []model.TransformationResult{}
	for rows.Next() {
		var r model.TransformationResult
		var status string
		var startedAt, completedAt int64
		if err := rows.Scan(&r.ID, &r.PipelineRunID, &r.TransformationID, &status,
			&startedAt, &completedAt, &r.Error, &r.Output); err != nil {
			return nil, transportErr("failed to scan transformation result", err)
		}
		r.Status = model.RunStatus(status)
		r.StartedAt = fromMillis(startedAt)
		r.CompletedAt = fromMillis(completedAt)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, transportErr("failed to iterate transformation results", err)
	}

	return results, nil
}

func scanRun(row rowScanner) (model.PipelineRun, error) {
	var run model.PipelineRun
	var status string
	var startedAt int64
	var completedAt sql.NullInt64

	if err := row.Scan(&run.ID, &run.PipelineID, &run.RecordingID, &run.Input, &status,
		&startedAt, &completedAt, &run.Error, &run.Output); err != nil {
		return model.PipelineRun{}, err
	}

	run.Status = model.RunStatus(status)
	run.StartedAt = fromMillis(startedAt)
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		run.CompletedAt = &t
	}
	return run, nil
}
