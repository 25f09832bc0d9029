package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/voxlog/voxlog/internal/model"
)

// ListPipelines returns all pipelines ordered by title.
func (s *Store) ListPipelines(ctx context.Context) ([]model.Pipeline, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, createdAt, updatedAt, steps
		FROM pipelines
		ORDER BY title ASC, id ASC
	`)
	if err != nil {
		return nil, transportErr("failed to list pipelines", err)
	}
	defer rows.Close()

	pipelines := []model.Pipeline{}
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, transportErr("failed to scan pipeline", err)
		}
		pipelines = append(pipelines, p)
	}
	if err := rows.Err(); err != nil {
		return nil, transportErr("failed to iterate pipelines", err)
	}

	return pipelines, nil
}

// GetPipeline retrieves a single pipeline by ID.
// Returns a KindNotFound error if no such pipeline exists.
func (s *Store) GetPipeline(ctx context.Context, id string) (model.Pipeline, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, createdAt, updatedAt, steps
		FROM pipelines
		WHERE id = ?
	`, id)

	p, err := scanPipeline(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Pipeline{}, notFoundErr("pipeline", id)
	}
	if err != nil {
		return model.Pipeline{}, transportErr("failed to read pipeline", err)
	}
	return p, nil
}

// AddPipeline inserts a pipeline. Zero timestamps are stamped with the
// current time.
func (s *Store) AddPipeline(ctx context.Context, p model.Pipeline) (model.Pipeline, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	steps, err := marshalSteps(p.Steps)
	if err != nil {
		return model.Pipeline{}, transportErr("failed to encode pipeline", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pipelines (id, title, description, createdAt, updatedAt, steps)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Description, toMillis(p.CreatedAt), toMillis(p.UpdatedAt), steps)
	if err != nil {
		return model.Pipeline{}, transportErr("failed to add pipeline", err)
	}

	s.notify(Change{Table: "pipelines", Op: OpPut, ID: p.ID, Entity: p})
	return p, nil
}

// UpdatePipeline fully replaces the pipeline matched by ID and stamps
// UpdatedAt. Returns a KindNotFound error if it does not exist.
func (s *Store) UpdatePipeline(ctx context.Context, p model.Pipeline) (model.Pipeline, error) {
	p.UpdatedAt = time.Now().UTC()

	steps, err := marshalSteps(p.Steps)
	if err != nil {
		return model.Pipeline{}, transportErr("failed to encode pipeline", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pipelines
		SET title = ?, description = ?, createdAt = ?, updatedAt = ?, steps = ?
		WHERE id = ?
	`, p.Title, p.Description, toMillis(p.CreatedAt), toMillis(p.UpdatedAt), steps, p.ID)
	if err != nil {
		return model.Pipeline{}, transportErr("failed to update pipeline", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Pipeline{}, transportErr("failed to update pipeline", err)
	}
	if affected == 0 {
		return model.Pipeline{}, notFoundErr("pipeline", p.ID)
	}

	s.notify(Change{Table: "pipelines", Op: OpPut, ID: p.ID, Entity: p})
	return p, nil
}

// DeletePipeline removes one pipeline by ID, leaving its transformations in
// place. Returns a KindNotFound error if no row was deleted.
func (s *Store) DeletePipeline(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id)
	if err != nil {
		return transportErr("failed to delete pipeline", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return transportErr("failed to delete pipeline", err)
	}
	if affected == 0 {
		return notFoundErr("pipeline", id)
	}

	s.notify(Change{Table: "pipelines", Op: OpDelete, ID: id})
	return nil
}

// DeletePipelineCascade removes a pipeline and every transformation it
// references as one atomic transaction spanning exactly the two tables.
// A fault between the deletes leaves both tables unchanged.
func (s *Store) DeletePipelineCascade(ctx context.Context, id string) error {
	p, err := s.GetPipeline(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return transportErr("failed to begin cascade delete", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, step := range p.Steps {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transformations WHERE id = ?`, step.TransformationID); err != nil {
			return transportErr("failed to cascade-delete transformation", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM pipelines WHERE id = ?`, id); err != nil {
		return transportErr("failed to cascade-delete pipeline", err)
	}

	if err := tx.Commit(); err != nil {
		return transportErr("failed to commit cascade delete", err)
	}

	// Notifications only after the transaction is durable.
	for _, step := range p.Steps {
		s.notify(Change{Table: "transformations", Op: OpDelete, ID: step.TransformationID})
	}
	s.notify(Change{Table: "pipelines", Op: OpDelete, ID: id})
	return nil
}

func scanPipeline(row rowScanner) (model.Pipeline, error) {
	var p model.Pipeline
	var createdAt, updatedAt int64
	var steps string

	if err := row.Scan(&p.ID, &p.Title, &p.Description, &createdAt, &updatedAt, &steps); err != nil {
		return model.Pipeline{}, err
	}

	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)

	parsed, err := unmarshalSteps(steps)
	if err != nil {
		return model.Pipeline{}, err
	}
	p.Steps = parsed
	return p, nil
}
