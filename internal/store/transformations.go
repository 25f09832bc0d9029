package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/voxlog/voxlog/internal/model"
)

// ListTransformations returns all transformations ordered by name.
func (s *Store) ListTransformations(ctx context.Context) ([]model.Transformation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, createdAt, updatedAt, kind, params
		FROM transformations
		ORDER BY name ASC, id ASC
	`)
	if err != nil {
		return nil, transportErr("failed to list transformations", err)
	}
	defer rows.Close()

	transformations := []model.Transformation{}
	for rows.Next() {
		t, err := scanTransformation(rows)
		if err != nil {
			return nil, transportErr("failed to scan transformation", err)
		}
		transformations = append(transformations, t)
	}
	if err := rows.Err(); err != nil {
		return nil, transportErr("failed to iterate transformations", err)
	}

	return transformations, nil
}

// GetTransformation retrieves a single transformation by ID.
// Returns a KindNotFound error if no such transformation exists.
func (s *Store) GetTransformation(ctx context.Context, id string) (model.Transformation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, createdAt, updatedAt, kind, params
		FROM transformations
		WHERE id = ?
	`, id)

	t, err := scanTransformation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transformation{}, notFoundErr("transformation", id)
	}
	if err != nil {
		return model.Transformation{}, transportErr("failed to read transformation", err)
	}
	return t, nil
}

// AddTransformation inserts a transformation. Zero timestamps are stamped
// with the current time.
func (s *Store) AddTransformation(ctx context.Context, t model.Transformation) (model.Transformation, error) {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	params, err := marshalParams(t)
	if err != nil {
		return model.Transformation{}, transportErr("failed to encode transformation", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transformations (id, name, description, createdAt, updatedAt, kind, params)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Name, t.Description, toMillis(t.CreatedAt), toMillis(t.UpdatedAt), string(t.Kind), params)
	if err != nil {
		return model.Transformation{}, transportErr("failed to add transformation", err)
	}

	s.notify(Change{Table: "transformations", Op: OpPut, ID: t.ID, Entity: t})
	return t, nil
}

// UpdateTransformation fully replaces the transformation matched by ID and
// stamps UpdatedAt. Returns a KindNotFound error if it does not exist.
func (s *Store) UpdateTransformation(ctx context.Context, t model.Transformation) (model.Transformation, error) {
	t.UpdatedAt = time.Now().UTC()

	params, err := marshalParams(t)
	if err != nil {
		return model.Transformation{}, transportErr("failed to encode transformation", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE transformations
		SET name = ?, description = ?, createdAt = ?, updatedAt = ?, kind = ?, params = ?
		WHERE id = ?
	`, t.Name, t.Description, toMillis(t.CreatedAt), toMillis(t.UpdatedAt), string(t.Kind), params, t.ID)
	if err != nil {
		return model.Transformation{}, transportErr("failed to update transformation", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Transformation{}, transportErr("failed to update transformation", err)
	}
	if affected == 0 {
		return model.Transformation{}, notFoundErr("transformation", t.ID)
	}

	s.notify(Change{Table: "transformations", Op: OpPut, ID: t.ID, Entity: t})
	return t, nil
}

// DeleteTransformation removes one transformation by ID.
//
// No cascade: pipelines referencing the deleted transformation keep their
// dangling reference, which surfaces as a per-step failure at execution
// time rather than being cleaned up eagerly.
func (s *Store) DeleteTransformation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transformations WHERE id = ?`, id)
	if err != nil {
		return transportErr("failed to delete transformation", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return transportErr("failed to delete transformation", err)
	}
	if affected == 0 {
		return notFoundErr("transformation", id)
	}

	s.notify(Change{Table: "transformations", Op: OpDelete, ID: id})
	return nil
}

func scanTransformation(row rowScanner) (model.Transformation, error) {
	var t model.Transformation
	var createdAt, updatedAt int64
	var kind, params string

	if err := row.Scan(&t.ID, &t.Name, &t.Description, &createdAt, &updatedAt, &kind, &params); err != nil {
		return model.Transformation{}, err
	}

	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	t.Kind = model.TransformationKind(kind)
	if err := unmarshalParams(&t, params); err != nil {
		return model.Transformation{}, err
	}
	return t, nil
}
