package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/voxlog/voxlog/internal/model"
)

// ListRecordings returns all recordings, newest first.
// Returns an empty slice (not nil) when the table is empty.
func (s *Store) ListRecordings(ctx context.Context) ([]model.Recording, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, subtitle, createdAt, updatedAt, transcribedText, transcriptionStatus, audio
		FROM recordings
		ORDER BY createdAt DESC, id ASC
	`)
	if err != nil {
		return nil, transportErr("failed to list recordings", err)
	}
	defer rows.Close()

	recordings := []model.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, transportErr("failed to scan recording", err)
		}
		recordings = append(recordings, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, transportErr("failed to iterate recordings", err)
	}

	return recordings, nil
}

// GetRecording retrieves a single recording by ID.
// Returns a KindNotFound error if no such recording exists.
func (s *Store) GetRecording(ctx context.Context, id string) (model.Recording, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, subtitle, createdAt, updatedAt, transcribedText, transcriptionStatus, audio
		FROM recordings
		WHERE id = ?
	`, id)

	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Recording{}, notFoundErr("recording", id)
	}
	if err != nil {
		return model.Recording{}, transportErr("failed to read recording", err)
	}
	return rec, nil
}

// AddRecording inserts a recording. Zero timestamps are stamped with the
// current time; transcribed text is NFC-normalized on the way in. The stored
// value is returned and broadcast to change subscribers.
func (s *Store) AddRecording(ctx context.Context, rec model.Recording) (model.Recording, error) {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	if rec.Status == "" {
		rec.Status = model.StatusUnprocessed
	}
	rec.TranscribedText = NormalizeText(rec.TranscribedText)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, title, subtitle, createdAt, updatedAt, transcribedText, transcriptionStatus, audio)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Title, rec.Subtitle, toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
		rec.TranscribedText, string(rec.Status), rec.Audio)
	if err != nil {
		return model.Recording{}, transportErr("failed to add recording", err)
	}

	s.notify(Change{Table: "recordings", Op: OpPut, ID: rec.ID, Entity: rec})
	return rec, nil
}

// UpdateRecording fully replaces the recording matched by ID and stamps
// UpdatedAt. Returns a KindNotFound error if the recording does not exist.
func (s *Store) UpdateRecording(ctx context.Context, rec model.Recording) (model.Recording, error) {
	rec.UpdatedAt = time.Now().UTC()
	rec.TranscribedText = NormalizeText(rec.TranscribedText)

	res, err := s.db.ExecContext(ctx, `
		UPDATE recordings
		SET title = ?, subtitle = ?, createdAt = ?, updatedAt = ?,
		    transcribedText = ?, transcriptionStatus = ?, audio = ?
		WHERE id = ?
	`, rec.Title, rec.Subtitle, toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
		rec.TranscribedText, string(rec.Status), rec.Audio, rec.ID)
	if err != nil {
		return model.Recording{}, transportErr("failed to update recording", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return model.Recording{}, transportErr("failed to update recording", err)
	}
	if affected == 0 {
		return model.Recording{}, notFoundErr("recording", rec.ID)
	}

	s.notify(Change{Table: "recordings", Op: OpPut, ID: rec.ID, Entity: rec})
	return rec, nil
}

// DeleteRecording removes one recording by ID.
// Returns a KindNotFound error if no row was deleted.
func (s *Store) DeleteRecording(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recordings WHERE id = ?`, id)
	if err != nil {
		return transportErr("failed to delete recording", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return transportErr("failed to delete recording", err)
	}
	if affected == 0 {
		return notFoundErr("recording", id)
	}

	s.notify(Change{Table: "recordings", Op: OpDelete, ID: id})
	return nil
}

// DeleteRecordings bulk-deletes the given ID set in one statement.
// Missing IDs are ignored; the operation reports how many rows were removed.
func (s *Store) DeleteRecordings(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]byte, 0, len(ids)*2-1)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM recordings WHERE id IN (`+string(placeholders)+`)`, args...)
	if err != nil {
		return 0, transportErr("failed to bulk-delete recordings", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, transportErr("failed to bulk-delete recordings", err)
	}

	for _, id := range ids {
		s.notify(Change{Table: "recordings", Op: OpDelete, ID: id})
	}
	return affected, nil
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (model.Recording, error) {
	var rec model.Recording
	var createdAt, updatedAt int64
	var status string

	if err := row.Scan(&rec.ID, &rec.Title, &rec.Subtitle, &createdAt, &updatedAt,
		&rec.TranscribedText, &status, &rec.Audio); err != nil {
		return model.Recording{}, err
	}

	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.Status = model.TranscriptionStatus(status)
	return rec, nil
}
