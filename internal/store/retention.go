package store

import (
	"context"
	"fmt"
	"log/slog"
)

// RetentionStrategy selects how many recordings are kept before the oldest
// ones are purged.
type RetentionStrategy string

const (
	// RetainForever keeps every recording; cleanup is a no-op.
	RetainForever RetentionStrategy = "keep-forever"
	// RetainLimitCount keeps at most MaxCount recordings, purging oldest first.
	RetainLimitCount RetentionStrategy = "limit-count"
)

// RetentionPolicy is the configured retention rule. MaxCount applies only to
// RetainLimitCount.
type RetentionPolicy struct {
	Strategy RetentionStrategy `yaml:"strategy"`
	MaxCount int               `yaml:"maxCount"`
}

// Validate rejects unknown strategies and non-positive limits.
func (p RetentionPolicy) Validate() error {
	switch p.Strategy {
	case RetainForever:
		return nil
	case RetainLimitCount:
		if p.MaxCount <= 0 {
			return fmt.Errorf("retention maxCount must be positive, got %d", p.MaxCount)
		}
		return nil
	default:
		return fmt.Errorf("unknown retention strategy %q", p.Strategy)
	}
}

// ApplyRetention evaluates the policy against a fresh count and deletes the
// excess recordings, oldest first by creation time. Repeated invocations
// converge to the configured maximum and then become no-ops. Designed to run
// after every new recording is added.
//
// Returns the IDs it deleted so callers can reconcile derived state.
func (s *Store) ApplyRetention(ctx context.Context, policy RetentionPolicy) ([]string, error) {
	if err := policy.Validate(); err != nil {
		return nil, transportErr("invalid retention policy", err)
	}
	if policy.Strategy == RetainForever {
		return nil, nil
	}

	// Fresh count every invocation: no caching, so convergence is monotonic.
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recordings`).Scan(&count); err != nil {
		return nil, transportErr("failed to count recordings", err)
	}

	excess := count - policy.MaxCount
	if excess <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM recordings
		ORDER BY createdAt ASC, id ASC
		LIMIT ?
	`, excess)
	if err != nil {
		return nil, transportErr("failed to select recordings for cleanup", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, transportErr("failed to scan recording id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, transportErr("failed to iterate recording ids", err)
	}

	deleted, err := s.DeleteRecordings(ctx, ids)
	if err != nil {
		return nil, err
	}

	slog.Info("retention cleanup", "strategy", policy.Strategy, "max", policy.MaxCount, "deleted", deleted)
	return ids, nil
}
