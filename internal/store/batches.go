package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/marksync/internal/ir"
)

const batchColumns = `id, source, family, profile, status, created_at, completed_at`

// InsertBatch inserts a new batch row.
func (qs queries) InsertBatch(ctx context.Context, b ir.Batch) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO sync_batches (`+batchColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.Source,
		string(b.Family),
		b.Profile,
		string(b.Status),
		formatTime(b.CreatedAt),
		formatNullTime(b.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by ID.
// Returns an error wrapping ErrNotFound if it does not exist.
func (qs queries) GetBatch(ctx context.Context, id string) (ir.Batch, error) {
	row := qs.q.QueryRowContext(ctx, `
		SELECT `+batchColumns+`
		FROM sync_batches
		WHERE id = ?
	`, id)

	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Batch{}, fmt.Errorf("batch %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Batch{}, fmt.Errorf("get batch %s: %w", id, err)
	}
	return b, nil
}

// ListBatches returns batches, newest first, optionally filtered by status.
func (qs queries) ListBatches(ctx context.Context, status ir.BatchStatus) ([]ir.Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM sync_batches`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	batches := []ir.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// TransitionBatch moves a batch out of pending_review.
//
// The update is conditional on the current status, so two callers racing
// on the same batch cannot both succeed. Returns transitioned=false when the
// batch exists but is no longer pending_review.
func (qs queries) TransitionBatch(ctx context.Context, id string, to ir.BatchStatus, at time.Time) (transitioned bool, err error) {
	if !to.Terminal() {
		return false, fmt.Errorf("transition batch %s: %q is not a terminal status", id, to)
	}

	res, err := qs.q.ExecContext(ctx, `
		UPDATE sync_batches
		SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, string(to), formatTime(at), id, string(ir.BatchPendingReview))
	if err != nil {
		return false, fmt.Errorf("transition batch %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition batch %s: rows affected: %w", id, err)
	}
	return n > 0, nil
}

func scanBatch(row rowScanner) (ir.Batch, error) {
	var b ir.Batch
	var family, status, created string
	var completed sql.NullString

	if err := row.Scan(&b.ID, &b.Source, &family, &b.Profile, &status, &created, &completed); err != nil {
		return ir.Batch{}, err
	}

	createdAt, err := parseTime(created)
	if err != nil {
		return ir.Batch{}, err
	}
	completedAt, err := parseNullTime(completed)
	if err != nil {
		return ir.Batch{}, err
	}

	b.Family = ir.SourceFamily(family)
	b.Status = ir.BatchStatus(status)
	b.CreatedAt = createdAt
	b.CompletedAt = completedAt
	return b, nil
}
