package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/marksync/internal/ir"
)

// ChangeCounts tallies staged changes by type.
type ChangeCounts struct {
	New         int `json:"new"`
	Update      int `json:"update"`
	MarkDeleted int `json:"mark_deleted"`
}

// Total returns the number of changes across all types.
func (c ChangeCounts) Total() int {
	return c.New + c.Update + c.MarkDeleted
}

// Add increments the counter for t.
func (c *ChangeCounts) Add(t ir.ChangeType) {
	switch t {
	case ir.ChangeNew:
		c.New++
	case ir.ChangeUpdate:
		c.Update++
	case ir.ChangeMarkDeleted:
		c.MarkDeleted++
	}
}

// InsertChange stages a change under its batch.
// The batch must exist (foreign key constraint) and seq must be unique
// within the batch.
func (qs queries) InsertChange(ctx context.Context, c ir.Change) error {
	payload, err := marshalPayload(c.Payload)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}

	_, err = qs.q.ExecContext(ctx, `
		INSERT INTO pending_changes (id, batch_id, seq, change_type, bookmark_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.BatchID,
		c.Seq,
		string(c.Type()),
		nullString(c.BookmarkID),
		payload,
	)
	if err != nil {
		return fmt.Errorf("insert change: %w", err)
	}
	return nil
}

// ListChanges returns the batch's remaining changes in staging order.
// Results ordered by seq ASC, id ASC.
func (qs queries) ListChanges(ctx context.Context, batchID string) ([]ir.Change, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT id, batch_id, seq, change_type, bookmark_id, payload
		FROM pending_changes
		WHERE batch_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	changes := []ir.Change{}
	for rows.Next() {
		var c ir.Change
		var changeType, payload string
		var bookmarkID sql.NullString

		if err := rows.Scan(&c.ID, &c.BatchID, &c.Seq, &changeType, &bookmarkID, &payload); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		p, err := unmarshalPayload(changeType, payload)
		if err != nil {
			return nil, fmt.Errorf("change %s: %w", c.ID, err)
		}
		c.BookmarkID = bookmarkID.String
		c.Payload = p
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate changes: %w", err)
	}
	return changes, nil
}

// CountChanges returns the per-type counts of a batch's remaining changes.
func (qs queries) CountChanges(ctx context.Context, batchID string) (ChangeCounts, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT change_type, COUNT(*)
		FROM pending_changes
		WHERE batch_id = ?
		GROUP BY change_type
	`, batchID)
	if err != nil {
		return ChangeCounts{}, fmt.Errorf("count changes: %w", err)
	}
	defer rows.Close()

	var counts ChangeCounts
	for rows.Next() {
		var changeType string
		var n int
		if err := rows.Scan(&changeType, &n); err != nil {
			return ChangeCounts{}, fmt.Errorf("scan change count: %w", err)
		}
		switch ir.ChangeType(changeType) {
		case ir.ChangeNew:
			counts.New = n
		case ir.ChangeUpdate:
			counts.Update = n
		case ir.ChangeMarkDeleted:
			counts.MarkDeleted = n
		}
	}
	if err := rows.Err(); err != nil {
		return ChangeCounts{}, fmt.Errorf("iterate change counts: %w", err)
	}
	return counts, nil
}

// DeleteChange removes a consumed change.
// Returns an error wrapping ErrNotFound if it does not exist.
func (qs queries) DeleteChange(ctx context.Context, id string) error {
	res, err := qs.q.ExecContext(ctx, `DELETE FROM pending_changes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete change: %w", err)
	}
	return requireAffected(res, "change", id)
}
