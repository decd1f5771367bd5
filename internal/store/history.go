package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/marksync/internal/ir"
)

const historyColumns = `id, bookmark_id, version, url, title, folder_path, created_at`

// InsertHistory appends a snapshot. History rows are never updated.
func (qs queries) InsertHistory(ctx context.Context, h ir.HistorySnapshot) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO bookmark_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		h.ID,
		h.BookmarkID,
		h.Version,
		h.URL,
		h.Title,
		h.FolderPath,
		formatTime(h.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

// GetHistory retrieves a snapshot by ID.
// Returns an error wrapping ErrNotFound if it does not exist.
func (qs queries) GetHistory(ctx context.Context, id string) (ir.HistorySnapshot, error) {
	row := qs.q.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM bookmark_history
		WHERE id = ?
	`, id)

	h, err := scanHistory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.HistorySnapshot{}, fmt.Errorf("history %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.HistorySnapshot{}, fmt.Errorf("get history %s: %w", id, err)
	}
	return h, nil
}

// ListHistory returns a bookmark's snapshots, newest version first.
func (qs queries) ListHistory(ctx context.Context, bookmarkID string) ([]ir.HistorySnapshot, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM bookmark_history
		WHERE bookmark_id = ?
		ORDER BY version DESC, created_at DESC, id DESC
	`, bookmarkID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	snapshots := []ir.HistorySnapshot{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		snapshots = append(snapshots, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return snapshots, nil
}

func scanHistory(row rowScanner) (ir.HistorySnapshot, error) {
	var h ir.HistorySnapshot
	var created string

	if err := row.Scan(&h.ID, &h.BookmarkID, &h.Version, &h.URL, &h.Title, &h.FolderPath, &created); err != nil {
		return ir.HistorySnapshot{}, err
	}

	t, err := parseTime(created)
	if err != nil {
		return ir.HistorySnapshot{}, err
	}
	h.CreatedAt = t
	return h, nil
}
