package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/marksync/internal/ir"
)

const bookmarkColumns = `id, url, title, folder_path, family, source_browser, source_profile, version, status, last_synced_at`

// BookmarkQuery filters ListBookmarks.
type BookmarkQuery struct {
	// Search matches title or URL, case-insensitively, as a substring.
	Search string
	// Family restricts results to one source family when set.
	Family ir.SourceFamily
	// Limit caps the number of results when > 0.
	Limit int
}

// BookmarksByFamily returns every bookmark in a source family.
// Results ordered by url ASC, id ASC.
func (qs queries) BookmarksByFamily(ctx context.Context, family ir.SourceFamily) ([]ir.Bookmark, error) {
	rows, err := qs.q.QueryContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE family = ?
		ORDER BY url COLLATE BINARY ASC, id ASC
	`, string(family))
	if err != nil {
		return nil, fmt.Errorf("query bookmarks by family: %w", err)
	}
	return collectBookmarks(rows)
}

// ListBookmarks returns bookmarks matching q.
// Results ordered by family ASC, url ASC.
func (qs queries) ListBookmarks(ctx context.Context, q BookmarkQuery) ([]ir.Bookmark, error) {
	var where []string
	var args []any

	if q.Family != "" {
		where = append(where, "family = ?")
		args = append(args, string(q.Family))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		where = append(where, `(title LIKE ? ESCAPE '\' OR url LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY family ASC, url COLLATE BINARY ASC, id ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := qs.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	return collectBookmarks(rows)
}

// GetBookmark retrieves a bookmark by ID.
// Returns an error wrapping ErrNotFound if it does not exist.
func (qs queries) GetBookmark(ctx context.Context, id string) (ir.Bookmark, error) {
	row := qs.q.QueryRowContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE id = ?
	`, id)

	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Bookmark{}, fmt.Errorf("bookmark %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.Bookmark{}, fmt.Errorf("get bookmark %s: %w", id, err)
	}
	return b, nil
}

// FindBookmarkByURL returns the bookmark holding url within a family.
// Returns an error wrapping ErrNotFound if there is none.
func (qs queries) FindBookmarkByURL(ctx context.Context, family ir.SourceFamily, url string) (ir.Bookmark, error) {
	row := qs.q.QueryRowContext(ctx, `
		SELECT `+bookmarkColumns+`
		FROM bookmarks
		WHERE family = ? AND url = ?
	`, string(family), url)

	b, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Bookmark{}, fmt.Errorf("bookmark %s in %s: %w", url, family, ErrNotFound)
	}
	if err != nil {
		return ir.Bookmark{}, fmt.Errorf("find bookmark by url: %w", err)
	}
	return b, nil
}

// InsertBookmark inserts a new canonical bookmark.
// A second bookmark with the same (family, url) fails; see IsUniqueViolation.
func (qs queries) InsertBookmark(ctx context.Context, b ir.Bookmark) error {
	_, err := qs.q.ExecContext(ctx, `
		INSERT INTO bookmarks (`+bookmarkColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ID,
		b.URL,
		b.Title,
		b.FolderPath,
		string(b.Family),
		b.SourceBrowser,
		b.SourceProfile,
		b.Version,
		string(b.Status),
		formatTime(b.LastSyncedAt),
	)
	if err != nil {
		return fmt.Errorf("insert bookmark: %w", err)
	}
	return nil
}

// UpdateBookmark overwrites the mutable fields of an existing bookmark.
// Returns an error wrapping ErrNotFound if no row was updated.
func (qs queries) UpdateBookmark(ctx context.Context, b ir.Bookmark) error {
	res, err := qs.q.ExecContext(ctx, `
		UPDATE bookmarks
		SET url = ?, title = ?, folder_path = ?, version = ?, status = ?, last_synced_at = ?
		WHERE id = ?
	`,
		b.URL,
		b.Title,
		b.FolderPath,
		b.Version,
		string(b.Status),
		formatTime(b.LastSyncedAt),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("update bookmark: %w", err)
	}
	return requireAffected(res, "bookmark", b.ID)
}

// DeleteBookmark removes a bookmark.
// Returns an error wrapping ErrNotFound if it does not exist.
func (qs queries) DeleteBookmark(ctx context.Context, id string) error {
	res, err := qs.q.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}
	return requireAffected(res, "bookmark", id)
}

// CountBookmarks returns the number of bookmarks in a family, or in all
// families when family is empty.
func (qs queries) CountBookmarks(ctx context.Context, family ir.SourceFamily) (int, error) {
	var count int
	var err error
	if family == "" {
		err = qs.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks`).Scan(&count)
	} else {
		err = qs.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookmarks WHERE family = ?`, string(family)).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count bookmarks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (ir.Bookmark, error) {
	var b ir.Bookmark
	var family, status, lastSynced string

	if err := row.Scan(
		&b.ID, &b.URL, &b.Title, &b.FolderPath, &family,
		&b.SourceBrowser, &b.SourceProfile, &b.Version, &status, &lastSynced,
	); err != nil {
		return ir.Bookmark{}, err
	}

	t, err := parseTime(lastSynced)
	if err != nil {
		return ir.Bookmark{}, err
	}

	b.Family = ir.SourceFamily(family)
	b.Status = ir.RecordStatus(status)
	b.LastSyncedAt = t
	return b, nil
}

func collectBookmarks(rows *sql.Rows) ([]ir.Bookmark, error) {
	defer rows.Close()

	bookmarks := []ir.Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookmarks: %w", err)
	}
	return bookmarks, nil
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
