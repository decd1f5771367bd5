package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/marksync/internal/ir"
)

// DefaultCopyTimeout bounds how long the Firefox reader retries copying a
// places database that the browser is writing to.
const DefaultCopyTimeout = 30 * time.Second

const copyRetryInterval = 250 * time.Millisecond

// Root folder guids in places.sqlite.
const (
	placesRootGUID = "root________"
	placesTagsGUID = "tags________"
)

// placesRootNames are the display names of the root folders.
var placesRootNames = map[string]string{
	"menu________": "Bookmarks Menu",
	"toolbar_____": "Bookmarks Toolbar",
	"unfiled_____": "Other Bookmarks",
	"mobile______": "Mobile Bookmarks",
	placesTagsGUID: "Tags",
	placesRootGUID: "",
}

// Firefox reads bookmarks from a Firefox profile's places.sqlite.
//
// The database and its -wal file are copied to a temporary directory first
// and only the copy is opened, so a running Firefox is never blocked.
// Entries under the Tags root are tag assignments, not bookmarks, and are
// counted as filtered.
type Firefox struct {
	path        string
	copyTimeout time.Duration
}

// FirefoxOption configures a Firefox reader.
type FirefoxOption func(*Firefox)

// WithCopyTimeout sets the bounded wait for copying the database.
//
// Default: 30s (DefaultCopyTimeout)
func WithCopyTimeout(d time.Duration) FirefoxOption {
	return func(f *Firefox) {
		f.copyTimeout = d
	}
}

// NewFirefox returns a reader for the places.sqlite at path. A profile
// directory is also accepted.
func NewFirefox(path string, opts ...FirefoxOption) *Firefox {
	f := &Firefox{path: path, copyTimeout: DefaultCopyTimeout}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Family implements Reader.
func (f *Firefox) Family() ir.SourceFamily { return ir.FamilyFirefox }

// Read implements Reader.
func (f *Firefox) Read(ctx context.Context) (Result, error) {
	src, err := placesPath(f.path)
	if err != nil {
		return Result{}, err
	}

	dir, err := os.MkdirTemp("", "marksync-places-*")
	if err != nil {
		return Result{}, fmt.Errorf("create snapshot dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "places.sqlite")
	if err := f.snapshot(ctx, src, snapshot); err != nil {
		return Result{}, err
	}

	db, err := sql.Open("sqlite3", snapshot+"?_query_only=1")
	if err != nil {
		return Result{}, fmt.Errorf("open places snapshot: %w", err)
	}
	defer db.Close()

	return readPlaces(ctx, db)
}

func placesPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat places database: %w", err)
	}
	if info.IsDir() {
		path = filepath.Join(path, "places.sqlite")
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("stat places database: %w", err)
		}
	}
	return path, nil
}

// snapshot copies src (and src-wal when present) to dst, retrying until the
// copy timeout expires.
func (f *Firefox) snapshot(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, f.copyTimeout)
	defer cancel()

	for {
		err := copyFile(src, dst)
		if err == nil {
			err = copyWAL(src+"-wal", dst+"-wal")
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("copy places database: %w", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("copy places database: gave up after %s: %w", f.copyTimeout, err)
		case <-time.After(copyRetryInterval):
		}
	}
}

func copyWAL(src, dst string) error {
	err := copyFile(src, dst)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type placesItem struct {
	id     int64
	typ    int
	parent int64
	title  string
	guid   string
	url    string
}

func readPlaces(ctx context.Context, db *sql.DB) (Result, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, b.type, COALESCE(b.parent, 0), COALESCE(b.title, ''),
		       COALESCE(b.guid, ''), COALESCE(p.url, '')
		FROM moz_bookmarks b
		LEFT JOIN moz_places p ON p.id = b.fk
		WHERE b.type IN (1, 2)
		ORDER BY b.id ASC
	`)
	if err != nil {
		return Result{}, fmt.Errorf("query moz_bookmarks: %w", err)
	}
	defer rows.Close()

	var items []placesItem
	byID := make(map[int64]placesItem)
	for rows.Next() {
		var it placesItem
		if err := rows.Scan(&it.id, &it.typ, &it.parent, &it.title, &it.guid, &it.url); err != nil {
			return Result{}, fmt.Errorf("scan moz_bookmarks: %w", err)
		}
		items = append(items, it)
		byID[it.id] = it
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate moz_bookmarks: %w", err)
	}

	var t tally
	for _, it := range items {
		if it.typ != 1 {
			continue
		}
		folders, tagged := placesFolders(byID, it.parent)
		if tagged {
			t.meta.SourceTotal++
			t.meta.Filtered++
			continue
		}
		title := cleanText(it.title)
		if title == "" {
			title = Untitled
		}
		t.add(it.url, title, joinFolder(folders), it.guid)
	}
	return t.result(), nil
}

// placesFolders walks parent links up to the places root. tagged reports
// whether the walk passed through the Tags root.
func placesFolders(byID map[int64]placesItem, parent int64) (folders []string, tagged bool) {
	seen := make(map[int64]bool)
	id := parent
	for {
		it, ok := byID[id]
		if !ok || it.guid == placesRootGUID || id <= 1 || seen[id] {
			break
		}
		seen[id] = true
		if it.guid == placesTagsGUID {
			tagged = true
		}

		name, isRoot := placesRootNames[it.guid]
		if !isRoot {
			name = cleanText(it.title)
		}
		if name != "" {
			folders = append([]string{name}, folders...)
		}
		id = it.parent
	}
	return folders, tagged
}
