package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/marksync/internal/ir"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestBookmark creates a synced version-1 bookmark.
func createTestBookmark(id, url, title string, family ir.SourceFamily) ir.Bookmark {
	return ir.Bookmark{
		ID:            id,
		URL:           url,
		Title:         title,
		FolderPath:    "Root",
		Family:        family,
		SourceBrowser: string(family),
		Version:       1,
		Status:        ir.StatusSynced,
		LastSyncedAt:  testTime,
	}
}

// createTestBatch creates a pending batch.
func createTestBatch(id string, family ir.SourceFamily) ir.Batch {
	return ir.Batch{
		ID:        id,
		Source:    string(family),
		Family:    family,
		Status:    ir.BatchPendingReview,
		CreatedAt: testTime,
	}
}
