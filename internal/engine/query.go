package engine

import (
	"context"

	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/store"
)

// BatchView is a batch with its remaining pending changes.
type BatchView struct {
	ir.Batch
	Counts  store.ChangeCounts `json:"counts"`
	Changes []ir.Change        `json:"changes"`
}

// BatchSummary is a batch with per-type counts of its remaining changes.
type BatchSummary struct {
	ir.Batch
	Counts store.ChangeCounts `json:"counts"`
}

// BookmarkQuery filters ListBookmarks.
type BookmarkQuery struct {
	// Query matches title or URL as a case-insensitive substring.
	Query  string
	Family ir.SourceFamily
	Limit  int
}

// GetBatch returns a batch and its remaining changes in staging order.
func (e *Engine) GetBatch(ctx context.Context, batchID string) (BatchView, error) {
	if batchID == "" {
		return BatchView{}, invalidInput("batch id is required")
	}

	var view BatchView
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		batch, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return lookup("batch", batchID, err)
		}
		changes, err := tx.ListChanges(ctx, batchID)
		if err != nil {
			return err
		}

		view = BatchView{Batch: batch, Changes: changes}
		for _, c := range changes {
			view.Counts.Add(c.Type())
		}
		return nil
	})
	if err != nil {
		return BatchView{}, storeAccess("get batch "+batchID, err)
	}
	return view, nil
}

// ListBatches returns batches newest first. An empty status lists all.
func (e *Engine) ListBatches(ctx context.Context, status ir.BatchStatus) ([]BatchSummary, error) {
	if status != "" && !status.Valid() {
		return nil, invalidInput("unknown batch status %q", status)
	}

	batches, err := e.store.ListBatches(ctx, status)
	if err != nil {
		return nil, storeAccess("list batches", err)
	}

	summaries := make([]BatchSummary, 0, len(batches))
	for _, b := range batches {
		counts, err := e.store.CountChanges(ctx, b.ID)
		if err != nil {
			return nil, storeAccess("count changes", err)
		}
		summaries = append(summaries, BatchSummary{Batch: b, Counts: counts})
	}
	return summaries, nil
}

// ListBookmarks returns canonical bookmarks ordered by family then URL.
func (e *Engine) ListBookmarks(ctx context.Context, q BookmarkQuery) ([]ir.Bookmark, error) {
	if q.Family != "" && !q.Family.Valid() {
		return nil, invalidInput("unknown source family %q", q.Family)
	}
	if q.Limit < 0 {
		return nil, invalidInput("limit must not be negative")
	}

	bookmarks, err := e.store.ListBookmarks(ctx, store.BookmarkQuery{
		Search: q.Query,
		Family: q.Family,
		Limit:  q.Limit,
	})
	if err != nil {
		return nil, storeAccess("list bookmarks", err)
	}
	return bookmarks, nil
}

// GetBookmark returns one canonical bookmark.
func (e *Engine) GetBookmark(ctx context.Context, id string) (ir.Bookmark, error) {
	if id == "" {
		return ir.Bookmark{}, invalidInput("bookmark id is required")
	}
	b, err := e.store.GetBookmark(ctx, id)
	if err != nil {
		return ir.Bookmark{}, lookup("bookmark", id, err)
	}
	return b, nil
}

// History returns a bookmark's snapshots, newest version first.
//
// History outlives the bookmark: snapshots of a removed bookmark are still
// listed. NOT_FOUND is returned only when the id has neither.
func (e *Engine) History(ctx context.Context, bookmarkID string) ([]ir.HistorySnapshot, error) {
	if bookmarkID == "" {
		return nil, invalidInput("bookmark id is required")
	}

	snapshots, err := e.store.ListHistory(ctx, bookmarkID)
	if err != nil {
		return nil, storeAccess("list history", err)
	}
	if len(snapshots) > 0 {
		return snapshots, nil
	}

	if _, err := e.store.GetBookmark(ctx, bookmarkID); err != nil {
		return nil, lookup("bookmark", bookmarkID, err)
	}
	return snapshots, nil
}

// Stats summarizes the canonical store.
type Stats struct {
	Bookmarks      int `json:"bookmarks"`
	PendingBatches int `json:"pending_batches"`
}

// Stats counts canonical bookmarks, optionally in one family, and batches
// awaiting review.
func (e *Engine) Stats(ctx context.Context, family ir.SourceFamily) (Stats, error) {
	if family != "" && !family.Valid() {
		return Stats{}, invalidInput("unknown source family %q", family)
	}
	n, err := e.store.CountBookmarks(ctx, family)
	if err != nil {
		return Stats{}, storeAccess("count bookmarks", err)
	}
	pending, err := e.store.ListBatches(ctx, ir.BatchPendingReview)
	if err != nil {
		return Stats{}, storeAccess("list batches", err)
	}
	return Stats{Bookmarks: n, PendingBatches: len(pending)}, nil
}
