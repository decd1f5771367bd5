package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/store"
)

// CommitResult reports what a Commit call did.
type CommitResult struct {
	BatchID string `json:"batch_id"`

	// Applied counts changes that mutated a canonical bookmark.
	Applied int `json:"applied"`

	// Skipped counts stale changes: an update or mark_deleted whose bookmark
	// is gone, or a new whose URL is already held in the family.
	Skipped int `json:"skipped"`

	// Remaining counts changes still pending under the batch.
	Remaining int `json:"remaining"`

	// Status is the batch status after the call.
	Status ir.BatchStatus `json:"status"`
}

// Commit applies a pending_review batch.
//
// A nil changeIDs selects every pending change; otherwise only the changes
// whose ids appear in changeIDs are selected and unknown ids are ignored.
// Selected changes are applied in staging order and then deleted, whether
// they were applied or skipped as stale. When no change remains, the batch
// becomes committed.
//
// The whole call is one transaction. Any error leaves canonical bookmarks,
// history, pending changes, and the batch exactly as they were.
func (e *Engine) Commit(ctx context.Context, batchID string, changeIDs []string) (CommitResult, error) {
	if batchID == "" {
		return CommitResult{}, invalidInput("batch id is required")
	}

	result := CommitResult{BatchID: batchID}

	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		batch, err := tx.GetBatch(ctx, batchID)
		if err != nil {
			return lookup("batch", batchID, err)
		}
		if batch.Status != ir.BatchPendingReview {
			return alreadyProcessed(batchID, batch.Status)
		}

		changes, err := tx.ListChanges(ctx, batchID)
		if err != nil {
			return err
		}
		selected := selectChanges(changes, changeIDs)
		now := e.now()

		for _, c := range selected {
			applied, err := e.apply(ctx, tx, batch, c, now)
			if err != nil {
				return fmt.Errorf("apply change %s (seq %d): %w", c.ID, c.Seq, err)
			}
			if applied {
				result.Applied++
			} else {
				result.Skipped++
				e.logger.Info("skipped stale change",
					"batch", batchID, "change", c.ID, "type", c.Type(), "url", changeURL(c), "bookmark", c.BookmarkID)
			}
			if err := tx.DeleteChange(ctx, c.ID); err != nil {
				return err
			}
		}

		result.Remaining = len(changes) - len(selected)
		result.Status = batch.Status
		if result.Remaining > 0 {
			return nil
		}

		ok, err := tx.TransitionBatch(ctx, batchID, ir.BatchCommitted, now)
		if err != nil {
			return err
		}
		if !ok {
			return alreadyProcessed(batchID, batch.Status)
		}
		result.Status = ir.BatchCommitted
		return nil
	})
	if err != nil {
		return CommitResult{}, storeAccess("commit batch "+batchID, err)
	}

	e.logger.Info("committed batch",
		"batch", batchID,
		"applied", result.Applied,
		"skipped", result.Skipped,
		"remaining", result.Remaining,
		"status", result.Status,
	)
	return result, nil
}

// selectChanges keeps the staging order of changes.
func selectChanges(changes []ir.Change, ids []string) []ir.Change {
	if ids == nil {
		return changes
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	selected := make([]ir.Change, 0, len(ids))
	for _, c := range changes {
		if want[c.ID] {
			selected = append(selected, c)
		}
	}
	return selected
}

// changeURL returns the URL a change targets.
func changeURL(c ir.Change) string {
	switch p := c.Payload.(type) {
	case ir.NewPayload:
		return p.Record.URL
	case ir.UpdatePayload:
		return p.New.URL
	case ir.MarkDeletedPayload:
		return p.URL
	}
	return ""
}

// apply mutates the canonical store for one change. It returns false when
// the change is stale.
func (e *Engine) apply(ctx context.Context, tx *store.Tx, batch ir.Batch, c ir.Change, now time.Time) (bool, error) {
	switch p := c.Payload.(type) {
	case ir.NewPayload:
		return e.applyNew(ctx, tx, batch, p, now)
	case ir.UpdatePayload:
		return e.applyUpdate(ctx, tx, c.BookmarkID, p, now)
	case ir.MarkDeletedPayload:
		return e.applyMarkDeleted(ctx, tx, c.BookmarkID, now)
	default:
		return false, fmt.Errorf("unsupported payload %T", c.Payload)
	}
}

func (e *Engine) applyNew(ctx context.Context, tx *store.Tx, batch ir.Batch, p ir.NewPayload, now time.Time) (bool, error) {
	_, err := tx.FindBookmarkByURL(ctx, batch.Family, p.Record.URL)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	b := ir.Bookmark{
		ID:            e.ids.Generate(),
		URL:           p.Record.URL,
		Title:         p.Record.Title,
		FolderPath:    p.Record.Folder,
		Family:        batch.Family,
		SourceBrowser: batch.Source,
		SourceProfile: batch.Profile,
		Version:       1,
		Status:        ir.StatusSynced,
		LastSyncedAt:  now,
	}
	if err := tx.InsertBookmark(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) applyUpdate(ctx context.Context, tx *store.Tx, bookmarkID string, p ir.UpdatePayload, now time.Time) (bool, error) {
	b, ok, err := loadForMutation(ctx, tx, bookmarkID)
	if !ok || err != nil {
		return false, err
	}
	if err := tx.InsertHistory(ctx, ir.SnapshotOf(e.ids.Generate(), b, now)); err != nil {
		return false, err
	}

	b.Title = p.New.Title
	b.FolderPath = p.New.Folder
	b.Version++
	b.Status = ir.StatusSynced
	b.LastSyncedAt = now
	if err := tx.UpdateBookmark(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) applyMarkDeleted(ctx context.Context, tx *store.Tx, bookmarkID string, now time.Time) (bool, error) {
	b, ok, err := loadForMutation(ctx, tx, bookmarkID)
	if !ok || err != nil {
		return false, err
	}
	if e.deletePolicy == DeleteSoft && b.Status == ir.StatusAbsentOnSource {
		return false, nil
	}
	if err := tx.InsertHistory(ctx, ir.SnapshotOf(e.ids.Generate(), b, now)); err != nil {
		return false, err
	}

	if e.deletePolicy == DeleteSoft {
		b.Version++
		b.Status = ir.StatusAbsentOnSource
		if err := tx.UpdateBookmark(ctx, b); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := tx.DeleteBookmark(ctx, b.ID); err != nil {
		return false, err
	}
	return true, nil
}

// loadForMutation returns ok=false without error when the bookmark is gone.
func loadForMutation(ctx context.Context, tx *store.Tx, id string) (ir.Bookmark, bool, error) {
	if id == "" {
		return ir.Bookmark{}, false, nil
	}
	b, err := tx.GetBookmark(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ir.Bookmark{}, false, nil
	}
	if err != nil {
		return ir.Bookmark{}, false, err
	}
	return b, true, nil
}

// Reject closes a pending_review batch without applying it.
//
// Its pending changes are kept, orphaned under the rejected batch.
func (e *Engine) Reject(ctx context.Context, batchID string) (ir.Batch, error) {
	if batchID == "" {
		return ir.Batch{}, invalidInput("batch id is required")
	}

	var batch ir.Batch
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		batch, err = tx.GetBatch(ctx, batchID)
		if err != nil {
			return lookup("batch", batchID, err)
		}
		if batch.Status != ir.BatchPendingReview {
			return alreadyProcessed(batchID, batch.Status)
		}

		now := e.now()
		ok, err := tx.TransitionBatch(ctx, batchID, ir.BatchRejected, now)
		if err != nil {
			return err
		}
		if !ok {
			return alreadyProcessed(batchID, batch.Status)
		}
		batch.Status = ir.BatchRejected
		batch.CompletedAt = &now
		return nil
	})
	if err != nil {
		return ir.Batch{}, storeAccess("reject batch "+batchID, err)
	}

	e.logger.Info("rejected batch", "batch", batchID)
	return batch, nil
}
