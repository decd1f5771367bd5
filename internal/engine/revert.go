package engine

import (
	"context"
	"errors"

	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/store"
)

// Revert restores a bookmark's URL, title, and folder from one of its
// history snapshots.
//
// The current state is snapshotted first, the version is bumped, and the
// bookmark returns to synced. Restoring a URL that another bookmark of the
// same family now holds fails with INVALID_INPUT.
func (e *Engine) Revert(ctx context.Context, bookmarkID, historyID string) (ir.Bookmark, error) {
	if bookmarkID == "" || historyID == "" {
		return ir.Bookmark{}, invalidInput("bookmark id and history id are required")
	}

	var b ir.Bookmark
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		b, err = tx.GetBookmark(ctx, bookmarkID)
		if err != nil {
			return lookup("bookmark", bookmarkID, err)
		}
		h, err := tx.GetHistory(ctx, historyID)
		if err != nil {
			return lookup("history", historyID, err)
		}
		if h.BookmarkID != b.ID {
			return invalidReference(historyID, bookmarkID, h.BookmarkID)
		}

		if h.URL != b.URL {
			other, err := tx.FindBookmarkByURL(ctx, b.Family, h.URL)
			switch {
			case err == nil && other.ID != b.ID:
				return &Error{
					Code:    CodeInvalidInput,
					Message: "restored url " + h.URL + " is held by bookmark " + other.ID,
					Details: map[string]string{"url": h.URL, "bookmark_id": other.ID},
				}
			case err != nil && !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		now := e.now()
		if err := tx.InsertHistory(ctx, ir.SnapshotOf(e.ids.Generate(), b, now)); err != nil {
			return err
		}

		b.URL = h.URL
		b.Title = h.Title
		b.FolderPath = h.FolderPath
		b.Version++
		b.Status = ir.StatusSynced
		b.LastSyncedAt = now
		return tx.UpdateBookmark(ctx, b)
	})
	if err != nil {
		return ir.Bookmark{}, storeAccess("revert bookmark "+bookmarkID, err)
	}

	e.logger.Info("reverted bookmark",
		"bookmark", bookmarkID, "history", historyID, "version", b.Version)
	return b, nil
}
