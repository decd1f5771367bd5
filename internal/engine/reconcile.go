package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/store"
)

// ReconcileRequest is the input to Reconcile.
type ReconcileRequest struct {
	// Family selects the canonical subset to compare against. When empty it
	// is parsed from Source.
	Family ir.SourceFamily

	// Source labels the batch and becomes source_browser on new bookmarks,
	// e.g. "Firefox (default-release)". Defaults to the family name.
	Source string

	// Profile is recorded on the batch and on new bookmarks.
	Profile string

	// Records in source order. Duplicate URLs are allowed; the first wins.
	Records []ir.NormalizedRecord

	// Metadata is the reader's own tally, if it reported one.
	Metadata *ir.SourceMetadata
}

// ReconcileResult describes the staged batch.
type ReconcileResult struct {
	Batch      ir.Batch           `json:"batch"`
	Counts     store.ChangeCounts `json:"counts"`
	Duplicates int                `json:"duplicates"`
	Warnings   []string           `json:"warnings"`
}

// PlannedChange is a change produced by Diff, before it is bound to a batch.
type PlannedChange struct {
	BookmarkID string
	Payload    ir.ChangePayload
}

// Plan is the outcome of diffing a source against its canonical subset.
type Plan struct {
	Changes []PlannedChange

	// Duplicates counts records dropped because their URL appeared earlier.
	Duplicates int

	// Invalid counts records dropped for having no URL.
	Invalid int
}

// Diff compares incoming records against the canonical bookmarks of family.
//
// Canonical bookmarks outside the family are ignored. Changes are emitted
// as news and updates in incoming order, followed by mark_deleted changes
// in canonical order. Titles and folders compare by exact string equality.
//
// Diff is pure: it neither reads nor writes the store.
func Diff(family ir.SourceFamily, canonical []ir.Bookmark, incoming []ir.NormalizedRecord) Plan {
	index := make(map[string]ir.Bookmark, len(canonical))
	for _, b := range canonical {
		if family.Contains(b) {
			index[b.URL] = b
		}
	}

	var plan Plan
	seen := make(map[string]bool, len(incoming))

	for _, rec := range incoming {
		if rec.URL == "" {
			plan.Invalid++
			continue
		}
		if seen[rec.URL] {
			plan.Duplicates++
			continue
		}
		seen[rec.URL] = true

		existing, ok := index[rec.URL]
		if !ok {
			plan.Changes = append(plan.Changes, PlannedChange{
				Payload: ir.NewPayload{Record: rec},
			})
			continue
		}

		if existing.Title == rec.Title &&
			existing.FolderPath == rec.Folder &&
			existing.Status != ir.StatusAbsentOnSource {
			continue
		}
		plan.Changes = append(plan.Changes, PlannedChange{
			BookmarkID: existing.ID,
			Payload:    ir.UpdatePayload{Old: existing.Fields(), New: rec},
		})
	}

	for _, b := range canonical {
		if !family.Contains(b) || seen[b.URL] || b.Status == ir.StatusAbsentOnSource {
			continue
		}
		plan.Changes = append(plan.Changes, PlannedChange{
			BookmarkID: b.ID,
			Payload: ir.MarkDeletedPayload{
				URL:    b.URL,
				Title:  b.Title,
				Folder: b.FolderPath,
			},
		})
	}

	return plan
}

// Reconcile diffs req.Records against the canonical bookmarks of the
// request's family and stages the result as a new pending_review batch.
//
// Canonical bookmarks are read but never written. Loading the subset,
// inserting the batch, and inserting its changes happen in one transaction:
// on failure no batch exists.
func (e *Engine) Reconcile(ctx context.Context, req ReconcileRequest) (ReconcileResult, error) {
	family, err := resolveFamily(req)
	if err != nil {
		return ReconcileResult{}, err
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = family.String()
	}

	batch := ir.Batch{
		ID:        e.ids.Generate(),
		Source:    source,
		Family:    family,
		Profile:   req.Profile,
		Status:    ir.BatchPendingReview,
		CreatedAt: e.now(),
	}

	var plan Plan
	var counts store.ChangeCounts

	err = e.store.WithTx(ctx, func(tx *store.Tx) error {
		canonical, err := tx.BookmarksByFamily(ctx, family)
		if err != nil {
			return err
		}

		plan = Diff(family, canonical, req.Records)

		if err := tx.InsertBatch(ctx, batch); err != nil {
			return err
		}
		for i, pc := range plan.Changes {
			c := ir.Change{
				ID:         e.ids.Generate(),
				BatchID:    batch.ID,
				Seq:        int64(i + 1),
				BookmarkID: pc.BookmarkID,
				Payload:    pc.Payload,
			}
			if err := tx.InsertChange(ctx, c); err != nil {
				return err
			}
			counts.Add(c.Type())
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, storeAccess("reconcile", err)
	}

	result := ReconcileResult{
		Batch:      batch,
		Counts:     counts,
		Duplicates: plan.Duplicates,
		Warnings:   reconcileWarnings(req, plan),
	}

	e.logger.Info("reconciled source",
		"batch", batch.ID,
		"family", family,
		"source", source,
		"records", len(req.Records),
		"new", counts.New,
		"update", counts.Update,
		"mark_deleted", counts.MarkDeleted,
		"duplicates", plan.Duplicates,
	)
	for _, w := range result.Warnings {
		e.logger.Warn(w, "batch", batch.ID)
	}

	return result, nil
}

func resolveFamily(req ReconcileRequest) (ir.SourceFamily, error) {
	if req.Family != "" {
		if !req.Family.Valid() {
			return "", invalidInput("unknown source family %q", req.Family)
		}
		return req.Family, nil
	}
	if strings.TrimSpace(req.Source) == "" {
		return "", invalidInput("source family is required")
	}
	family, err := ir.ParseFamily(req.Source)
	if err != nil {
		return "", &Error{Code: CodeInvalidInput, Message: "resolve source family", Err: err}
	}
	return family, nil
}

func reconcileWarnings(req ReconcileRequest, plan Plan) []string {
	warnings := []string{}
	if plan.Invalid > 0 {
		warnings = append(warnings, fmt.Sprintf("skipped %d records without a URL", plan.Invalid))
	}
	if m := req.Metadata; m != nil && !m.Consistent(len(req.Records)) {
		warnings = append(warnings, fmt.Sprintf(
			"source reported %d bookmarks but %d are accounted for (%d records, %d filtered, %d invalid)",
			m.SourceTotal, len(req.Records)+m.Filtered+m.Invalid, len(req.Records), m.Filtered, m.Invalid,
		))
	}
	return warnings
}
