package engine

import (
	"context"
	"strings"

	"github.com/roach88/marksync/internal/source"
)

// SyncRequest names a source reader and how to label its batch.
type SyncRequest struct {
	Reader source.Reader

	// Source labels the batch. Defaults to the reader's family name.
	Source  string
	Profile string
}

// Sync reads every record from req.Reader and reconciles them against the
// reader's family. A reader failure is a SOURCE_READ error and stages
// nothing.
func (e *Engine) Sync(ctx context.Context, req SyncRequest) (ReconcileResult, error) {
	if req.Reader == nil {
		return ReconcileResult{}, invalidInput("source reader is required")
	}
	family := req.Reader.Family()
	label := strings.TrimSpace(req.Source)
	if label == "" {
		label = family.String()
	}

	res, err := req.Reader.Read(ctx)
	if err != nil {
		e.logger.Error("source read failed", "source", label, "error", err)
		return ReconcileResult{}, SourceReadError(label, err)
	}
	e.logger.Debug("read source",
		"source", label,
		"records", len(res.Records),
		"total", res.Metadata.SourceTotal,
		"filtered", res.Metadata.Filtered,
		"invalid", res.Metadata.Invalid,
	)

	meta := res.Metadata
	return e.Reconcile(ctx, ReconcileRequest{
		Family:   family,
		Source:   label,
		Profile:  req.Profile,
		Records:  res.Records,
		Metadata: &meta,
	})
}
