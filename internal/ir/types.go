package ir

import "time"

// NormalizedRecord is one bookmark as produced by a source reader.
// It is immutable for the duration of a reconciliation run.
type NormalizedRecord struct {
	URL       string `json:"url" yaml:"url"`
	Title     string `json:"title" yaml:"title"`
	Folder    string `json:"folder" yaml:"folder"`
	SourceTag string `json:"source_tag,omitempty" yaml:"source_tag,omitempty"`
}

// RecordStatus is the sync status of a canonical bookmark.
type RecordStatus string

const (
	StatusSynced         RecordStatus = "synced"
	StatusAbsentOnSource RecordStatus = "absent_on_source"
)

// Valid reports whether s is a known status.
func (s RecordStatus) Valid() bool {
	return s == StatusSynced || s == StatusAbsentOnSource
}

// Bookmark is a canonical bookmark record.
type Bookmark struct {
	ID            string       `json:"id"`
	URL           string       `json:"url"`
	Title         string       `json:"title"`
	FolderPath    string       `json:"folder_path"`
	Family        SourceFamily `json:"family"`
	SourceBrowser string       `json:"source_browser"`
	SourceProfile string       `json:"source_profile,omitempty"`
	Version       int64        `json:"version"` // >= 1, +1 per committed mutation
	Status        RecordStatus `json:"status"`
	LastSyncedAt  time.Time    `json:"last_synced_at"`
}

// Fields returns the comparable fields of b.
func (b Bookmark) Fields() RecordFields {
	return RecordFields{Title: b.Title, Folder: b.FolderPath, Status: b.Status}
}

// BatchStatus is the review state of a batch.
// pending_review is the only non-terminal state.
type BatchStatus string

const (
	BatchPendingReview BatchStatus = "pending_review"
	BatchCommitted     BatchStatus = "committed"
	BatchRejected      BatchStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from s.
func (s BatchStatus) Terminal() bool {
	return s == BatchCommitted || s == BatchRejected
}

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	return s == BatchPendingReview || s.Terminal()
}

// Batch groups the changes staged by one reconciliation run.
type Batch struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	Family      SourceFamily `json:"family"`
	Profile     string       `json:"profile,omitempty"` // source profile, copied onto new bookmarks
	Status      BatchStatus  `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// ChangeType discriminates staged changes.
type ChangeType string

const (
	ChangeNew         ChangeType = "new"
	ChangeUpdate      ChangeType = "update"
	ChangeMarkDeleted ChangeType = "mark_deleted"
)

// Valid reports whether t is a known change type.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeNew, ChangeUpdate, ChangeMarkDeleted:
		return true
	}
	return false
}

// Change is one staged mutation awaiting commit or rejection.
// BookmarkID is empty for ChangeNew and required otherwise.
type Change struct {
	ID         string        `json:"id"`
	BatchID    string        `json:"batch_id"`
	Seq        int64         `json:"seq"` // staging order within the batch
	BookmarkID string        `json:"bookmark_id,omitempty"`
	Payload    ChangePayload `json:"-"`
}

// Type returns the change type carried by the payload.
func (c Change) Type() ChangeType {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.ChangeType()
}

// HistorySnapshot is an immutable copy of a bookmark taken before a mutation.
type HistorySnapshot struct {
	ID         string    `json:"id"`
	BookmarkID string    `json:"bookmark_id"`
	Version    int64     `json:"version"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	FolderPath string    `json:"folder_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// SnapshotOf captures the current state of b.
func SnapshotOf(id string, b Bookmark, at time.Time) HistorySnapshot {
	return HistorySnapshot{
		ID:         id,
		BookmarkID: b.ID,
		Version:    b.Version,
		URL:        b.URL,
		Title:      b.Title,
		FolderPath: b.FolderPath,
		CreatedAt:  at,
	}
}

// SourceMetadata is the optional tally a reader reports alongside its
// records. SourceTotal should equal len(records) + Filtered + Invalid.
type SourceMetadata struct {
	SourceTotal int `json:"source_total" yaml:"source_total"`
	Filtered    int `json:"filtered" yaml:"filtered"`
	Invalid     int `json:"invalid" yaml:"invalid"`
}

// Consistent reports whether the tally accounts for n delivered records.
func (m SourceMetadata) Consistent(n int) bool {
	return m.SourceTotal == n+m.Filtered+m.Invalid
}
