package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ChangePayload is the diff carried by a staged change.
// The set of implementations is closed: NewPayload, UpdatePayload and
// MarkDeletedPayload.
type ChangePayload interface {
	ChangeType() ChangeType
	isChangePayload()
}

// RecordFields are the comparable fields of a canonical bookmark.
type RecordFields struct {
	Title  string       `json:"title"`
	Folder string       `json:"folder"`
	Status RecordStatus `json:"status,omitempty"`
}

// NewPayload carries a record that is absent from the canonical store.
type NewPayload struct {
	Record NormalizedRecord
}

// UpdatePayload carries the canonical fields seen at reconciliation time and
// the incoming record that should replace them.
type UpdatePayload struct {
	Old RecordFields
	New NormalizedRecord
}

// MarkDeletedPayload identifies a canonical record no longer on the source.
type MarkDeletedPayload struct {
	URL    string
	Title  string
	Folder string
}

func (NewPayload) ChangeType() ChangeType         { return ChangeNew }
func (UpdatePayload) ChangeType() ChangeType      { return ChangeUpdate }
func (MarkDeletedPayload) ChangeType() ChangeType { return ChangeMarkDeleted }

func (NewPayload) isChangePayload()         {}
func (UpdatePayload) isChangePayload()      {}
func (MarkDeletedPayload) isChangePayload() {}

// payloadWire is the stored JSON shape of every payload variant.
type payloadWire struct {
	Type   ChangeType        `json:"type"`
	Record *NormalizedRecord `json:"record,omitempty"`
	Old    *RecordFields     `json:"old,omitempty"`
	New    *NormalizedRecord `json:"new,omitempty"`
	URL    string            `json:"url,omitempty"`
	Title  string            `json:"title,omitempty"`
	Folder string            `json:"folder,omitempty"`
}

// MarshalPayload encodes p as JSON with a "type" discriminator.
// HTML escaping is disabled so stored URLs stay readable.
func MarshalPayload(p ChangePayload) ([]byte, error) {
	var w payloadWire
	switch v := p.(type) {
	case NewPayload:
		rec := v.Record
		w = payloadWire{Type: ChangeNew, Record: &rec}
	case UpdatePayload:
		old, rec := v.Old, v.New
		w = payloadWire{Type: ChangeUpdate, Old: &old, New: &rec}
	case MarkDeletedPayload:
		w = payloadWire{Type: ChangeMarkDeleted, URL: v.URL, Title: v.Title, Folder: v.Folder}
	case nil:
		return nil, fmt.Errorf("marshal payload: nil payload")
	default:
		return nil, fmt.Errorf("marshal payload: unsupported type %T", p)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalPayload decodes a payload written by MarshalPayload.
// Unknown discriminators and missing variant sections are errors.
func UnmarshalPayload(data []byte) (ChangePayload, error) {
	var w payloadWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	switch w.Type {
	case ChangeNew:
		if w.Record == nil {
			return nil, fmt.Errorf("unmarshal payload: new payload missing record")
		}
		return NewPayload{Record: *w.Record}, nil
	case ChangeUpdate:
		if w.Old == nil || w.New == nil {
			return nil, fmt.Errorf("unmarshal payload: update payload missing old or new")
		}
		return UpdatePayload{Old: *w.Old, New: *w.New}, nil
	case ChangeMarkDeleted:
		return MarkDeletedPayload{URL: w.URL, Title: w.Title, Folder: w.Folder}, nil
	default:
		return nil, fmt.Errorf("unmarshal payload: unknown type %q", w.Type)
	}
}

// changeJSON is the external projection of a Change.
type changeJSON struct {
	ID         string          `json:"id"`
	BatchID    string          `json:"batch_id"`
	Seq        int64           `json:"seq"`
	Type       ChangeType      `json:"type"`
	BookmarkID string          `json:"bookmark_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// MarshalJSON renders the change with its payload inlined.
func (c Change) MarshalJSON() ([]byte, error) {
	payload, err := MarshalPayload(c.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(changeJSON{
		ID:         c.ID,
		BatchID:    c.BatchID,
		Seq:        c.Seq,
		Type:       c.Type(),
		BookmarkID: c.BookmarkID,
		Payload:    payload,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Change) UnmarshalJSON(data []byte) error {
	var cj changeJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	payload, err := UnmarshalPayload(cj.Payload)
	if err != nil {
		return err
	}
	if payload.ChangeType() != cj.Type {
		return fmt.Errorf("change %s: type %q does not match payload %q", cj.ID, cj.Type, payload.ChangeType())
	}
	*c = Change{
		ID:         cj.ID,
		BatchID:    cj.BatchID,
		Seq:        cj.Seq,
		BookmarkID: cj.BookmarkID,
		Payload:    payload,
	}
	return nil
}
