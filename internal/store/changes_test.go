package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/marksync/internal/ir"
)

func insertTestChanges(t *testing.T, s *Store, batchID string) []ir.Change {
	t.Helper()
	ctx := context.Background()

	if err := s.InsertBatch(ctx, createTestBatch(batchID, ir.FamilyFirefox)); err != nil {
		t.Fatalf("InsertBatch() failed: %v", err)
	}

	changes := []ir.Change{
		{
			ID: batchID + "-c1", BatchID: batchID, Seq: 1,
			Payload: ir.NewPayload{Record: ir.NormalizedRecord{URL: "https://new.com", Title: "New"}},
		},
		{
			ID: batchID + "-c2", BatchID: batchID, Seq: 2, BookmarkID: "bm-1",
			Payload: ir.UpdatePayload{
				Old: ir.RecordFields{Title: "A", Folder: "Dev", Status: ir.StatusSynced},
				New: ir.NormalizedRecord{URL: "https://a.com", Title: "A2", Folder: "Dev"},
			},
		},
		{
			ID: batchID + "-c3", BatchID: batchID, Seq: 3, BookmarkID: "bm-2",
			Payload: ir.MarkDeletedPayload{URL: "https://gone.com", Title: "Gone"},
		},
	}
	// Insert out of order to prove reads use seq
	for _, i := range []int{2, 0, 1} {
		if err := s.InsertChange(ctx, changes[i]); err != nil {
			t.Fatalf("InsertChange(%s) failed: %v", changes[i].ID, err)
		}
	}
	return changes
}

func TestListChanges_SeqOrder(t *testing.T) {
	s := createTestStore(t)
	want := insertTestChanges(t, s, "batch-1")

	got, err := s.ListChanges(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("ListChanges() failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i].ID || got[i].Seq != want[i].Seq || got[i].BookmarkID != want[i].BookmarkID {
			t.Errorf("change[%d] = %+v, want %+v", i, got[i], want[i])
		}
		if got[i].Payload != want[i].Payload {
			t.Errorf("change[%d] payload = %#v, want %#v", i, got[i].Payload, want[i].Payload)
		}
	}
}

func TestListChanges_EmptyBatch(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ListChanges(context.Background(), "none")
	if err != nil {
		t.Fatalf("ListChanges() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestListChanges_CorruptPayload(t *testing.T) {
	s := createTestStore(t)
	insertTestChanges(t, s, "batch-1")

	if _, err := s.db.Exec(`UPDATE pending_changes SET payload = '{"type":"new"' WHERE id = 'batch-1-c1'`); err != nil {
		t.Fatalf("corrupt payload: %v", err)
	}

	if _, err := s.ListChanges(context.Background(), "batch-1"); err == nil {
		t.Error("expected error for corrupt payload")
	}
}

func TestListChanges_TypeMismatch(t *testing.T) {
	s := createTestStore(t)
	insertTestChanges(t, s, "batch-1")

	if _, err := s.db.Exec(`UPDATE pending_changes SET change_type = 'update' WHERE id = 'batch-1-c1'`); err != nil {
		t.Fatalf("update change_type: %v", err)
	}

	if _, err := s.ListChanges(context.Background(), "batch-1"); err == nil {
		t.Error("expected error when change_type disagrees with payload")
	}
}

func TestCountChanges(t *testing.T) {
	s := createTestStore(t)
	insertTestChanges(t, s, "batch-1")

	counts, err := s.CountChanges(context.Background(), "batch-1")
	if err != nil {
		t.Fatalf("CountChanges() failed: %v", err)
	}
	want := ChangeCounts{New: 1, Update: 1, MarkDeleted: 1}
	if counts != want {
		t.Errorf("CountChanges() = %+v, want %+v", counts, want)
	}
	if counts.Total() != 3 {
		t.Errorf("Total() = %d, want 3", counts.Total())
	}
}

func TestChangeCounts_Add(t *testing.T) {
	var c ChangeCounts
	c.Add(ir.ChangeNew)
	c.Add(ir.ChangeNew)
	c.Add(ir.ChangeMarkDeleted)
	c.Add(ir.ChangeType("bogus"))

	if c != (ChangeCounts{New: 2, MarkDeleted: 1}) {
		t.Errorf("counts = %+v", c)
	}
}

func TestInsertChange_DuplicateSeq(t *testing.T) {
	s := createTestStore(t)
	insertTestChanges(t, s, "batch-1")

	err := s.InsertChange(context.Background(), ir.Change{
		ID: "dup", BatchID: "batch-1", Seq: 1,
		Payload: ir.NewPayload{Record: ir.NormalizedRecord{URL: "https://x.com"}},
	})
	if !IsUniqueViolation(err) {
		t.Errorf("InsertChange(dup seq) error = %v, want unique violation", err)
	}
}

func TestDeleteChange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	insertTestChanges(t, s, "batch-1")

	if err := s.DeleteChange(ctx, "batch-1-c2"); err != nil {
		t.Fatalf("DeleteChange() failed: %v", err)
	}
	if err := s.DeleteChange(ctx, "batch-1-c2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteChange() error = %v, want ErrNotFound", err)
	}

	counts, err := s.CountChanges(ctx, "batch-1")
	if err != nil {
		t.Fatalf("CountChanges() failed: %v", err)
	}
	if counts.Update != 0 || counts.Total() != 2 {
		t.Errorf("counts after delete = %+v", counts)
	}
}
