package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/marksync/internal/ir"
)

func TestWithTx_Commits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertBookmark(ctx, createTestBookmark("b1", "https://a.com", "A", ir.FamilyFirefox)); err != nil {
			return err
		}
		// Reads inside the tx see its own writes
		_, err := tx.GetBookmark(ctx, "b1")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx() failed: %v", err)
	}

	if _, err := s.GetBookmark(ctx, "b1"); err != nil {
		t.Errorf("bookmark not visible after commit: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertBatch(ctx, createTestBatch("batch-1", ir.FamilyFirefox)); err != nil {
			return err
		}
		if err := tx.InsertBookmark(ctx, createTestBookmark("b1", "https://a.com", "A", ir.FamilyFirefox)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}

	if _, err := s.GetBookmark(ctx, "b1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("bookmark visible after rollback: %v", err)
	}
	if _, err := s.GetBatch(ctx, "batch-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("batch visible after rollback: %v", err)
	}
}

func TestWithTx_RollsBackOnConstraintFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.InsertBookmark(ctx, createTestBookmark("b1", "https://a.com", "A", ir.FamilyFirefox)); err != nil {
		t.Fatalf("InsertBookmark() failed: %v", err)
	}

	err := s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.DeleteBookmark(ctx, "b1"); err != nil {
			return err
		}
		if err := tx.InsertBookmark(ctx, createTestBookmark("b2", "https://b.com", "B", ir.FamilyFirefox)); err != nil {
			return err
		}
		// Duplicate primary key fails the whole unit
		return tx.InsertBookmark(ctx, createTestBookmark("b2", "https://c.com", "C", ir.FamilyFirefox))
	})
	if err == nil {
		t.Fatal("expected error from duplicate insert")
	}

	if _, err := s.GetBookmark(ctx, "b1"); err != nil {
		t.Errorf("deleted bookmark not restored by rollback: %v", err)
	}
	if _, err := s.GetBookmark(ctx, "b2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("inserted bookmark visible after rollback: %v", err)
	}
}
