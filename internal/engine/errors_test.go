package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/marksync/internal/ir"
	"github.com/roach88/marksync/internal/store"
)

func TestError_Message(t *testing.T) {
	err := notFound("batch", "b-1")
	assert.Equal(t, "NOT_FOUND: batch b-1 not found", err.Error())
	assert.Equal(t, "b-1", err.Details["batch_id"])

	cause := errors.New("disk full")
	wrapped := &Error{Code: CodeStoreAccess, Message: "commit", Err: cause}
	assert.Equal(t, "STORE_ACCESS: commit: disk full", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
}

func TestCodeOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", alreadyProcessed("b-1", ir.BatchCommitted))

	assert.Equal(t, CodeAlreadyProcessed, CodeOf(err))
	assert.True(t, IsAlreadyProcessed(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.False(t, IsCode(nil, CodeNotFound))
}

func TestStoreAccess_PassesEngineErrorsThrough(t *testing.T) {
	inner := invalidReference("h-1", "b-1", "b-2")
	err := storeAccess("revert", fmt.Errorf("apply: %w", inner))

	assert.Equal(t, CodeInvalidReference, CodeOf(err))
	assert.Nil(t, storeAccess("noop", nil))

	plain := storeAccess("commit", errors.New("locked"))
	assert.Equal(t, CodeStoreAccess, CodeOf(plain))
}

func TestLookup_MapsNotFound(t *testing.T) {
	missing := lookup("bookmark", "b-9", fmt.Errorf("bookmark b-9: %w", store.ErrNotFound))
	assert.True(t, IsNotFound(missing))

	broken := lookup("bookmark", "b-9", errors.New("database is locked"))
	assert.Equal(t, CodeStoreAccess, CodeOf(broken))
}

func TestSourceReadError(t *testing.T) {
	cause := errors.New("no such file")
	err := SourceReadError("places.sqlite", cause)

	assert.Equal(t, CodeSourceRead, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "places.sqlite", err.Details["source"])
}
