package testutil

import (
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialIDs_Sequence(t *testing.T) {
	gen := NewSequentialIDs("batch")

	assert.Equal(t, "batch-0001", gen.Generate())
	assert.Equal(t, "batch-0002", gen.Generate())
	assert.Equal(t, "batch-0003", gen.Generate())
}

func TestSequentialIDs_EmptyPrefixDefault(t *testing.T) {
	gen := NewSequentialIDs("")

	// Empty prefix uses default
	assert.Equal(t, "id-0001", gen.Generate())
}

func TestSequentialIDs_SortInGenerationOrder(t *testing.T) {
	gen := NewSequentialIDs("x")

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = gen.Generate()
	}

	assert.True(t, sort.StringsAreSorted(ids))
}

func TestSequentialIDs_Reset(t *testing.T) {
	gen := NewSequentialIDs("id")
	gen.Generate()
	gen.Generate()

	gen.Reset()

	assert.Equal(t, "id-0001", gen.Generate())
}

func TestSequentialIDs_ThreadSafe(t *testing.T) {
	gen := NewSequentialIDs("t")

	var mu sync.Mutex
	seen := make(map[string]bool)

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				id := gen.Generate()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Len(t, seen, 1000)
}
