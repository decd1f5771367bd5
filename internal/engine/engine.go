package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/marksync/internal/store"
)

// DeletePolicy decides what committing a mark_deleted change does to the
// canonical bookmark. A history snapshot is written first either way.
type DeletePolicy string

const (
	// DeleteRemove removes the bookmark row. This is the default.
	DeleteRemove DeletePolicy = "remove"

	// DeleteSoft keeps the row with status absent_on_source and bumps its
	// version. The bookmark returns to synced if its URL reappears.
	DeleteSoft DeletePolicy = "soft"
)

// ParseDeletePolicy parses a policy name. The empty string selects
// DeleteRemove.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch DeletePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DeleteRemove:
		return DeleteRemove, nil
	case DeleteSoft:
		return DeleteSoft, nil
	}
	return "", fmt.Errorf("unknown delete policy %q (want %q or %q)", s, DeleteRemove, DeleteSoft)
}

// Engine runs reconciliation, commit, reject, and revert against one store.
//
// Engine holds no mutable state of its own. Every operation is a single
// store transaction, and the store serializes writers, so an Engine is safe
// for concurrent use.
type Engine struct {
	store        *store.Store
	ids          IDGenerator
	clock        Clock
	logger       *slog.Logger
	deletePolicy DeletePolicy
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithIDGenerator replaces the default UUIDv7 generator.
func WithIDGenerator(ids IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = ids
	}
}

// WithClock replaces the system clock.
func WithClock(c Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. By default the engine logs nothing.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithDeletePolicy sets the mark_deleted commit policy.
//
// Default: DeleteRemove
func WithDeletePolicy(p DeletePolicy) EngineOption {
	return func(e *Engine) {
		e.deletePolicy = p
	}
}

// New creates an Engine over s.
func New(s *store.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store:        s,
		ids:          UUIDv7Generator{},
		clock:        SystemClock{},
		logger:       slog.New(slog.DiscardHandler),
		deletePolicy: DeleteRemove,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// DeletePolicy returns the configured mark_deleted policy.
func (e *Engine) DeletePolicy() DeletePolicy {
	return e.deletePolicy
}

// now returns the clock time in UTC, without a monotonic reading, so values
// compare equal after a round trip through the store.
func (e *Engine) now() time.Time {
	return e.clock.Now().UTC()
}
