package engine

import "time"

// Clock supplies wall-clock timestamps for batches, bookmarks, and history.
//
// Timestamps are informational. Ordering inside a batch comes from the
// change seq, never from time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
