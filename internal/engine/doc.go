// Package engine reconciles source bookmarks against the canonical store.
//
// Every operation is a synchronous request against the store and runs as
// one SQLite transaction:
//
//   - Reconcile diffs a source's records against its family's canonical
//     subset and stages the result as a pending_review batch. It never
//     touches canonical rows.
//   - Commit applies a batch, or a subset of it, in staging order. Every
//     mutation is preceded by a history snapshot.
//   - Reject closes a batch without applying it.
//   - Revert restores a bookmark from one of its history snapshots.
//
// A batch leaves pending_review exactly once. The status is re-read inside
// the commit and reject transactions, so a second caller racing on the same
// batch gets ALREADY_PROCESSED instead of applying it twice.
package engine
