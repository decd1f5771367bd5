// Package store provides SQLite-backed durable storage for marksync.
//
// The store holds four tables:
//   - bookmarks: canonical records, unique per (family, url)
//   - sync_batches: one row per reconciliation run with its review status
//   - pending_changes: staged mutations, ordered by seq within a batch
//   - bookmark_history: append-only pre-mutation snapshots
//
// # Transactions
//
// Every read and write method exists on both *Store and *Tx. Callers that
// need all-or-nothing semantics use Store.WithTx; a returned error rolls
// back every statement executed through the Tx.
//
// Transactions begin IMMEDIATE (_txlock=immediate), so a writer takes the
// database write lock before its first read. Together with a single open
// connection this serializes reconciliation and commit runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// All list queries carry an explicit ORDER BY so results are stable.
package store
