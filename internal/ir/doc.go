// Package ir provides the shared record types for marksync.
//
// This package contains type definitions and their wire encodings only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - URL is the natural key of a bookmark within one SourceFamily
//   - Bookmark.Version starts at 1 and only ever moves by +1
//   - Change payloads are a closed tagged union keyed by ChangeType
//   - All JSON tags use snake_case
package ir
