// Package source reads bookmarks from browser stores into normalized records.
//
// Three formats are supported: Netscape bookmark HTML exports, Chrome's
// JSON Bookmarks file, and Firefox's places.sqlite. Every reader reports a
// tally alongside its records so reconciliation can flag sources whose
// totals do not add up.
//
// Readers never write to the source. The Firefox reader works on a private
// copy, so a running browser keeps its lock.
package source
