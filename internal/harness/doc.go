// Package harness runs YAML scenarios against the reconciliation engine.
//
// Each scenario executes on a fresh in-memory store with sequential ids and
// a stepping clock, so the trace it produces is identical on every run and
// can be compared against a golden file.
//
// # Scenario Format
//
//	name: rename_and_revert
//	description: "What this scenario validates"
//	delete_policy: remove        # optional: remove (default) or soft
//	setup:
//	  - action: reconcile
//	    args: { family: firefox, records: [{url: "https://a.com", title: A, folder: Dev}] }
//	  - action: commit
//	    args: { batch: $last }
//	flow:
//	  - invoke: reconcile
//	    args: { family: firefox, records: [{url: "https://a.com", title: A2, folder: Dev}] }
//	    expect:
//	      case: Success
//	      result: { update: 1 }
//	assertions:
//	  - type: final_state
//	    table: bookmarks
//	    where: { url: "https://a.com" }
//	    expect: { title: A2, version: 2 }
//
// # Actions
//
//   - reconcile: family, source, profile, and either records or path (a
//     source file read with the family's reader, relative to the scenario)
//   - commit: batch, optional changes (staging seqs to select)
//   - reject: batch
//   - revert: family, url, version, optional history_url
//   - fail_history: url; makes every later history write for url fail
//
// A batch argument is "$last", "$N" for the Nth batch staged by the
// scenario, or a literal batch id.
//
// A step that returns an engine error completes with the error code as its
// case, e.g. ALREADY_PROCESSED. Flow steps without an expect clause must
// complete with Success; setup steps always must.
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: an action appears exactly N times
//   - final_state: exactly one row matches where and has the expected values
//   - row_count: exactly N rows match where
package harness
