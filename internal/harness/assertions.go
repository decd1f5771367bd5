package harness

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/roach88/marksync/internal/store"
)

// identifier matches the table and column names an assertion may name.
// Identifiers are interpolated into SQL, values never are.
var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string

	// Trace is attached for trace assertions only.
	Trace []TraceEvent
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		b.WriteString("\nFull trace:\n")
		for i, ev := range e.Trace {
			if ev.Type == EventInvocation {
				fmt.Fprintf(&b, "  [%d] %s %v\n", i+1, ev.Action, ev.Args)
			}
		}
	}
	return b.String()
}

// AssertionContext provides store access for state assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions checks every assertion and returns one message per
// failure. actx may be nil when no state assertion is present.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	for i, a := range assertions {
		if err := evaluate(result.Trace, a, actx); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func evaluate(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	case AssertFinalState, AssertRowCount:
		if actx == nil || actx.Store == nil {
			return fmt.Errorf("%s requires database context", a.Type)
		}
		if a.Type == AssertFinalState {
			return assertFinalState(actx.Ctx, actx.Store, a)
		}
		return assertRowCount(actx.Ctx, actx.Store, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertTraceContains passes when some invocation of a.Action has args
// matching a.Args.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if ev.Type == EventInvocation && ev.Action == a.Action && matchArgs(ev.Args, a.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", a.Action, a.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder passes when the first invocation of each action comes
// after the first invocation of the one listed before it. Other actions may
// appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	first := make(map[string]int)
	for i, ev := range trace {
		if ev.Type != EventInvocation {
			continue
		}
		if _, seen := first[ev.Action]; !seen {
			first[ev.Action] = i + 1
		}
	}

	for i, action := range a.Actions {
		pos, ok := first[action]
		if !ok {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", a.Actions),
				Actual:   "missing action: " + action,
				Trace:    trace,
			}
		}
		if i == 0 {
			continue
		}
		prev := a.Actions[i-1]
		if first[prev] >= pos {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", a.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, first[prev], action, pos),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if ev.Type == EventInvocation && ev.Action == a.Action {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Action),
			Actual:   fmt.Sprintf("%d occurrences", n),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that exactly one row of a.Table matches a.Where
// and that the row holds every value in a.Expect.
func assertFinalState(ctx context.Context, st *store.Store, a Assertion) error {
	rows, err := selectRows(ctx, st, "*", a)
	if err != nil {
		return err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	where := describeWhere(a.Where)
	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", a.Table, where),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", a.Table, where),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	row := make(map[string]any, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}

	for _, key := range sortedKeys(a.Expect) {
		want := a.Expect[key]
		got, ok := row[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// assertRowCount checks that exactly a.Count rows of a.Table match a.Where.
func assertRowCount(ctx context.Context, st *store.Store, a Assertion) error {
	rows, err := selectRows(ctx, st, "COUNT(*)", a)
	if err != nil {
		return err
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("count rows: %w", err)
	}

	if n != a.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", a.Count, a.Table, describeWhere(a.Where)),
			Actual:   fmt.Sprintf("%d rows", n),
		}
	}
	return nil
}

// selectRows runs SELECT projection FROM a.Table WHERE a.Where.
func selectRows(ctx context.Context, st *store.Store, projection string, a Assertion) (*sql.Rows, error) {
	if !identifier.MatchString(a.Table) {
		return nil, fmt.Errorf("invalid table name %q: must match pattern %s", a.Table, identifier)
	}
	clause, args, err := buildWhereClause(a.Where)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM %s", projection, a.Table)
	if clause != "" {
		query += " WHERE " + clause
	}

	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, &AssertionError{
			Type:     a.Type,
			Expected: "query table " + a.Table,
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	return rows, nil
}

// buildWhereClause returns "a = ? AND b = ?" over the sorted keys of where
// and the matching bind values.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		if !identifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, identifier)
		}
		clauses = append(clauses, key+" = ?")
		args = append(args, bindValue(where[key]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// bindValue passes scalars through and stringifies anything else.
func bindValue(v any) any {
	switch v.(type) {
	case string, int, int64, bool:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func describeWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// stateValuesEqual compares a YAML value with a scanned SQLite value.
// SQLite hands back int64 for integers and may hand back []byte for text.
func stateValuesEqual(want, got any) bool {
	if want == nil || got == nil {
		return want == nil && got == nil
	}

	switch w := want.(type) {
	case string:
		switch g := got.(type) {
		case string:
			return w == g
		case []byte:
			return w == string(g)
		}
		return false
	case int:
		return intEqual(int64(w), got)
	case int64:
		return intEqual(w, got)
	case bool:
		switch g := got.(type) {
		case bool:
			return w == g
		case int64:
			return w == (g != 0)
		}
		return false
	}
	return reflect.DeepEqual(want, got)
}

func intEqual(want int64, got any) bool {
	switch g := got.(type) {
	case int64:
		return want == g
	case int:
		return want == int64(g)
	}
	return false
}

// matchArgs reports whether actual holds every key of expected with a
// deeply equal value. Extra keys in actual are ignored.
func matchArgs(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}
	m, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, want := range expected {
		got, ok := m[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}
