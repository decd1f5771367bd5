package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// CaseSuccess is the output case of a step that returned no error. A step
// that failed with an engine error reports the error code instead, e.g.
// "ALREADY_PROCESSED".
const CaseSuccess = "Success"

// TraceEvent records one step invocation or its completion.
type TraceEvent struct {
	Type       string `json:"type"` // "invocation" or "completion"
	Action     string `json:"action,omitempty"`
	Args       any    `json:"args,omitempty"`
	OutputCase string `json:"output_case,omitempty"`
	Result     any    `json:"result,omitempty"`
	Seq        int64  `json:"seq"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains every step invocation and completion in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(action string, args any, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventInvocation,
		Action: action,
		Args:   args,
		Seq:    seq,
	})
}

// AddCompletionTrace adds a completion to the trace. A nil result is
// omitted from the event.
func (r *Result) AddCompletionTrace(outputCase string, result map[string]any, seq int64) {
	event := TraceEvent{
		Type:       EventCompletion,
		OutputCase: outputCase,
		Seq:        seq,
	}
	if result != nil {
		event.Result = result
	}
	r.Trace = append(r.Trace, event)
}
