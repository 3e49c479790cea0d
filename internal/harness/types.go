package harness

// TraceEvent records one processed request.
type TraceEvent struct {
	Seq      int64          `json:"seq"`
	Name     string         `json:"name,omitempty"`
	Resource string         `json:"resource"`
	Params   map[string]any `json:"params,omitempty"`
	Outcome  string         `json:"outcome"`
	Doc      any            `json:"doc,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per request, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors lists expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a processed request to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
