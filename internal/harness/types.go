package harness

import "github.com/roach88/chatsync/internal/model"

// TraceEvent is one committed event of the coordinator's log.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Source  string `json:"source"`
	Tag     string `json:"tag"`
	Payload any    `json:"payload,omitempty"`
}

// SentCommand is one outbound command recorded by the transport.
type SentCommand struct {
	Tag     string `json:"tag"`
	Payload any    `json:"payload,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when no step or assertion failed.
	Pass bool `json:"pass"`

	// Trace is the committed event log in seq order.
	Trace []TraceEvent `json:"trace"`

	// Sent is every outbound command in send order.
	Sent []SentCommand `json:"sent"`

	// View is the final view model.
	View model.ViewModel `json:"view"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Sent:   []SentCommand{},
		View:   model.Empty(),
		Errors: []string{},
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
