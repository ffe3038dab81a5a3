package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/chatsync/internal/engine"
	"github.com/roach88/chatsync/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Source, event.Tag)
		}
	}

	return buf.String()
}

// assertTraceContains checks that some committed event has the tag and a
// payload containing args.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Tag == assertion.Tag && matchArgs(event.Payload, assertion.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s with payload %v", assertion.Tag, assertion.Args),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that tags first appear in the specified order.
// Tags don't need to be consecutive (intervening events are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Tag]; !seen {
			positions[event.Tag] = i + 1 // 1-indexed for readability
		}
	}

	for _, tag := range assertion.Tags {
		if positions[tag] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all tags present: %v", assertion.Tags),
				Actual:   fmt.Sprintf("missing tag: %s", tag),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Tags); i++ {
		prev := assertion.Tags[i-1]
		curr := assertion.Tags[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("tags in order: %v", assertion.Tags),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the tag was committed exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Tag == assertion.Tag {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Tag),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertSentContains checks that some outbound command has the tag and a
// payload containing args.
func assertSentContains(sent []SentCommand, assertion Assertion) error {
	for _, cmd := range sent {
		if cmd.Tag == assertion.Tag && matchArgs(cmd.Payload, assertion.Args) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSentContains,
		Expected: fmt.Sprintf("command %s with payload %v", assertion.Tag, assertion.Args),
		Actual:   fmt.Sprintf("sent: %s", describeSent(sent)),
	}
}

func assertSentCount(sent []SentCommand, assertion Assertion) error {
	count := 0
	for _, cmd := range sent {
		if cmd.Tag == assertion.Tag {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertSentCount,
			Expected: fmt.Sprintf("%d %s commands", assertion.Count, assertion.Tag),
			Actual:   fmt.Sprintf("%d (sent: %s)", count, describeSent(sent)),
		}
	}
	return nil
}

func describeSent(sent []SentCommand) string {
	if len(sent) == 0 {
		return "(none)"
	}
	tags := make([]string, len(sent))
	for i, cmd := range sent {
		tags[i] = cmd.Tag
	}
	return strings.Join(tags, ", ")
}

// assertFinalState checks that the first row of a view table matching
// Where contains the expected values (subset semantics).
func assertFinalState(result *Result, assertion Assertion) error {
	rows, err := matchingRows(result, assertion)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	row := rows[0]
	keys := sortedKeys(assertion.Expect)
	for _, key := range keys {
		actual, exists := row[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in %s rows", key, assertion.Table),
			}
		}
		expected := normalize(assertion.Expect[key])
		if !valuesEqual(actual, expected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %v", assertion.Table, key, expected),
				Actual:   fmt.Sprintf("%s.%s = %v", assertion.Table, key, actual),
			}
		}
	}
	return nil
}

// assertStateCount checks how many rows of a view table match Where.
func assertStateCount(result *Result, assertion Assertion) error {
	rows, err := matchingRows(result, assertion)
	if err != nil {
		return err
	}
	if len(rows) != assertion.Count {
		return &AssertionError{
			Type:     AssertStateCount,
			Expected: fmt.Sprintf("%d rows in %s where %s", assertion.Count, assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   fmt.Sprintf("%d rows", len(rows)),
		}
	}
	return nil
}

// matchingRows returns the normalized rows of the assertion's table whose
// fields equal every Where value.
func matchingRows(result *Result, assertion Assertion) ([]map[string]any, error) {
	rows, err := Rows(result.View, assertion.Table)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, row := range rows {
		norm, _ := normalize(row).(map[string]any)
		if matchArgs(norm, assertion.Where) {
			out = append(out, norm)
		}
	}
	return out, nil
}

// assertReplayMatches rebuilds the view from the committed log and
// compares it with the live one.
func assertReplayMatches(result *Result, actx *AssertionContext) error {
	replayed, err := engine.Replay(actx.Ctx, actx.Events, actx.Options...)
	if err != nil {
		return &AssertionError{
			Type:     AssertReplayMatches,
			Expected: "replay succeeds",
			Actual:   err.Error(),
			Trace:    result.Trace,
		}
	}
	if reflect.DeepEqual(replayed, result.View) {
		return nil
	}
	want, _ := json.Marshal(result.View)
	got, _ := json.Marshal(replayed)
	return &AssertionError{
		Type:     AssertReplayMatches,
		Expected: string(want),
		Actual:   string(got),
		Trace:    result.Trace,
	}
}

// formatWhereClause creates a human-readable description of row filters.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := sortedKeys(where)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
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

// matchArgs checks if actual contains all expected fields (subset match).
// Extra keys in actual are ignored.
func matchArgs(actual any, expected map[string]any) bool {
	if len(expected) == 0 {
		return true
	}

	actualMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}

	for key, expectedVal := range expected {
		actualVal, exists := actualMap[key]
		if !exists {
			return false
		}
		if !valuesEqual(actualVal, normalize(expectedVal)) {
			return false
		}
	}
	return true
}

// valuesEqual compares two normalized values. Handles nested maps and
// slices.
func valuesEqual(actual, expected any) bool {
	if actual == nil && expected == nil {
		return true
	}
	if actual == nil || expected == nil {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// AssertionContext provides what assertions beyond the result need.
type AssertionContext struct {
	Ctx context.Context

	// Events is the raw committed log, for replay_matches.
	Events []store.EventRecord

	// Options are the coordinator options replay must share with the live
	// run.
	Options []engine.Option
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertSentContains:
			err = assertSentContains(result.Sent, assertion)
		case AssertSentCount:
			err = assertSentCount(result.Sent, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		case AssertStateCount:
			err = assertStateCount(result, assertion)
		case AssertReplayMatches:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: replay_matches requires the event log", i)
			} else {
				err = assertReplayMatches(result, actx)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
