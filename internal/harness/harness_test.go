package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(src))
	require.NoError(t, err)
	return s
}

func TestRun_MinimalScenario(t *testing.T) {
	result, err := Run(mustParse(t, minimalScenario))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, TraceEvent{
		Seq:     1,
		Source:  "push",
		Tag:     "ContactAdded",
		Payload: map[string]any{"id": "bob", "name": "Bob"},
	}, result.Trace[0])
	assert.Empty(t, result.Sent)
	assert.Len(t, result.View.Contacts, 1)
}

func TestRun_ActionTempIDsAreSequential(t *testing.T) {
	result, err := Run(mustParse(t, `
name: temps
description: "temp ids"
steps:
  - action: { kind: CreateGroup, name: a }
    expect: { temp_id: temp_0001 }
  - action: { kind: SendDirect, target: bob, content: x }
    expect: { temp_id: temp_0002 }
assertions:
  - type: state_count
    table: provisional
    count: 2
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Sent, 2)
	assert.Equal(t, "CreateGroup", result.Sent[0].Tag)
	assert.Equal(t, map[string]any{"name": "a", "members": []any{}}, result.Sent[0].Payload)
}

func TestRun_UnexpectedStepErrorFails(t *testing.T) {
	result, err := Run(mustParse(t, `
name: bad_frame
description: "unexpected parse error"
steps:
  - raw: "{}"
  - push:
      ContactAdded: { id: bob }
assertions:
  - type: state_count
    table: contacts
    count: 1
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step 0: unexpected error")
	assert.Len(t, result.View.Contacts, 1, "later steps still run")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	result, err := Run(mustParse(t, `
name: no_error
description: "error expected but none"
steps:
  - push:
      ContactAdded: { id: bob }
    expect: { error: PARSE }
assertions:
  - type: replay_matches
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `expected error containing "PARSE", got none`)
}

func TestRun_ExpectMismatch(t *testing.T) {
	result, err := Run(mustParse(t, `
name: wrong_expect
description: "wrong temp id and created flag"
steps:
  - action: { kind: CreateGroup, name: a }
    expect: { temp_id: temp_9999 }
  - action: { kind: SelectDirect, target: bob }
    expect: { created: false }
assertions:
  - type: replay_matches
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], `expected temp id "temp_9999", got "temp_0001"`)
	assert.Contains(t, result.Errors[1], "expected created=false, got true")
}

func TestRun_AssertionFailuresReported(t *testing.T) {
	result, err := Run(mustParse(t, `
name: failing
description: "assertions that do not hold"
steps:
  - push:
      ContactAdded: { id: bob, name: Bob }
assertions:
  - type: trace_count
    tag: ContactAdded
    count: 2
  - type: final_state
    table: contacts
    where: { id: bob }
    expect: { name: Robert }
  - type: sent_count
    tag: Send
    count: 0
`))
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "trace_count")
	assert.Contains(t, result.Errors[1], "contacts.name = Robert")
}

func TestRun_StatusAndFetchError(t *testing.T) {
	result, err := Run(mustParse(t, `
name: status
description: "connectivity"
steps:
  - status: { connected: true }
  - fetch_error: "connection refused"
assertions:
  - type: final_state
    table: status
    expect: { connected: true, last_error: "TRANSPORT: fetch snapshot failed: connection refused" }
  - type: trace_count
    tag: Status
    count: 2
  - type: replay_matches
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_AdvanceMovesOptimisticTimestamps(t *testing.T) {
	result, err := Run(mustParse(t, `
name: clock
description: "clock advance"
epoch: 100
steps:
  - advance: 1m
  - action: { kind: SendDirect, target: bob, content: x }
assertions:
  - type: final_state
    table: messages
    where: { chat: bob }
    expect: { timestamp: 160, author: alice }
`))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_MatchWindow(t *testing.T) {
	src := `
name: window
description: "echo outside the match window is a new message"
match_window: 5s
steps:
  - action: { kind: SendDirect, target: bob, content: x }
  - push:
      NewMessage: { counterparty: bob, author: alice, content: x, timestamp: 1700000010 }
assertions:
  - type: final_state
    table: chats
    where: { key: bob }
    expect: { length: 2 }
  - type: state_count
    table: provisional
    count: 1
  - type: replay_matches
`
	result, err := Run(mustParse(t, src))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	s := mustParse(t, `
name: twice
description: "same input, same bytes"
steps:
  - action: { kind: CreateGroup, name: team, members: [bob] }
  - push:
      NewGroup: { id: g1, name: team, members: [alice, bob], created_by: alice }
  - action: { kind: SendGroup, target: g1, content: hi }
assertions:
  - type: replay_matches
`)
	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	assert.True(t, first.Pass, "errors: %v", first.Errors)
	assert.Equal(t, Render(s.Name, first), Render(s.Name, second))
	assert.Equal(t, first.Trace, second.Trace)
}

func TestResult_AddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
