package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "one contact"
steps:
  - push:
      ContactAdded: { id: bob, name: Bob }
assertions:
  - type: state_count
    table: contacts
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	content := `
name: test_scenario
description: "Test scenario for validation"
self: carol
dedup: true
match_window: 10s
steps:
  - action: { kind: SendDirect, target: bob, content: hi }
    expect: { temp_id: temp_0001 }
  - advance: 5s
  - fail_sends: ""
assertions:
  - type: trace_contains
    tag: SendDirect
    args: { target: bob }
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "carol", scenario.Self)
	assert.True(t, scenario.Dedup)
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, "SendDirect", scenario.Steps[0].Action.Kind)
	assert.Equal(t, "temp_0001", scenario.Steps[0].Expect.TempID)
	require.NotNil(t, scenario.Steps[2].FailSends)
	assert.Equal(t, "", *scenario.Steps[2].FailSends)
	assert.Equal(t, "bob", scenario.Assertions[0].Args["target"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Len(t, s.Steps[0].Push, 1)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: y\nsteps: []\nassertion: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: y\nsteps: [{advance: 1s}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nsteps: [{advance: 1s}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: x\ndescription: y\nassertions: [{type: replay_matches}]\n",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: 1s}]\n",
			wantErr: "assertions list is required",
		},
		{
			name:    "two inputs in one step",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: 1s, raw: '{}'}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "exactly one input",
		},
		{
			name:    "empty step",
			yaml:    "name: x\ndescription: y\nsteps: [{}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "exactly one input",
		},
		{
			name:    "push with two tags",
			yaml:    "name: x\ndescription: y\nsteps: [{push: {A: {}, B: {}}}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "exactly one tag",
		},
		{
			name:    "action without kind",
			yaml:    "name: x\ndescription: y\nsteps: [{action: {target: bob}}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "action kind is required",
		},
		{
			name:    "bad advance",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: later}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "advance",
		},
		{
			name:    "bad match window",
			yaml:    "name: x\ndescription: y\nmatch_window: wide\nsteps: [{advance: 1s}]\nassertions: [{type: replay_matches}]\n",
			wantErr: "match_window",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: 1s}]\nassertions: [{type: vibes}]\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "trace_count without tag",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: 1s}]\nassertions: [{type: trace_count, count: 1}]\n",
			wantErr: "tag is required",
		},
		{
			name:    "trace_order without tags",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: 1s}]\nassertions: [{type: trace_order}]\n",
			wantErr: "tags list is required",
		},
		{
			name:    "unknown table",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: 1s}]\nassertions: [{type: state_count, table: users}]\n",
			wantErr: "unknown table",
		},
		{
			name:    "final_state without expect",
			yaml:    "name: x\ndescription: y\nsteps: [{advance: 1s}]\nassertions: [{type: final_state, table: contacts}]\n",
			wantErr: "expect is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
