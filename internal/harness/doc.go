// Package harness runs scenario files against a real sync coordinator.
//
// Each scenario drives a fresh coordinator backed by an in-memory SQLite
// store, an in-process transport and a manual clock, so the committed event
// log (the trace) and the final view model are reproducible byte for byte.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: optimistic_group
//	description: "A temp group is replaced by its confirmation"
//	self: alice
//	steps:
//	  - action: { kind: CreateGroup, name: team, members: [bob] }
//	    expect: { temp_id: temp_0001 }
//	  - push: { NewGroup: { id: g1, name: team, members: [alice, bob], created_by: alice } }
//	  - snapshot: { contacts: [{ id: bob, name: Bob }] }
//	  - advance: 10s
//	assertions:
//	  - type: final_state
//	    table: groups
//	    where: { name: team }
//	    expect: { id: g1 }
//
// A step does exactly one thing:
//
//   - push: an inbound frame, given as a single-key object
//   - raw: an inbound frame given as literal text
//   - snapshot: a completed snapshot fetch
//   - fetch_error: a failed snapshot fetch
//   - status: a connectivity change
//   - action: a local user action
//   - advance: move the clock forward
//   - fail_sends: make outbound sends fail with the given message ("" to recover)
//
// # Assertion Types
//
//   - trace_contains: a committed event with the tag and a payload superset of args
//   - trace_order: tags committed in the given order
//   - trace_count: a tag committed exactly count times
//   - sent_contains / sent_count: the same over outbound commands
//   - final_state: the first row of a view table matching where contains expect
//   - state_count: exactly count rows of a view table match where
//   - replay_matches: replaying the trace from empty reproduces the view
//
// View tables are chats, messages, groups, group_chats, group_messages,
// contacts, provisional, selection and status; see Rows.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/optimistic_group.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
