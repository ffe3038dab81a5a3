package harness

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chatsync/internal/model"
)

// Render produces the golden text for a scenario result: the committed
// trace, the outbound commands and the final view. Every part is printed
// in a fixed order so identical runs render identical bytes.
func Render(name string, r *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario: %s\n", name)

	buf.WriteString("trace:\n")
	for _, ev := range r.Trace {
		fmt.Fprintf(&buf, "  %d %s %s\n", ev.Seq, ev.Source, ev.Tag)
	}

	buf.WriteString("sent:\n")
	for _, cmd := range r.Sent {
		fmt.Fprintf(&buf, "  %s\n", cmd.Tag)
	}

	renderView(&buf, r.View)
	return buf.Bytes()
}

func renderView(buf *bytes.Buffer, v model.ViewModel) {
	buf.WriteString("view:\n")
	fmt.Fprintf(buf, "  connected: %t\n", v.Connected)
	if v.LastError != "" {
		fmt.Fprintf(buf, "  last_error: %s\n", v.LastError)
	}
	fmt.Fprintf(buf, "  selection: chat=%s group=%s\n", v.SelectedChatID, v.SelectedGroupID)

	buf.WriteString("  contacts:\n")
	for _, c := range v.Contacts {
		fmt.Fprintf(buf, "    %s %s\n", c.ID, c.Name)
	}

	buf.WriteString("  groups:\n")
	for _, g := range v.Groups {
		fmt.Fprintf(buf, "    %s %q by %s members=[%s]\n", g.ID, g.Name, g.CreatedBy, strings.Join(g.Members, " "))
	}

	buf.WriteString("  chats:\n")
	for _, key := range v.DirectOrder {
		renderMessages(buf, key, v.Chats[key])
	}

	buf.WriteString("  group_chats:\n")
	for _, id := range v.GroupOrder {
		renderMessages(buf, id, v.GroupMessages[id])
	}

	buf.WriteString("  provisional:\n")
	for _, p := range v.Provisional {
		fmt.Fprintf(buf, "    %s %s %s\n", p.TempID, p.Kind, p.Target)
	}
}

func renderMessages(buf *bytes.Buffer, key string, msgs []model.Message) {
	fmt.Fprintf(buf, "    %s (%d)\n", key, len(msgs))
	for _, m := range msgs {
		fmt.Fprintf(buf, "      %s@%d: %s\n", m.Author, m.Timestamp, m.Content)
	}
}

// RunWithGolden executes a scenario and compares the rendered result
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Render(scenarioName, result))
}
