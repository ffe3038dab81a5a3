package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: contact_pass
steps:
  - push: { ContactAdded: { id: bob, name: Bob } }
assertions:
  - type: state_count
    table: contacts
    count: 1
`

const failingScenario = `name: contact_fail
steps:
  - push: { ContactAdded: { id: bob, name: Bob } }
assertions:
  - type: state_count
    table: contacts
    count: 2
`

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRoot("text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestTestCommandNonExistentPath(t *testing.T) {
	_, err := execute(t, NewTestCommand(testRoot("text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario path not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRoot("text")), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRoot("json")), t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandPassAndFail(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", passingScenario)
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(testRoot("text")), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✓ contact_pass")
	assert.Contains(t, out, "✗ contact_fail")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandJSONFailure(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(testRoot("json")), dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.False(t, resp.Data.Scenarios[0].Pass)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "broken.yaml", "name: broken\nsteps: [\n")

	out, err := execute(t, NewTestCommand(testRoot("text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandFilter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", passingScenario)
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(testRoot("text")), dir, "--filter", "pa*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "pass.yaml", passingScenario)
	writeScenario(t, dir, "fail.yaml", failingScenario)

	out, err := execute(t, NewTestCommand(testRoot("text")), path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandGoldenLifecycle(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "pass.yaml", passingScenario)
	goldenPath := filepath.Join(dir, "golden", "pass.golden")

	out, err := execute(t, NewTestCommand(testRoot("text")), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ contact_pass (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), "scenario: contact_pass\n")
	assert.Contains(t, string(golden), "  1 push ContactAdded\n")
	assert.Contains(t, string(golden), "    bob Bob\n")

	// Matches on the next run.
	out, err = execute(t, NewTestCommand(testRoot("text")), dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ contact_pass")

	// A drifted golden fails.
	require.NoError(t, os.WriteFile(goldenPath, []byte("scenario: something else\n"), 0644))
	out, err = execute(t, NewTestCommand(testRoot("text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", passingScenario)
	writeScenario(t, dir, "b.yml", passingScenario)
	writeScenario(t, dir, "notes.txt", "ignore me")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	writeScenario(t, filepath.Join(dir, "golden"), "c.yaml", passingScenario)

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "race.golden"), goldenFilePath(filepath.Join("s", "race.yaml")))
}

func TestRepositoryScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(testRoot("text")), filepath.Join("..", "..", "testdata", "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "4 passed, 0 failed, 4 total")
}
