package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The repository's example scenarios double as end-to-end tests for the
// coordinator. Their rendered results are pinned in testdata/golden.
func TestDemoScenarios(t *testing.T) {
	scenarios := []string{
		"e2e_optimistic_group",
		"snapshot_race",
		"direct_send",
		"group_membership",
	}

	for _, name := range scenarios {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("..", "..", "testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)
			require.Equal(t, name, s.Name, "scenario name must match its file")

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "scenario errors: %v", result.Errors)
		})
	}
}
