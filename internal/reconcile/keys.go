package reconcile

import (
	"maps"
	"slices"

	"github.com/roach88/chatsync/internal/model"
)

// sortedKeys gives snapshot maps a deterministic application order. JSON
// objects carry no order, so new conversations from a snapshot are added in
// key order after everything already known.
func sortedKeys(m map[string][]model.Message) []string {
	return slices.Sorted(maps.Keys(m))
}
