package profile

import (
	"strings"

	"github.com/samber/lo"
)

const (
	// NoTask tags allocations made before the scheduler started.
	NoTask = 0xFF
	// UnknownOwner is the bucket for tags that match no listed owner.
	UnknownOwner = 256

	noTaskLabel  = "No task"
	unknownLabel = "Unknown (not in task list)"
	labelSep     = ", "
	ownerMask    = 0xFF
)

// Owner is a logical consumer that allocation headers can be tagged with.
type Owner struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
}

// MergeOwners folds owners whose ids share a low octet into one entry, as
// headers store only that octet. Labels are joined with ", " in first-seen
// order, empty and repeated labels dropped. The NoTask owner is always
// present. Merging is idempotent.
func MergeOwners(owners []Owner) []Owner {
	var order []int
	parts := make(map[int][]string)
	add := func(id int, label string) {
		id &= ownerMask
		if _, ok := parts[id]; !ok {
			order = append(order, id)
			parts[id] = nil
		}
		parts[id] = append(parts[id], strings.Split(label, labelSep)...)
	}
	for _, o := range owners {
		add(o.ID, o.Label)
	}
	add(NoTask, noTaskLabel)

	return lo.Map(order, func(id int, _ int) Owner {
		labels := lo.Uniq(lo.Filter(parts[id], func(s string, _ int) bool {
			return strings.TrimSpace(s) != ""
		}))
		return Owner{ID: id, Label: strings.Join(labels, labelSep)}
	})
}
