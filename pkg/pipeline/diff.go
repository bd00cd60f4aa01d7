package pipeline

import (
	"slices"

	"github.com/matzehuels/stackbom/pkg/cdx"
)

// Diff lists the component bom-refs that appeared and disappeared between
// two documents. Both lists are sorted.
type Diff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Changed reports whether any component was added or removed.
func (d Diff) Changed() bool { return len(d.Added) > 0 || len(d.Removed) > 0 }

// Compare diffs the components of prev and next. A nil prev treats every
// component of next as added.
func Compare(prev, next *cdx.Document) Diff {
	before := refSet(prev)
	after := refSet(next)

	var d Diff
	for r := range after {
		if !before[r] {
			d.Added = append(d.Added, r)
		}
	}
	for r := range before {
		if !after[r] {
			d.Removed = append(d.Removed, r)
		}
	}
	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	return d
}

func refSet(d *cdx.Document) map[string]bool {
	set := make(map[string]bool)
	if d == nil {
		return set
	}
	for _, r := range d.Refs() {
		if r != "" {
			set[r] = true
		}
	}
	return set
}
