// Package witness picks the single violation a report leads with, out of
// every violation collected across refinement, contract, and tooling
// checks (spec.md §4.10).
package witness

import (
	"sort"

	"github.com/trajectly/trt/internal/schema"
)

// Resolve picks the minimum-event-index violation from violations, breaking
// ties first by failure-class rank (REFINEMENT, then CONTRACT, then
// TOOLING) and then by code. It returns nil if violations is empty.
func Resolve(violations []*schema.Violation) *schema.Witness {
	if len(violations) == 0 {
		return nil
	}

	minIndex := violations[0].EventIndex
	for _, v := range violations {
		if v.EventIndex < minIndex {
			minIndex = v.EventIndex
		}
	}

	var atMinIndex []*schema.Violation
	for _, v := range violations {
		if v.EventIndex == minIndex {
			atMinIndex = append(atMinIndex, v)
		}
	}

	sort.SliceStable(atMinIndex, func(i, j int) bool {
		ri, rj := schema.ClassRank(atMinIndex[i].Class), schema.ClassRank(atMinIndex[j].Class)
		if ri != rj {
			return ri < rj
		}
		return atMinIndex[i].Code < atMinIndex[j].Code
	})

	return &schema.Witness{
		EventIndex: minIndex,
		Primary:    atMinIndex[0],
		All:        atMinIndex,
	}
}
