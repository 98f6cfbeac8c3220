package report

import (
	"sort"
	"strconv"
)

// Sort orders reports by priority (most urgent first), then rating, then
// request id.
func Sort(reports []*Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		a, b := reports[i], reports[j]
		if a.Priority.MoreUrgent(b.Priority) {
			return true
		}
		if b.Priority.MoreUrgent(a.Priority) {
			return false
		}
		if ra, rb := a.Rating().Rank(), b.Rating().Rank(); ra != rb {
			return ra < rb
		}
		return lessID(a.Request.ID(), b.Request.ID())
	})
}

func lessID(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
