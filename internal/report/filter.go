package report

import (
	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/review"
)

// Predicate selects requests for a listing.
type Predicate func(*review.Request) bool

// Filter returns the requests matching keep, preserving order.
func Filter(reqs []*review.Request, keep Predicate) []*review.Request {
	var out []*review.Request
	for _, r := range reqs {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// HasAssignments keeps requests someone is reviewing.
func HasAssignments() Predicate {
	return func(r *review.Request) bool { return len(r.Assignments()) > 0 }
}

// AssignedTo keeps requests user is reviewing.
func AssignedTo(user string) Predicate {
	return func(r *review.Request) bool { return r.AssignedTo(user) }
}

// InProgressFor keeps requests where group is being reviewed.
func InProgressFor(group string) Predicate {
	return func(r *review.Request) bool {
		st, ok := r.States()[group]
		return ok && st.Status == models.GroupStatusInProgress
	}
}

// OpenFor keeps requests with an open group user may pick up.
func OpenFor(user string) Predicate {
	return func(r *review.Request) bool { return len(r.GroupsOpenFor(user)) > 0 }
}

// Active keeps requests still in review.
func Active() Predicate {
	return func(r *review.Request) bool { return r.Meta().State.Active() }
}

// Dedup drops repeated request ids, keeping the first.
func Dedup(reqs []*review.Request) []*review.Request {
	seen := make(map[string]struct{}, len(reqs))
	var out []*review.Request
	for _, r := range reqs {
		if _, ok := seen[r.ID()]; ok {
			continue
		}
		seen[r.ID()] = struct{}{}
		out = append(out, r)
	}
	return out
}
