// Package review wraps one request's metadata with its inferred group
// states and runs the review workflow (assign, unassign, approve, reject)
// against the build service.
package review

import (
	"sort"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/models"
)

// Request is a view over one fetched request. It never talks to the
// network; build a new one for every command invocation.
type Request struct {
	meta   *models.Request
	dir    *directory.Directory
	result inference.Result

	priority models.Priority
	issues   fn.Option[int]
}

// New folds the request's events against the directory snapshot.
func New(meta *models.Request, dir *directory.Directory) *Request {
	return &Request{
		meta:     meta,
		dir:      dir,
		result:   inference.Fold(meta.Groups, meta.Events, dir),
		priority: models.UnknownPriority(),
		issues:   fn.None[int](),
	}
}

// Creator returns who opened the request.
func (r *Request) Creator() string { return r.meta.Creator }

// Priority is the incident priority. It stays unknown until a listing
// looks it up.
func (r *Request) Priority() models.Priority { return r.priority }

// SetPriority records the looked up incident priority.
func (r *Request) SetPriority(p models.Priority) { r.priority = p }

// IssueCount is the number of patchinfo issues, if it was looked up.
func (r *Request) IssueCount() fn.Option[int] { return r.issues }

// SetIssueCount records the looked up patchinfo issue count.
func (r *Request) SetIssueCount(n int) { r.issues = fn.Some(n) }

// Meta returns the fetched metadata.
func (r *Request) Meta() *models.Request { return r.meta }

// ID returns the request id.
func (r *Request) ID() string { return r.meta.ID }

// Directory returns the snapshot the states were inferred from.
func (r *Request) Directory() *directory.Directory { return r.dir }

// States returns the inferred state of every known group.
func (r *Request) States() map[string]models.GroupReviewState { return r.result.States }

// State returns the inferred state of group.
func (r *Request) State(group string) fn.Option[models.GroupReviewState] {
	return r.result.State(group)
}

// Groups returns the known groups in sorted order.
func (r *Request) Groups() []string { return r.result.Groups() }

// History returns the ordered events of group.
func (r *Request) History(group string) []models.ReviewEvent { return r.result.History[group] }

// OpenGroups returns every group nobody is reviewing yet.
func (r *Request) OpenGroups() []string { return inference.OpenGroups(r.result.States) }

// GroupsOpenFor returns the open groups user may pick up.
func (r *Request) GroupsOpenFor(user string) []string {
	return inference.OpenGroupsFor(r.result.States, r.dir, user)
}

// GroupsInProgressFor returns the groups user is currently reviewing.
func (r *Request) GroupsInProgressFor(user string) []string {
	return inference.InProgressFor(r.result.States, user)
}

// Assignments returns the in-progress groups with their reviewers.
func (r *Request) Assignments() []models.GroupReviewState {
	var out []models.GroupReviewState
	for _, st := range r.result.States {
		if st.Status == models.GroupStatusInProgress {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out
}

// AssignedTo reports whether user reviews at least one group.
func (r *Request) AssignedTo(user string) bool {
	return len(r.GroupsInProgressFor(user)) > 0
}

// Anomalies returns the events the fold tolerated.
func (r *Request) Anomalies() []inference.Anomaly { return r.result.Anomalies }

// Inconsistent reports whether the history contradicted itself.
func (r *Request) Inconsistent() bool { return r.result.Inconsistent() }

// Orphaned returns events of groups unknown to the directory.
func (r *Request) Orphaned() map[string][]models.ReviewEvent { return r.result.Orphaned }

// CanAssign classifies an assignment of user. templateExists comes from the
// test report service; pass true to skip that check.
func (r *Request) CanAssign(user string, explicit []string, templateExists bool) inference.Decision {
	return inference.ClassifyAssign(r.result.States, r.dir, user, explicit, templateExists)
}

// CanUnassign classifies releasing user's groups.
func (r *Request) CanUnassign(user string, explicit []string) inference.Decision {
	return inference.ClassifyUnassign(r.result.States, user, explicit)
}

// CanApprove classifies an approval by user.
func (r *Request) CanApprove(user string) inference.Decision {
	return inference.ClassifyApprove(r.result.States, user)
}

// CanReject classifies a rejection by user with the given reasons.
func (r *Request) CanReject(user string, reasons []models.RejectReason) inference.Decision {
	return inference.ClassifyReject(r.result.States, user, reasons)
}
