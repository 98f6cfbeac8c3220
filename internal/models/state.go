package models

import "github.com/lightningnetwork/lnd/fn/v2"

// GroupStatus is the inferred review status of one group on one request.
type GroupStatus string

const (
	GroupStatusOpen       GroupStatus = "open"
	GroupStatusInProgress GroupStatus = "in_progress"
	GroupStatusApproved   GroupStatus = "approved"
	GroupStatusRejected   GroupStatus = "rejected"
	GroupStatusObsolete   GroupStatus = "obsolete"
)

// Terminal reports whether no further assignment change can happen.
func (s GroupStatus) Terminal() bool {
	return s == GroupStatusApproved || s == GroupStatusRejected || s == GroupStatusObsolete
}

// GroupReviewState is derived by folding a group's ordered events. It is
// inferred from the audit trail, not read from an authoritative source.
type GroupReviewState struct {
	Group    string
	Status   GroupStatus
	Reviewer fn.Option[string]
}

// NewGroupReviewState returns the state of a group nobody has touched yet.
func NewGroupReviewState(group string) GroupReviewState {
	return GroupReviewState{
		Group:    group,
		Status:   GroupStatusOpen,
		Reviewer: fn.None[string](),
	}
}

// ReviewedBy reports whether user is the current reviewer.
func (s GroupReviewState) ReviewedBy(user string) bool {
	return s.Reviewer.IsSome() && s.Reviewer.UnwrapOr("") == user
}

// String renders the assignment the way listings show it: "group -> user".
func (s GroupReviewState) String() string {
	if s.Reviewer.IsNone() {
		return s.Group
	}
	return s.Group + " -> " + s.Reviewer.UnwrapOr("")
}
