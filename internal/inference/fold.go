// Package inference derives per-group review state from a request's audit
// trail and classifies whether a reviewer action is legal against it.
//
// Everything here is pure: no I/O, no logging. Callers surface anomalies.
package inference

import (
	"sort"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/models"
)

// AnomalyKind names a history entry that did not fit the state machine.
type AnomalyKind string

const (
	// AnomalyConflictingAssignment is an assignment to a group already
	// in progress under another reviewer. The later assignment wins.
	AnomalyConflictingAssignment AnomalyKind = "conflicting_assignment"
	// AnomalyAfterTerminal is an assignment change recorded after the
	// group reached a terminal status. It is ignored.
	AnomalyAfterTerminal AnomalyKind = "after_terminal"
	// AnomalyUnknownKind is an event with a kind outside the known set.
	AnomalyUnknownKind AnomalyKind = "unknown_kind"
)

// Anomaly records an event the fold tolerated rather than applied cleanly.
type Anomaly struct {
	Kind     AnomalyKind
	Group    string
	Event    models.ReviewEvent
	Previous fn.Option[string]
}

// Inconsistent reports whether the anomaly means the history contradicts
// itself, as opposed to carrying entries the fold can safely ignore.
func (a Anomaly) Inconsistent() bool {
	return a.Kind == AnomalyConflictingAssignment
}

// ErrorKind is INCONSISTENT_HISTORY for an inconsistent anomaly and empty
// for the benign ones.
func (a Anomaly) ErrorKind() ErrorKind {
	if a.Inconsistent() {
		return KindInconsistentHistory
	}
	return ""
}

// Result is the folded view of one request.
type Result struct {
	// States holds one entry per group known to the directory that has
	// either a review on the request or at least one event.
	States map[string]models.GroupReviewState
	// History holds the ordered, deduplicated events per known group.
	History map[string][]models.ReviewEvent
	// Orphaned holds events naming groups absent from the directory.
	// They are kept for audit and never take part in legality.
	Orphaned map[string][]models.ReviewEvent
	// Anomalies lists tolerated events in the order they were folded.
	Anomalies []Anomaly
}

// Inconsistent reports whether any anomaly contradicts the history.
func (r Result) Inconsistent() bool {
	for _, a := range r.Anomalies {
		if a.Inconsistent() {
			return true
		}
	}
	return false
}

// State returns the folded state of group, if the group is known.
func (r Result) State(group string) fn.Option[models.GroupReviewState] {
	s, ok := r.States[group]
	if !ok {
		return fn.None[models.GroupReviewState]()
	}
	return fn.Some(s)
}

// Groups returns the known group names in sorted order.
func (r Result) Groups() []string {
	names := make([]string, 0, len(r.States))
	for g := range r.States {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// Order returns a sorted copy of events with replayed duplicates removed.
// The first occurrence of each dedup key in sorted order is kept.
func Order(events []models.ReviewEvent) []models.ReviewEvent {
	sorted := make([]models.ReviewEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Before(sorted[j])
	})

	seen := make(map[string]struct{}, len(sorted))
	out := sorted[:0]
	for _, ev := range sorted {
		key := ev.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// Fold derives the review state of every group of a request.
//
// groups are the review groups present on the request; each one known to
// dir starts OPEN even without events. Events for groups missing from dir
// end up in Result.Orphaned. The result does not depend on the order of
// events, and duplicated events are folded once.
func Fold(groups []string, events []models.ReviewEvent, dir *directory.Directory) Result {
	res := Result{
		States:   make(map[string]models.GroupReviewState),
		History:  make(map[string][]models.ReviewEvent),
		Orphaned: make(map[string][]models.ReviewEvent),
	}

	for _, g := range groups {
		if dir.Has(g) {
			res.States[g] = models.NewGroupReviewState(g)
		}
	}

	for _, ev := range Order(events) {
		if !dir.Has(ev.Group) {
			res.Orphaned[ev.Group] = append(res.Orphaned[ev.Group], ev)
			continue
		}
		st, ok := res.States[ev.Group]
		if !ok {
			st = models.NewGroupReviewState(ev.Group)
		}
		next, anomaly := Step(st, ev)
		res.States[ev.Group] = next
		res.History[ev.Group] = append(res.History[ev.Group], ev)
		anomaly.WhenSome(func(a Anomaly) {
			res.Anomalies = append(res.Anomalies, a)
		})
	}
	return res
}

// FoldGroup folds the events of a single group, ignoring events addressed
// to other groups.
func FoldGroup(group string, events []models.ReviewEvent) (models.GroupReviewState, []Anomaly) {
	st := models.NewGroupReviewState(group)
	var anomalies []Anomaly
	for _, ev := range Order(events) {
		if ev.Group != group {
			continue
		}
		var a fn.Option[Anomaly]
		st, a = Step(st, ev)
		a.WhenSome(func(a Anomaly) { anomalies = append(anomalies, a) })
	}
	return st, anomalies
}

// Step applies one event to a group state.
//
// Terminal statuses absorb everything: once a group is approved, rejected
// or obsolete no later event changes it.
func Step(st models.GroupReviewState, ev models.ReviewEvent) (models.GroupReviewState, fn.Option[Anomaly]) {
	none := fn.None[Anomaly]()
	anomaly := func(kind AnomalyKind) fn.Option[Anomaly] {
		return fn.Some(Anomaly{Kind: kind, Group: st.Group, Event: ev, Previous: st.Reviewer})
	}

	switch ev.Kind {
	case models.EventAssigned:
		switch {
		case st.Status.Terminal():
			return st, anomaly(AnomalyAfterTerminal)
		case st.Status == models.GroupStatusInProgress && st.ReviewedBy(ev.Actor):
			return st, none
		case st.Status == models.GroupStatusInProgress:
			a := anomaly(AnomalyConflictingAssignment)
			st.Reviewer = fn.Some(ev.Actor)
			return st, a
		default:
			st.Status = models.GroupStatusInProgress
			st.Reviewer = fn.Some(ev.Actor)
			return st, none
		}

	case models.EventDeclined:
		if st.Status.Terminal() {
			return st, anomaly(AnomalyAfterTerminal)
		}
		if st.Status == models.GroupStatusInProgress && st.ReviewedBy(ev.Actor) {
			st.Status = models.GroupStatusOpen
			st.Reviewer = fn.None[string]()
		}
		return st, none

	case models.EventAccepted, models.EventRejected:
		if st.Status != models.GroupStatusInProgress || !st.ReviewedBy(ev.Actor) {
			return st, none
		}
		if ev.Kind == models.EventAccepted {
			st.Status = models.GroupStatusApproved
		} else {
			st.Status = models.GroupStatusRejected
		}
		return st, none

	case models.EventClosed:
		if !st.Status.Terminal() {
			st.Status = models.GroupStatusObsolete
		}
		return st, none

	case models.EventComment:
		return st, none
	}

	return st, anomaly(AnomalyUnknownKind)
}
