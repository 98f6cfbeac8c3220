package obs

import (
	"time"

	"github.com/joescharf/qam/internal/models"
)

// History descriptions recorded by the build service on reviews.
const (
	descAssigned = "Review got assigned"
	descAccepted = "Review got accepted"
	descReopened = "Review got reopened"
	descDeclined = "Review got declined"
)

func groupEventKind(description string) models.EventKind {
	switch description {
	case descAssigned, descAccepted:
		return models.EventAssigned
	case descReopened:
		return models.EventDeclined
	case descDeclined:
		return models.EventRejected
	}
	return models.EventComment
}

// userEventKind maps the outcome of a reviewer's own review.
func userEventKind(s string) (models.EventKind, bool) {
	switch s {
	case descAccepted, "accepted":
		return models.EventAccepted, true
	case descDeclined, "declined":
		return models.EventRejected, true
	}
	return "", false
}

// events turns the review history of a request into ReviewEvents. Sequence
// numbers follow document order.
//
// A reviewer accepting or declining their own user review finishes whatever
// group they were reviewing for, so those outcomes are emitted for every
// group review of the request; the fold only applies them where the actor
// is the current reviewer.
func (r *xmlRequest) events() []models.ReviewEvent {
	var (
		seq    int64
		out    []models.ReviewEvent
		groups []string
	)
	next := func() int64 {
		seq++
		return seq
	}
	for _, rv := range r.Reviews {
		if rv.ByGroup != "" {
			groups = append(groups, rv.ByGroup)
		}
	}

	for _, rv := range r.Reviews {
		switch {
		case rv.ByGroup != "":
			for _, h := range rv.History {
				out = append(out, models.ReviewEvent{
					Group:     rv.ByGroup,
					Actor:     h.Who,
					Kind:      groupEventKind(h.Description),
					Timestamp: parseWhen(h.When),
					Sequence:  next(),
					Message:   h.Comment,
				})
			}
			if rv.State == "superseded" || rv.State == "obsoleted" {
				out = append(out, models.ReviewEvent{
					Group:     rv.ByGroup,
					Actor:     rv.Who,
					Kind:      models.EventClosed,
					Timestamp: parseWhen(rv.When),
					Sequence:  next(),
					Message:   rv.Comment,
				})
			}

		case rv.ByUser != "":
			found := false
			for _, h := range rv.History {
				kind, ok := userEventKind(h.Description)
				if !ok {
					continue
				}
				found = true
				out = append(out, fanOut(groups, rv.ByUser, kind, parseWhen(h.When), next(), h.Comment)...)
			}
			if kind, ok := userEventKind(rv.State); ok && !found {
				out = append(out, fanOut(groups, rv.ByUser, kind, parseWhen(rv.When), next(), rv.Comment)...)
			}
		}
	}

	if models.RequestState(r.State.Name).Closed() {
		at, s := parseWhen(r.State.When), next()
		for _, g := range groups {
			out = append(out, models.ReviewEvent{
				Group:     g,
				Actor:     r.State.Who,
				Kind:      models.EventClosed,
				Timestamp: at,
				Sequence:  s,
				Message:   r.State.Comment,
			})
		}
	}
	return out
}

func fanOut(groups []string, actor string, kind models.EventKind, at time.Time, seq int64, msg string) []models.ReviewEvent {
	out := make([]models.ReviewEvent, 0, len(groups))
	for _, g := range groups {
		out = append(out, models.ReviewEvent{
			Group:     g,
			Actor:     actor,
			Kind:      kind,
			Timestamp: at,
			Sequence:  seq,
			Message:   msg,
		})
	}
	return out
}
