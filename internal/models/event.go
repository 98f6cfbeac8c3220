package models

import (
	"strconv"
	"time"
)

// EventKind is the closed set of review actions found in a request's history.
type EventKind string

const (
	EventAssigned EventKind = "assigned"
	EventDeclined EventKind = "declined"
	EventAccepted EventKind = "accepted"
	EventRejected EventKind = "rejected"
	EventClosed   EventKind = "closed"
	EventComment  EventKind = "comment"
)

// EventKinds lists every kind in a stable order.
var EventKinds = []EventKind{
	EventAssigned,
	EventDeclined,
	EventAccepted,
	EventRejected,
	EventClosed,
	EventComment,
}

// Valid reports whether k is one of the known event kinds.
func (k EventKind) Valid() bool {
	switch k {
	case EventAssigned, EventDeclined, EventAccepted, EventRejected, EventClosed, EventComment:
		return true
	}
	return false
}

// ReviewEvent is a single entry of a request's review audit trail.
//
// Timestamp may be zero when the build service did not record one. Sequence
// is the position of the entry in the fetched log and breaks ties.
type ReviewEvent struct {
	Group     string
	Actor     string
	Kind      EventKind
	Timestamp time.Time
	Sequence  int64
	Message   string
}

// Before orders events by (timestamp, sequence). Missing timestamps sort
// first, ahead of every timed event regardless of log position: sequence
// only breaks ties between events with equal timestamps, which includes
// the untimed ones among themselves. Kind, actor and group make the order
// total for otherwise equal keys.
func (e ReviewEvent) Before(o ReviewEvent) bool {
	if !e.Timestamp.Equal(o.Timestamp) {
		return e.Timestamp.Before(o.Timestamp)
	}
	if e.Sequence != o.Sequence {
		return e.Sequence < o.Sequence
	}
	if e.Kind != o.Kind {
		return e.Kind < o.Kind
	}
	if e.Actor != o.Actor {
		return e.Actor < o.Actor
	}
	return e.Group < o.Group
}

// DedupKey identifies a replayed delivery of the same event. Timestamped
// events are identified without their sequence; untimed ones need it.
func (e ReviewEvent) DedupKey() string {
	if e.Timestamp.IsZero() {
		return string(e.Kind) + "\x00" + e.Group + "\x00" + e.Actor + "\x00#" + strconv.FormatInt(e.Sequence, 10)
	}
	return string(e.Kind) + "\x00" + e.Group + "\x00" + e.Actor + "\x00" + e.Timestamp.UTC().Format(time.RFC3339Nano)
}
