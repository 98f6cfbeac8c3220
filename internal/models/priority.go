package models

import (
	"strconv"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Priority is the incident priority. A higher number is more urgent; an
// unknown priority sorts after every known one.
type Priority struct {
	value fn.Option[int]
}

// NewPriority returns a known priority.
func NewPriority(v int) Priority { return Priority{value: fn.Some(v)} }

// UnknownPriority returns a priority that could not be determined.
func UnknownPriority() Priority { return Priority{value: fn.None[int]()} }

// ParsePriority parses the attribute value stored by the build service.
func ParsePriority(s string) (Priority, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return UnknownPriority(), err
	}
	return NewPriority(v), nil
}

// Known reports whether the priority has a value.
func (p Priority) Known() bool { return p.value.IsSome() }

// MoreUrgent reports whether p should be listed before o.
func (p Priority) MoreUrgent(o Priority) bool {
	if p.value.IsNone() {
		return false
	}
	if o.value.IsNone() {
		return true
	}
	return p.value.UnwrapOr(0) > o.value.UnwrapOr(0)
}

func (p Priority) String() string {
	if p.value.IsNone() {
		return "None"
	}
	return strconv.Itoa(p.value.UnwrapOr(0))
}

// Rating is the test report rating of an update.
type Rating string

var ratingRank = map[Rating]int{
	"critical":  0,
	"important": 1,
	"moderate":  2,
	"low":       3,
	"":          4,
}

// Rank orders ratings from most to least important.
func (r Rating) Rank() int {
	if v, ok := ratingRank[r]; ok {
		return v
	}
	return 10
}
