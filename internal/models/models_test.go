package models

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectReason(t *testing.T) {
	r, err := ParseRejectReason("admin")
	require.NoError(t, err)
	assert.Equal(t, 0, r.ID)

	r, err = ParseRejectReason("administrative")
	require.NoError(t, err)
	assert.Equal(t, "admin", r.Flag)

	_, err = ParseRejectReason("flaky")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracking_issue")
}

func TestParseRejectReasons(t *testing.T) {
	rs, err := ParseRejectReasons([]string{"regression", "not_fixed"})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 3}, []int{rs[0].ID, rs[1].ID})

	_, err = ParseRejectReasons([]string{"regression", "nope"})
	assert.Error(t, err)
}

func TestRejectReasonByID(t *testing.T) {
	r, err := RejectReasonByID(6)
	require.NoError(t, err)
	assert.Equal(t, "tracking_issue", r.Flag)

	_, err = RejectReasonByID(7)
	assert.Error(t, err)
}

func TestPriority(t *testing.T) {
	p, err := ParsePriority("700")
	require.NoError(t, err)
	assert.True(t, p.Known())
	assert.Equal(t, "700", p.String())

	bad, err := ParsePriority("high")
	assert.Error(t, err)
	assert.False(t, bad.Known())
	assert.Equal(t, "None", bad.String())

	assert.True(t, NewPriority(900).MoreUrgent(NewPriority(100)))
	assert.True(t, NewPriority(1).MoreUrgent(UnknownPriority()))
	assert.False(t, UnknownPriority().MoreUrgent(NewPriority(1)))
	assert.False(t, UnknownPriority().MoreUrgent(UnknownPriority()))
}

func TestRatingRank(t *testing.T) {
	ratings := []Rating{"low", "", "bogus", "critical", "moderate", "important"}
	sort.Slice(ratings, func(i, j int) bool { return ratings[i].Rank() < ratings[j].Rank() })
	assert.Equal(t, []Rating{"critical", "important", "moderate", "low", "", "bogus"}, ratings)
}

func TestReviewEventBefore(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	untimed := ReviewEvent{Sequence: 10}
	early := ReviewEvent{Timestamp: ts, Sequence: 2}
	late := ReviewEvent{Timestamp: ts.Add(time.Second), Sequence: 1}

	assert.True(t, untimed.Before(early))
	assert.True(t, early.Before(late))
	assert.False(t, late.Before(early))
	assert.False(t, early.Before(early))

	laterUntimed := ReviewEvent{Sequence: 11}
	assert.True(t, untimed.Before(laterUntimed))
	assert.True(t, laterUntimed.Before(early), "untimed events precede timed ones whatever their sequence")
}

func TestReviewEventDedupKey(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a := ReviewEvent{Group: "qam-sle", Actor: "alice", Kind: EventAssigned, Timestamp: ts, Sequence: 1}
	b := a
	b.Sequence = 2
	assert.Equal(t, a.DedupKey(), b.DedupKey())

	a.Timestamp, b.Timestamp = time.Time{}, time.Time{}
	assert.NotEqual(t, a.DedupKey(), b.DedupKey())
}

func TestGroupReviewState(t *testing.T) {
	s := NewGroupReviewState("qam-sle")
	assert.Equal(t, GroupStatusOpen, s.Status)
	assert.False(t, s.ReviewedBy(""))
	assert.Equal(t, "qam-sle", s.String())
	assert.True(t, GroupStatusObsolete.Terminal())
	assert.False(t, GroupStatusInProgress.Terminal())
}

func TestRequestIncident(t *testing.T) {
	r := &Request{SrcProject: "SUSE:Maintenance:12345"}
	assert.Equal(t, "12345", r.Incident())
	assert.True(t, RequestStateReview.Active())
	assert.True(t, RequestStateRevoked.Closed())
	assert.False(t, RequestStateAccepted.Closed())
}

func TestRequestRRID(t *testing.T) {
	r := &Request{ID: "300", SrcProject: "SUSE:Maintenance:12345"}
	assert.Equal(t, "SUSE:Maintenance:12345:300", r.RRID())

	r = &Request{ID: "301", SrcProject: "SUSE:SLFO:1.1:77"}
	assert.Equal(t, "SUSE:PI:1.1:301", r.RRID())
}
