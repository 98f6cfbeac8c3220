package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/models"
)

func TestRequest_Views(t *testing.T) {
	req := New(testMeta([]string{"qam-sle", "qam-atk", "qam-cloud", "autobuild-team"},
		ev(1, "qam-cloud", "carol", models.EventAssigned),
		ev(2, "qam-old", "zed", models.EventAssigned),
	), testDirectory())

	assert.Equal(t, "300001", req.ID())
	assert.Equal(t, []string{"qam-atk", "qam-cloud", "qam-sle"}, req.Groups())
	assert.Equal(t, []string{"qam-atk", "qam-sle"}, req.OpenGroups())
	assert.Equal(t, []string{"qam-atk", "qam-sle"}, req.GroupsOpenFor("alice"))
	assert.Equal(t, []string{"qam-sle"}, req.GroupsOpenFor("bob"))
	assert.Equal(t, []string{"qam-cloud"}, req.GroupsInProgressFor("carol"))
	assert.True(t, req.AssignedTo("carol"))
	assert.False(t, req.AssignedTo("alice"))

	assignments := req.Assignments()
	require.Len(t, assignments, 1)
	assert.Equal(t, "qam-cloud -> carol", assignments[0].String())

	assert.Contains(t, req.Orphaned(), "qam-old")
	assert.True(t, req.State("autobuild-team").IsNone())
	assert.Len(t, req.History("qam-cloud"), 1)
}

func TestRequest_ListingData(t *testing.T) {
	req := New(testMeta([]string{"qam-sle"}), testDirectory())
	assert.Equal(t, "maint-coord", req.Creator())
	assert.False(t, req.Priority().Known())
	assert.True(t, req.IssueCount().IsNone())

	req.SetPriority(models.NewPriority(700))
	req.SetIssueCount(3)
	assert.Equal(t, "700", req.Priority().String())
	assert.Equal(t, 3, req.IssueCount().UnwrapOr(0))
}

func TestRequest_InconsistentHistory(t *testing.T) {
	req := New(testMeta([]string{"qam-sle"},
		ev(1, "qam-sle", "alice", models.EventAssigned),
		ev(2, "qam-sle", "bob", models.EventAssigned),
	), testDirectory())

	assert.True(t, req.Inconsistent())
	require.Len(t, req.Anomalies(), 1)
	assert.Equal(t, []string{"qam-sle"}, req.GroupsInProgressFor("bob"))
	assert.Empty(t, req.GroupsInProgressFor("alice"))
}

func TestClassify_ReviewerActions(t *testing.T) {
	t.Run("assigned user may approve but not reject without reason", func(t *testing.T) {
		req := New(testMeta([]string{"qam-sle"}, ev(1, "qam-sle", "alice", models.EventAssigned)), testDirectory())

		d := Classify(req, ActionApprove, "alice", Options{})
		assert.True(t, d.IsLegal())
		assert.Equal(t, []string{"qam-sle"}, d.Groups)

		d = Classify(req, ActionReject, "alice", Options{})
		assert.Equal(t, inference.KindMissingReason, d.Kind)
	})

	t.Run("declined review cannot be unassigned", func(t *testing.T) {
		req := New(testMeta([]string{"qam-sle"},
			ev(1, "qam-sle", "alice", models.EventAssigned),
			ev(2, "qam-sle", "alice", models.EventDeclined),
		), testDirectory())

		d := Classify(req, ActionUnassign, "alice", Options{})
		assert.Equal(t, inference.OutcomeIllegal, d.Outcome)
		assert.Equal(t, inference.KindNotAssigned, d.Kind)
	})

	t.Run("two open groups are ambiguous until one is named", func(t *testing.T) {
		req := New(testMeta([]string{"qam-sle", "qam-atk"}), testDirectory())

		d := Classify(req, ActionAssign, "alice", Options{TemplateExists: true})
		assert.Equal(t, inference.OutcomeAmbiguous, d.Outcome)
		assert.Equal(t, []string{"qam-atk", "qam-sle"}, d.Groups)

		d = Classify(req, ActionAssign, "alice", Options{Groups: []string{"qam-sle"}, TemplateExists: true})
		assert.True(t, d.IsLegal())
		assert.Equal(t, []string{"qam-sle"}, d.Groups)
	})

	t.Run("reject with reason", func(t *testing.T) {
		req := New(testMeta([]string{"qam-sle"}, ev(1, "qam-sle", "alice", models.EventAssigned)), testDirectory())
		reason, err := models.ParseRejectReason("regression")
		require.NoError(t, err)

		d := Classify(req, ActionReject, "alice", Options{Reasons: []models.RejectReason{reason}})
		assert.True(t, d.IsLegal())
	})

	t.Run("unknown action", func(t *testing.T) {
		req := New(testMeta([]string{"qam-sle"}), testDirectory())
		d := Classify(req, Action("merge"), "alice", Options{})
		assert.Equal(t, inference.OutcomeIllegal, d.Outcome)
	})
}

func TestClassify_LegalityIsPerRequest(t *testing.T) {
	dir := testDirectory()
	a := New(testMeta([]string{"qam-sle"}, ev(1, "qam-sle", "alice", models.EventAssigned)), dir)
	before := a.States()["qam-sle"]

	metaB := testMeta([]string{"qam-sle"})
	metaB.ID = "300002"
	b := New(metaB, dir)

	d := Classify(b, ActionApprove, "alice", Options{})
	assert.Equal(t, inference.OutcomeIllegal, d.Outcome)
	assert.Equal(t, inference.KindNotAssigned, d.Kind)
	assert.Equal(t, []string{"qam-sle"}, b.GroupsOpenFor("alice"))

	d = Classify(a, ActionApprove, "alice", Options{})
	assert.True(t, d.IsLegal())
	assert.Equal(t, []string{"qam-sle"}, d.Groups)
	assert.Equal(t, before, a.States()["qam-sle"])
	assert.Equal(t, models.GroupStatusInProgress, a.States()["qam-sle"].Status)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" Approve ")
	require.NoError(t, err)
	assert.Equal(t, ActionApprove, a)

	_, err = ParseAction("merge")
	assert.Error(t, err)
}
