package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/obs"
	"github.com/joescharf/qam/internal/store"
	"github.com/joescharf/qam/internal/testreport"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockClient implements obs.Client for testing.
type mockClient struct {
	requests map[string]*models.Request
	dir      *directory.Directory

	directoryErr error
	requestErr   error
}

func (m *mockClient) Request(_ context.Context, id string) (*models.Request, error) {
	reqID, err := obs.ParseRequestID(id)
	if err != nil {
		return nil, err
	}
	if m.requestErr != nil {
		return nil, m.requestErr
	}
	if r, ok := m.requests[reqID]; ok {
		return r, nil
	}
	return nil, obs.ErrNotFound
}
func (m *mockClient) Events(_ context.Context, id string) ([]models.ReviewEvent, error) {
	return m.requests[id].Events, nil
}
func (m *mockClient) Directory(_ context.Context) (*directory.Directory, error) {
	if m.directoryErr != nil {
		return nil, m.directoryErr
	}
	return m.dir, nil
}
func (m *mockClient) OpenForGroups(_ context.Context, groups []string) ([]*models.Request, error) {
	var out []*models.Request
	for _, id := range []string{"300001", "300002"} {
		if r, ok := m.requests[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
func (m *mockClient) ReviewForGroups(ctx context.Context, groups []string) ([]*models.Request, error) {
	return m.OpenForGroups(ctx, groups)
}
func (m *mockClient) ForUser(_ context.Context, _ string) ([]*models.Request, error)     { return nil, nil }
func (m *mockClient) ForIncident(_ context.Context, _ string) ([]*models.Request, error) { return nil, nil }
func (m *mockClient) AssignReview(_ context.Context, _, _, _, _ string) error           { return nil }
func (m *mockClient) UnassignReview(_ context.Context, _, _, _, _ string) error         { return nil }
func (m *mockClient) AcceptReview(_ context.Context, _ string, _ obs.Reviewer, _ string) error {
	return nil
}
func (m *mockClient) DeclineReview(_ context.Context, _ string, _ obs.Reviewer, _ string) error {
	return nil
}
func (m *mockClient) RejectReasons(_ context.Context, _ string) ([]string, error)   { return nil, nil }
func (m *mockClient) SetRejectReasons(_ context.Context, _ string, _ []string) error { return nil }
func (m *mockClient) Comments(_ context.Context, _ string) ([]models.Comment, error) { return nil, nil }
func (m *mockClient) AddComment(_ context.Context, _, _ string) error                { return nil }
func (m *mockClient) DeleteComment(_ context.Context, _ string) error                { return nil }
func (m *mockClient) Priority(_ context.Context, _ *models.Request) models.Priority {
	return models.UnknownPriority()
}
func (m *mockClient) IssueCount(_ context.Context, _ string) (int, error) { return 0, nil }

// mockReports implements review.Reports for testing.
type mockReports struct {
	exists bool
}

func (m *mockReports) Exists(_ context.Context, _ *models.Request) (bool, error) { return m.exists, nil }
func (m *mockReports) Fetch(_ context.Context, _ *models.Request) (*testreport.Report, error) {
	return nil, testreport.ErrNotFound
}
func (m *mockReports) FancyURL(req *models.Request) string { return "https://qam.example/" + req.RRID() }

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func assigned(seq int64, group, user string) models.ReviewEvent {
	return models.ReviewEvent{Group: group, Actor: user, Kind: models.EventAssigned,
		Timestamp: base.Add(time.Duration(seq) * time.Minute), Sequence: seq}
}

// newTestServer creates a Server with mock dependencies and seed data.
func newTestServer(t *testing.T) (*Server, *mockClient, *mockReports) {
	t.Helper()

	mc := &mockClient{
		dir: directory.New(
			directory.Entry{Group: "qam-sle", Members: []string{"alice", "bob"}},
			directory.Entry{Group: "qam-atk", Members: []string{"alice"}},
		),
		requests: map[string]*models.Request{
			"300001": {
				ID: "300001", SrcProject: "SUSE:Maintenance:4242", State: models.RequestStateReview,
				Creator: "coord", Groups: []string{"qam-sle", "qam-atk"},
			},
			"300002": {
				ID: "300002", SrcProject: "SUSE:Maintenance:4243", State: models.RequestStateReview,
				Groups: []string{"qam-sle"},
				Events: []models.ReviewEvent{
					assigned(1, "qam-sle", "alice"),
					assigned(2, "qam-sle", "bob"),
					assigned(3, "qam-gone", "zed"),
				},
			},
		},
	}
	mr := &mockReports{exists: true}

	srv := NewServer(mc, mr, nil, "alice")
	require.NotNil(t, srv)
	return srv, mc, mr
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

// resultJSON parses the text result as JSON into the provided target.
func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	err := json.Unmarshal([]byte(text), target)
	require.NoError(t, err, "failed to parse result JSON: %s", text)
}

// ---------------------------------------------------------------------------
// Tests: MCPServer registration
// ---------------------------------------------------------------------------

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	mcpSrv := srv.MCPServer()
	require.NotNil(t, mcpSrv, "MCPServer() should return non-nil")
}

// ---------------------------------------------------------------------------
// Tests: qam_list_open
// ---------------------------------------------------------------------------

func TestHandleListOpen_DefaultUser(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleListOpen(context.Background(), callToolReq("qam_list_open", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))

	var out []requestOut
	resultJSON(t, result, &out)
	require.Len(t, out, 1, "300002 has no open group for alice")
	assert.Equal(t, "300001", out[0].ID)
	assert.Equal(t, []string{"qam-atk", "qam-sle"}, out[0].OpenGroups)
	assert.Equal(t, "SUSE:Maintenance:4242:300001", out[0].RRID)
}

func TestHandleListOpen_Group(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleListOpen(context.Background(), callToolReq("qam_list_open", map[string]any{"group": "qam-sle"}))
	require.NoError(t, err)

	var out []requestOut
	resultJSON(t, result, &out)
	require.Len(t, out, 2)
	assert.Equal(t, []string{"qam-sle -> bob"}, out[1].Assigned)
}

func TestHandleListOpen_NotInGroup(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleListOpen(context.Background(), callToolReq("qam_list_open", map[string]any{"user": "mallory"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not a member")
}

func TestHandleListOpen_DirectoryError(t *testing.T) {
	srv, mc, _ := newTestServer(t)
	mc.directoryErr = obs.ErrUnavailable

	result, err := srv.handleListOpen(context.Background(), callToolReq("qam_list_open", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: qam_info
// ---------------------------------------------------------------------------

func TestHandleInfo(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleInfo(context.Background(), callToolReq("qam_info", map[string]any{"request_id": "SUSE:Maintenance:4243:300002"}))
	require.NoError(t, err)
	assert.False(t, result.IsError, resultText(t, result))

	var out struct {
		ID     string `json:"id"`
		Groups []struct {
			Group    string `json:"group"`
			Status   string `json:"status"`
			Reviewer string `json:"reviewer"`
		} `json:"groups"`
		Anomalies []struct {
			Kind         string `json:"kind"`
			ErrorKind    string `json:"error_kind"`
			Inconsistent bool   `json:"inconsistent"`
		} `json:"anomalies"`
		Orphaned []string `json:"orphaned_groups"`
	}
	resultJSON(t, result, &out)

	assert.Equal(t, "300002", out.ID)
	require.Len(t, out.Groups, 1)
	assert.Equal(t, "in_progress", out.Groups[0].Status)
	assert.Equal(t, "bob", out.Groups[0].Reviewer)
	require.Len(t, out.Anomalies, 1)
	assert.True(t, out.Anomalies[0].Inconsistent)
	assert.Equal(t, "INCONSISTENT_HISTORY", out.Anomalies[0].ErrorKind)
	assert.Equal(t, []string{"qam-gone"}, out.Orphaned)
}

func TestHandleInfo_MissingParam(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleInfo(context.Background(), callToolReq("qam_info", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleInfo_NotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleInfo(context.Background(), callToolReq("qam_info", map[string]any{"request_id": "999"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

// ---------------------------------------------------------------------------
// Tests: qam_classify
// ---------------------------------------------------------------------------

func classify(t *testing.T, srv *Server, args map[string]any) decisionOut {
	t.Helper()
	result, err := srv.handleClassify(context.Background(), callToolReq("qam_classify", args))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var out decisionOut
	resultJSON(t, result, &out)
	return out
}

func TestHandleClassify(t *testing.T) {
	srv, _, mr := newTestServer(t)

	d := classify(t, srv, map[string]any{"request_id": "300001", "action": "assign"})
	assert.Equal(t, "ambiguous", d.Outcome)
	assert.Equal(t, []string{"qam-atk", "qam-sle"}, d.Groups)

	d = classify(t, srv, map[string]any{"request_id": "300001", "action": "assign", "groups": "qam-sle"})
	assert.Equal(t, "legal", d.Outcome)
	assert.Equal(t, []string{"qam-sle"}, d.Groups)

	mr.exists = false
	d = classify(t, srv, map[string]any{"request_id": "300001", "action": "assign", "groups": "qam-sle"})
	assert.Equal(t, "TEMPLATE_MISSING", d.Kind)

	d = classify(t, srv, map[string]any{"request_id": "300001", "action": "assign", "groups": "qam-sle", "skip_template": true})
	assert.Equal(t, "legal", d.Outcome)

	d = classify(t, srv, map[string]any{"request_id": "300002", "action": "approve", "user": "bob"})
	assert.Equal(t, "legal", d.Outcome)

	d = classify(t, srv, map[string]any{"request_id": "300002", "action": "reject", "user": "bob"})
	assert.Equal(t, "MISSING_REASON", d.Kind)

	d = classify(t, srv, map[string]any{"request_id": "300002", "action": "reject", "user": "bob", "reasons": "regression"})
	assert.Equal(t, "legal", d.Outcome)

	d = classify(t, srv, map[string]any{"request_id": "300002", "action": "unassign"})
	assert.Equal(t, "NOT_ASSIGNED", d.Kind)
}

func TestHandleClassify_BadInput(t *testing.T) {
	srv, _, _ := newTestServer(t)

	for _, args := range []map[string]any{
		{"action": "assign"},
		{"request_id": "300001"},
		{"request_id": "300001", "action": "merge"},
	} {
		result, err := srv.handleClassify(context.Background(), callToolReq("qam_classify", args))
		require.NoError(t, err)
		assert.True(t, result.IsError, "%v", args)
	}
}

func TestHandleClassify_UnknownReason(t *testing.T) {
	srv, _, _ := newTestServer(t)

	d := classify(t, srv, map[string]any{"request_id": "300002", "action": "reject", "user": "bob", "reasons": "regression,bogus"})
	assert.Equal(t, "illegal", d.Outcome)
	assert.Equal(t, "MISSING_REASON", d.Kind)
	assert.Contains(t, d.Detail, "bogus")
}

func TestHandleClassify_UpstreamUnavailable(t *testing.T) {
	srv, mc, _ := newTestServer(t)
	mc.requestErr = fmt.Errorf("GET /request/300001: %w", obs.ErrUnavailable)

	result, err := srv.handleClassify(context.Background(), callToolReq("qam_classify", map[string]any{
		"request_id": "300001", "action": "assign",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "UPSTREAM_UNAVAILABLE")

	result, err = srv.handleInfo(context.Background(), callToolReq("qam_info", map[string]any{"request_id": "300001"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "UPSTREAM_UNAVAILABLE")
}

// ---------------------------------------------------------------------------
// Tests: qam_journal
// ---------------------------------------------------------------------------

func TestHandleJournal(t *testing.T) {
	srv, _, _ := newTestServer(t)

	result, err := srv.handleJournal(context.Background(), callToolReq("qam_journal", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError, "no journal configured")

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.RecordAction(context.Background(), &models.JournalEntry{
		RequestID: "300001", Action: models.JournalAssign, User: "alice", Groups: []string{"qam-sle"},
	}))
	require.NoError(t, s.RecordAction(context.Background(), &models.JournalEntry{
		RequestID: "300002", Action: models.JournalAssign, User: "alice", Groups: []string{"qam-sle"},
	}))
	srv.journal = s

	result, err = srv.handleJournal(context.Background(), callToolReq("qam_journal", map[string]any{
		"request_id": "SUSE:Maintenance:4242:300001",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out []struct {
		RequestID string   `json:"request_id"`
		Action    string   `json:"action"`
		Groups    []string `json:"groups"`
	}
	resultJSON(t, result, &out)
	require.Len(t, out, 1)
	assert.Equal(t, "assign", out[0].Action)
	assert.Equal(t, []string{"qam-sle"}, out[0].Groups)
}
