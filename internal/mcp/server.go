package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/obs"
	"github.com/joescharf/qam/internal/review"
	"github.com/joescharf/qam/internal/store"
)

// Server exposes the read-only side of the review workflow as MCP tools.
type Server struct {
	client  obs.Client
	svc     *review.Service
	reports review.Reports
	journal store.Store
	user    string
}

// NewServer creates the MCP server wrapper. journal may be nil; user is the
// default for tools that take one.
func NewServer(client obs.Client, reports review.Reports, journal store.Store, user string) *Server {
	return &Server{
		client:  client,
		svc:     review.NewService(client, reports, nil),
		reports: reports,
		journal: journal,
		user:    user,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("qam", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listOpenTool())
	srv.AddTool(s.infoTool())
	srv.AddTool(s.classifyTool())
	srv.AddTool(s.journalTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

type requestOut struct {
	ID         string   `json:"id"`
	RRID       string   `json:"rrid"`
	SrcProject string   `json:"src_project"`
	State      string   `json:"state"`
	OpenGroups []string `json:"open_groups"`
	Assigned   []string `json:"assigned"`
}

func toRequestOut(r *review.Request) requestOut {
	out := requestOut{
		ID:         r.ID(),
		RRID:       r.Meta().RRID(),
		SrcProject: r.Meta().SrcProject,
		State:      string(r.Meta().State),
		OpenGroups: r.OpenGroups(),
		Assigned:   []string{},
	}
	if out.OpenGroups == nil {
		out.OpenGroups = []string{}
	}
	for _, a := range r.Assignments() {
		out.Assigned = append(out.Assigned, a.String())
	}
	return out
}

// qam_list_open
func (s *Server) listOpenTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qam_list_open",
		mcp.WithDescription("List maintenance requests with open QAM reviews. Returns a JSON array with id, rrid, src_project, state, open_groups and assigned (group -> reviewer)."),
		mcp.WithString("group", mcp.Description("Only requests open for this group")),
		mcp.WithString("user", mcp.Description("Only requests with an open group this user may review (defaults to the configured user)")),
	)
	return tool, s.handleListOpen
}

func (s *Server) handleListOpen(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	group := request.GetString("group", "")
	user := request.GetString("user", s.user)

	dir, err := s.client.Directory(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load groups: %v", err)), nil
	}

	groups := []string{group}
	if group == "" {
		if user == "" {
			return mcp.NewToolResultError("either group or user is required"), nil
		}
		groups = dir.GroupsOf(user)
		if len(groups) == 0 {
			return mcp.NewToolResultError(fmt.Sprintf("user %s is not a member of any qam group", user)), nil
		}
	}

	metas, err := s.client.OpenForGroups(ctx, groups)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to search requests: %v", err)), nil
	}

	out := []requestOut{}
	for _, meta := range metas {
		r := review.New(meta, dir)
		if group == "" && len(r.GroupsOpenFor(user)) == 0 {
			continue
		}
		out = append(out, toRequestOut(r))
	}
	return jsonResult(out)
}

// qam_info
func (s *Server) infoTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qam_info",
		mcp.WithDescription("Show the inferred review state of one request: every QAM group with status and reviewer, anomalies found in the history, and events of unknown groups. The state is inferred from the review history, not read from an authoritative source."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id, e.g. 300001 or SUSE:Maintenance:4242:300001")),
	)
	return tool, s.handleInfo
}

func (s *Server) handleInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("request_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: request_id"), nil
	}

	r, err := s.svc.Load(ctx, id)
	if err != nil {
		return errorResult(fmt.Errorf("load request %s: %w", id, err))
	}

	type groupOut struct {
		Group    string `json:"group"`
		Status   string `json:"status"`
		Reviewer string `json:"reviewer,omitempty"`
	}
	type anomalyOut struct {
		Kind         string `json:"kind"`
		ErrorKind    string `json:"error_kind,omitempty"`
		Group        string `json:"group"`
		Actor        string `json:"actor"`
		Inconsistent bool   `json:"inconsistent"`
	}

	groups := []groupOut{}
	for _, g := range r.Groups() {
		st := r.States()[g]
		groups = append(groups, groupOut{
			Group:    g,
			Status:   string(st.Status),
			Reviewer: st.Reviewer.UnwrapOr(""),
		})
	}
	anomalies := []anomalyOut{}
	for _, a := range r.Anomalies() {
		anomalies = append(anomalies, anomalyOut{
			Kind:         string(a.Kind),
			ErrorKind:    string(a.ErrorKind()),
			Group:        a.Group,
			Actor:        a.Event.Actor,
			Inconsistent: a.Inconsistent(),
		})
	}
	orphaned := []string{}
	for g := range r.Orphaned() {
		orphaned = append(orphaned, g)
	}

	out := struct {
		requestOut
		Creator   string       `json:"creator"`
		Packages  []string     `json:"packages"`
		Groups    []groupOut   `json:"groups"`
		Anomalies []anomalyOut `json:"anomalies"`
		Orphaned  []string     `json:"orphaned_groups"`
	}{
		requestOut: toRequestOut(r),
		Creator:    r.Meta().Creator,
		Packages:   r.Meta().Packages,
		Groups:     groups,
		Anomalies:  anomalies,
		Orphaned:   orphaned,
	}
	return jsonResult(out)
}

// qam_classify
func (s *Server) classifyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qam_classify",
		mcp.WithDescription("Decide whether a user may assign, unassign, approve or reject a request, without changing anything. Returns outcome (legal, ambiguous, illegal), the groups the action would apply to or choose from, and for illegal outcomes the error kind and detail."),
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request id")),
		mcp.WithString("action", mcp.Required(), mcp.Description("One of: assign, unassign, approve, reject")),
		mcp.WithString("user", mcp.Description("User to classify for (defaults to the configured user)")),
		mcp.WithString("groups", mcp.Description("Comma-separated explicit groups")),
		mcp.WithString("reasons", mcp.Description("Comma-separated reject reasons (flags or names)")),
		mcp.WithBoolean("skip_template", mcp.Description("Do not check that a test report exists for assign")),
	)
	return tool, s.handleClassify
}

func (s *Server) handleClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("request_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: request_id"), nil
	}
	actionName, err := request.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: action"), nil
	}
	action, err := review.ParseAction(actionName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	user := request.GetString("user", s.user)
	if user == "" {
		return mcp.NewToolResultError("missing required parameter: user"), nil
	}

	opts := review.Options{
		Groups:         splitList(request.GetString("groups", "")),
		TemplateExists: true,
	}
	if action == review.ActionReject {
		reasons, err := inference.ParseReasons(splitList(request.GetString("reasons", "")))
		if err != nil {
			return errorResult(err)
		}
		opts.Reasons = reasons
	}

	r, err := s.svc.Load(ctx, id)
	if err != nil {
		return errorResult(fmt.Errorf("load request %s: %w", id, err))
	}
	if action == review.ActionAssign && !request.GetBool("skip_template", false) {
		exists, err := s.reports.Exists(ctx, r.Meta())
		if err != nil {
			return errorResult(fmt.Errorf("check test report: %w", err))
		}
		opts.TemplateExists = exists
	}

	return decisionResult(review.Classify(r, action, user, opts))
}

type decisionOut struct {
	Outcome string   `json:"outcome"`
	Groups  []string `json:"groups"`
	Kind    string   `json:"kind,omitempty"`
	Detail  string   `json:"detail,omitempty"`
}

func decisionResult(d inference.Decision) (*mcp.CallToolResult, error) {
	out := decisionOut{
		Outcome: string(d.Outcome),
		Groups:  d.Groups,
		Kind:    string(d.Kind),
		Detail:  d.Detail,
	}
	if out.Groups == nil {
		out.Groups = []string{}
	}
	return jsonResult(out)
}

// errorResult reports a decision error as an illegal decision, a failed
// collaborator as an UPSTREAM_UNAVAILABLE tool error, and anything else as
// plain text.
func errorResult(err error) (*mcp.CallToolResult, error) {
	kind, ok := inference.KindOf(err)
	switch {
	case !ok:
		return mcp.NewToolResultError(err.Error()), nil
	case kind == inference.KindUpstreamUnavailable:
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err)), nil
	}
	return decisionResult(inference.Illegal(kind, "%s", err.Error()))
}

// qam_journal
func (s *Server) journalTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("qam_journal",
		mcp.WithDescription("List review actions this client submitted, newest first."),
		mcp.WithString("request_id", mcp.Description("Only actions on this request")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20)")),
	)
	return tool, s.handleJournal
}

func (s *Server) handleJournal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.journal == nil {
		return mcp.NewToolResultError("journal is not available"), nil
	}
	filter := store.JournalFilter{Limit: request.GetInt("limit", 20)}
	if id := request.GetString("request_id", ""); id != "" {
		reqID, err := obs.ParseRequestID(id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		filter.RequestID = reqID
	}

	entries, err := s.journal.ListActions(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list journal: %v", err)), nil
	}

	type entryOut struct {
		ID        string   `json:"id"`
		RequestID string   `json:"request_id"`
		Action    string   `json:"action"`
		User      string   `json:"user"`
		Groups    []string `json:"groups"`
		Reasons   []string `json:"reasons,omitempty"`
		DryRun    bool     `json:"dry_run"`
		CreatedAt string   `json:"created_at"`
	}
	out := make([]entryOut, len(entries))
	for i, e := range entries {
		out[i] = entryOut{
			ID:        e.ID,
			RequestID: e.RequestID,
			Action:    string(e.Action),
			User:      e.User,
			Groups:    e.Groups,
			Reasons:   e.Reasons,
			DryRun:    e.DryRun,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	return jsonResult(out)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
