// Package obs is the client for the build service that hosts maintenance
// review requests. Calls go through the osc command line client; responses
// are decoded from the build service XML.
package obs

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/models"
)

// RejectReasonAttribute stores reject reasons on the incident project.
const RejectReasonAttribute = "MAINT:RejectReason"

// CommentPrefix marks review comments written by this tool.
const CommentPrefix = "[oscqam] "

// Reviewer addresses a review by user or by group.
type Reviewer struct {
	User  string
	Group string
}

// ByUser addresses the review of a single user.
func ByUser(user string) Reviewer { return Reviewer{User: user} }

// ByGroup addresses the review of a group.
func ByGroup(group string) Reviewer { return Reviewer{Group: group} }

func (r Reviewer) String() string {
	if r.Group != "" {
		return r.Group
	}
	return r.User
}

// Client is everything the review workflow needs from the build service.
type Client interface {
	Request(ctx context.Context, id string) (*models.Request, error)
	Events(ctx context.Context, id string) ([]models.ReviewEvent, error)
	Directory(ctx context.Context) (*directory.Directory, error)

	OpenForGroups(ctx context.Context, groups []string) ([]*models.Request, error)
	ReviewForGroups(ctx context.Context, groups []string) ([]*models.Request, error)
	ForUser(ctx context.Context, user string) ([]*models.Request, error)
	ForIncident(ctx context.Context, project string) ([]*models.Request, error)

	AssignReview(ctx context.Context, id, group, user, comment string) error
	UnassignReview(ctx context.Context, id, group, user, comment string) error
	AcceptReview(ctx context.Context, id string, by Reviewer, comment string) error
	DeclineReview(ctx context.Context, id string, by Reviewer, comment string) error

	RejectReasons(ctx context.Context, project string) ([]string, error)
	SetRejectReasons(ctx context.Context, project string, values []string) error

	Comments(ctx context.Context, id string) ([]models.Comment, error)
	AddComment(ctx context.Context, id, text string) error
	DeleteComment(ctx context.Context, commentID string) error

	Priority(ctx context.Context, req *models.Request) models.Priority
	IssueCount(ctx context.Context, project string) (int, error)
}

// Config holds the build service client settings.
type Config struct {
	APIURL   string
	SmeltURL string
	Workers  int
}

// OscClient implements Client on top of a Runner.
type OscClient struct {
	run    Runner
	cfg    Config
	filter directory.Filter
	smelt  PriorityLookup
}

// NewClient returns a client for the build service at cfg.APIURL.
func NewClient(run Runner, cfg Config) *OscClient {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	c := &OscClient{
		run:    run,
		cfg:    cfg,
		filter: directory.FilterFor(cfg.APIURL),
	}
	if cfg.SmeltURL != "" {
		c.smelt = NewSmelt(cfg.SmeltURL)
	}
	return c
}

// WithPriorityLookup replaces the fallback used when an incident carries no
// priority attribute.
func (c *OscClient) WithPriorityLookup(p PriorityLookup) *OscClient {
	c.smelt = p
	return c
}

// Filter returns the group and project filter for the configured service.
func (c *OscClient) Filter() directory.Filter { return c.filter }

func (c *OscClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return c.run.Run(ctx, "GET", path, nil)
}

func (c *OscClient) post(ctx context.Context, path string, params url.Values, body []byte) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	_, err := c.run.Run(ctx, "POST", path, body)
	return err
}

func (c *OscClient) Request(ctx context.Context, id string) (*models.Request, error) {
	reqID, err := ParseRequestID(id)
	if err != nil {
		return nil, err
	}
	data, err := c.get(ctx, "/request/"+reqID, url.Values{"withfullhistory": {"1"}})
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", reqID, err)
	}
	return decodeRequest(data)
}

func (c *OscClient) Events(ctx context.Context, id string) ([]models.ReviewEvent, error) {
	req, err := c.Request(ctx, id)
	if err != nil {
		return nil, err
	}
	return req.Events, nil
}

// Directory lists every review group with its members. Member lists are
// fetched concurrently.
func (c *OscClient) Directory(ctx context.Context) (*directory.Directory, error) {
	data, err := c.get(ctx, "/group", nil)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	var dir xmlDirectory
	if err := xml.Unmarshal(data, &dir); err != nil {
		return nil, fmt.Errorf("decode group list: %w", err)
	}

	var names []string
	for _, e := range dir.Entries {
		if c.filter.IsReviewGroup(e.Name) {
			names = append(names, e.Name)
		}
	}

	entries := make([]directory.Entry, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, name := range names {
		g.Go(func() error {
			members, err := c.groupMembers(gctx, name)
			if err != nil {
				return err
			}
			entries[i] = directory.Entry{Group: name, Members: members}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return directory.New(entries...), nil
}

func (c *OscClient) groupMembers(ctx context.Context, name string) ([]string, error) {
	data, err := c.get(ctx, "/group/"+name, nil)
	if err != nil {
		return nil, fmt.Errorf("get group %s: %w", name, err)
	}
	var grp xmlGroup
	if err := xml.Unmarshal(data, &grp); err != nil {
		return nil, fmt.Errorf("decode group %s: %w", name, err)
	}
	members := make([]string, 0, len(grp.Persons))
	for _, p := range grp.Persons {
		members = append(members, p.UserID)
	}
	return members, nil
}

// groupXPath matches requests in review with a group review in state.
func groupXPath(groups []string, state string) string {
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, fmt.Sprintf("(review[@by_group='%s' and @state='%s'])", g, state))
	}
	return fmt.Sprintf("(state/@name='review') and ( %s )", strings.Join(parts, " or "))
}

func (c *OscClient) search(ctx context.Context, groups []string, state string) ([]*models.Request, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	data, err := c.get(ctx, "/search/request", url.Values{
		"match":           {groupXPath(groups, state)},
		"withfullhistory": {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("search requests: %w", err)
	}
	reqs, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}
	return c.maintenance(reqs), nil
}

func (c *OscClient) maintenance(reqs []*models.Request) []*models.Request {
	out := reqs[:0]
	for _, r := range reqs {
		if c.filter.IsMaintenanceProject(r.SrcProject) {
			out = append(out, r)
		}
	}
	return out
}

// OpenForGroups returns requests where one of groups has not started yet.
func (c *OscClient) OpenForGroups(ctx context.Context, groups []string) ([]*models.Request, error) {
	return c.search(ctx, groups, "new")
}

// ReviewForGroups returns requests where one of groups was taken by a
// reviewer. Whether the reviewer is still on it is for the caller to infer.
func (c *OscClient) ReviewForGroups(ctx context.Context, groups []string) ([]*models.Request, error) {
	return c.search(ctx, groups, "accepted")
}

// ForUser returns the open maintenance requests involving user.
func (c *OscClient) ForUser(ctx context.Context, user string) ([]*models.Request, error) {
	data, err := c.get(ctx, "/request", url.Values{
		"user":            {user},
		"view":            {"collection"},
		"states":          {"new,review"},
		"withfullhistory": {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("requests for %s: %w", user, err)
	}
	reqs, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}
	return c.maintenance(reqs), nil
}

// ForIncident returns every request of an incident project that has a
// review group on it.
func (c *OscClient) ForIncident(ctx context.Context, project string) ([]*models.Request, error) {
	data, err := c.get(ctx, "/request", url.Values{
		"project":         {project},
		"view":            {"collection"},
		"withfullhistory": {"1"},
	})
	if err != nil {
		return nil, fmt.Errorf("requests for %s: %w", project, err)
	}
	reqs, err := decodeCollection(data)
	if err != nil {
		return nil, err
	}
	var out []*models.Request
	for _, r := range reqs {
		for _, g := range r.Groups {
			if c.filter.IsReviewGroup(g) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (c *OscClient) reviewAction(ctx context.Context, id string, params url.Values, by Reviewer, comment string) error {
	if by.User == "" && by.Group == "" {
		return errors.New("review action needs a user or a group")
	}
	if by.User != "" {
		params.Set("by_user", by.User)
	}
	if by.Group != "" {
		params.Set("by_group", by.Group)
	}
	var body []byte
	if comment != "" {
		body = []byte(comment)
	}
	if err := c.post(ctx, "/request/"+id, params, body); err != nil {
		return fmt.Errorf("%s on request %s: %w", params.Get("cmd"), id, err)
	}
	return nil
}

func (c *OscClient) AssignReview(ctx context.Context, id, group, user, comment string) error {
	return c.reviewAction(ctx, id, url.Values{
		"cmd":      {"assignreview"},
		"reviewer": {user},
	}, ByGroup(group), comment)
}

func (c *OscClient) UnassignReview(ctx context.Context, id, group, user, comment string) error {
	return c.reviewAction(ctx, id, url.Values{
		"cmd":      {"assignreview"},
		"revert":   {"1"},
		"reviewer": {user},
	}, ByGroup(group), comment)
}

func (c *OscClient) AcceptReview(ctx context.Context, id string, by Reviewer, comment string) error {
	return c.reviewAction(ctx, id, url.Values{
		"cmd":      {"changereviewstate"},
		"newstate": {"accepted"},
	}, by, prefixComment(comment))
}

func (c *OscClient) DeclineReview(ctx context.Context, id string, by Reviewer, comment string) error {
	return c.reviewAction(ctx, id, url.Values{
		"cmd":      {"changereviewstate"},
		"newstate": {"declined"},
	}, by, prefixComment(comment))
}

func prefixComment(comment string) string {
	if comment == "" {
		return ""
	}
	return CommentPrefix + comment
}

func attributePath(project, attribute string) string {
	return fmt.Sprintf("/source/%s/_attribute/%s", project, attribute)
}

// RejectReasons returns the values of the reject reason attribute.
func (c *OscClient) RejectReasons(ctx context.Context, project string) ([]string, error) {
	data, err := c.get(ctx, attributePath(project, RejectReasonAttribute), nil)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", RejectReasonAttribute, err)
	}
	return attributeValues(data)
}

// SetRejectReasons replaces the reject reason attribute with values.
func (c *OscClient) SetRejectReasons(ctx context.Context, project string, values []string) error {
	ns, name, _ := strings.Cut(RejectReasonAttribute, ":")
	body, err := xml.Marshal(xmlAttributes{Attributes: []xmlAttribute{{
		Namespace: ns,
		Name:      name,
		Values:    values,
	}}})
	if err != nil {
		return fmt.Errorf("encode attribute: %w", err)
	}
	if err := c.post(ctx, attributePath(project, RejectReasonAttribute), nil, body); err != nil {
		return fmt.Errorf("set %s: %w", RejectReasonAttribute, err)
	}
	return nil
}

func attributeValues(data []byte) ([]string, error) {
	var attrs xmlAttributes
	if err := xml.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("decode attributes: %w", err)
	}
	var values []string
	for _, a := range attrs.Attributes {
		values = append(values, a.Values...)
	}
	return values, nil
}

func (c *OscClient) Comments(ctx context.Context, id string) ([]models.Comment, error) {
	data, err := c.get(ctx, "/comments/request/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	var xc xmlComments
	if err := xml.Unmarshal(data, &xc); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	out := make([]models.Comment, 0, len(xc.Comments))
	for _, cm := range xc.Comments {
		out = append(out, models.Comment{
			ID:     cm.ID,
			Who:    cm.Who,
			When:   parseWhen(cm.When),
			Text:   strings.TrimSpace(cm.Text),
			Parent: cm.Parent,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].When.Before(out[j].When) })
	return out, nil
}

func (c *OscClient) AddComment(ctx context.Context, id, text string) error {
	if err := c.post(ctx, "/comments/request/"+id, nil, []byte(text)); err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	return nil
}

func (c *OscClient) DeleteComment(ctx context.Context, commentID string) error {
	if _, err := c.run.Run(ctx, "DELETE", "/comment/"+commentID, nil); err != nil {
		return fmt.Errorf("delete comment %s: %w", commentID, err)
	}
	return nil
}

// IssueCount counts the issues referenced by the incident's patchinfo.
func (c *OscClient) IssueCount(ctx context.Context, project string) (int, error) {
	data, err := c.get(ctx, fmt.Sprintf("/source/%s/patchinfo/_patchinfo", project), nil)
	if err != nil {
		return 0, fmt.Errorf("get patchinfo: %w", err)
	}
	var p xmlPatchinfo
	if err := xml.Unmarshal(data, &p); err != nil {
		return 0, fmt.Errorf("decode patchinfo: %w", err)
	}
	return len(p.Issues), nil
}
