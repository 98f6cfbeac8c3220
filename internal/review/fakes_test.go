package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/obs"
	"github.com/joescharf/qam/internal/testreport"
)

var base = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func ev(seq int64, group, actor string, kind models.EventKind) models.ReviewEvent {
	return models.ReviewEvent{
		Group:     group,
		Actor:     actor,
		Kind:      kind,
		Timestamp: base.Add(time.Duration(seq) * time.Minute),
		Sequence:  seq,
	}
}

func testDirectory() *directory.Directory {
	return directory.New(
		directory.Entry{Group: "qam-sle", Members: []string{"alice", "bob"}},
		directory.Entry{Group: "qam-atk", Members: []string{"alice"}},
		directory.Entry{Group: "qam-cloud", Members: []string{"carol"}},
	)
}

func testMeta(groups []string, events ...models.ReviewEvent) *models.Request {
	return &models.Request{
		ID:         "300001",
		SrcProject: "SUSE:Maintenance:4242",
		State:      models.RequestStateReview,
		Creator:    "maint-coord",
		Packages:   []string{"openssl"},
		Groups:     groups,
		Events:     events,
	}
}

// fakeClient implements obs.Client over in-memory data.
type fakeClient struct {
	mu       sync.Mutex
	meta     *models.Request
	dir      *directory.Directory
	incident []*models.Request
	reasons  []string
	fail     map[string]error
	calls    []string
}

func newFakeClient(meta *models.Request) *fakeClient {
	return &fakeClient{meta: meta, dir: testDirectory(), fail: map[string]error{}}
}

func (f *fakeClient) call(name string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.TrimSpace(fmt.Sprintln(append([]any{name}, args...)...)))
	if err, ok := f.fail[name]; ok {
		return err
	}
	return nil
}

func (f *fakeClient) callsTo(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name || strings.HasPrefix(c, name+" ") {
			n++
		}
	}
	return n
}

func (f *fakeClient) Request(ctx context.Context, id string) (*models.Request, error) {
	if err := f.call("Request", id); err != nil {
		return nil, err
	}
	return f.meta, nil
}

func (f *fakeClient) Events(ctx context.Context, id string) ([]models.ReviewEvent, error) {
	return f.meta.Events, f.call("Events", id)
}

func (f *fakeClient) Directory(ctx context.Context) (*directory.Directory, error) {
	if err := f.call("Directory"); err != nil {
		return nil, err
	}
	return f.dir, nil
}

func (f *fakeClient) OpenForGroups(ctx context.Context, groups []string) ([]*models.Request, error) {
	return []*models.Request{f.meta}, f.call("OpenForGroups")
}

func (f *fakeClient) ReviewForGroups(ctx context.Context, groups []string) ([]*models.Request, error) {
	return []*models.Request{f.meta}, f.call("ReviewForGroups")
}

func (f *fakeClient) ForUser(ctx context.Context, user string) ([]*models.Request, error) {
	return []*models.Request{f.meta}, f.call("ForUser", user)
}

func (f *fakeClient) ForIncident(ctx context.Context, project string) ([]*models.Request, error) {
	if err := f.call("ForIncident", project); err != nil {
		return nil, err
	}
	return append([]*models.Request{f.meta}, f.incident...), nil
}

func (f *fakeClient) AssignReview(ctx context.Context, id, group, user, comment string) error {
	return f.call("AssignReview", id, group, user)
}

func (f *fakeClient) UnassignReview(ctx context.Context, id, group, user, comment string) error {
	return f.call("UnassignReview", id, group, user)
}

func (f *fakeClient) AcceptReview(ctx context.Context, id string, by obs.Reviewer, comment string) error {
	return f.call("AcceptReview", id, by.String())
}

func (f *fakeClient) DeclineReview(ctx context.Context, id string, by obs.Reviewer, comment string) error {
	return f.call("DeclineReview", id, by.String())
}

func (f *fakeClient) RejectReasons(ctx context.Context, project string) ([]string, error) {
	if err := f.call("RejectReasons", project); err != nil {
		return nil, err
	}
	return append([]string(nil), f.reasons...), nil
}

func (f *fakeClient) SetRejectReasons(ctx context.Context, project string, values []string) error {
	if err := f.call("SetRejectReasons", project); err != nil {
		return err
	}
	f.mu.Lock()
	f.reasons = values
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Comments(ctx context.Context, id string) ([]models.Comment, error) {
	return nil, f.call("Comments", id)
}

func (f *fakeClient) AddComment(ctx context.Context, id, text string) error {
	return f.call("AddComment", id)
}

func (f *fakeClient) DeleteComment(ctx context.Context, commentID string) error {
	return f.call("DeleteComment", commentID)
}

func (f *fakeClient) Priority(ctx context.Context, req *models.Request) models.Priority {
	return models.UnknownPriority()
}

func (f *fakeClient) IssueCount(ctx context.Context, project string) (int, error) {
	return 0, f.call("IssueCount", project)
}

// fakeReports implements Reports.
type fakeReports struct {
	exists    bool
	existsErr error
	report    *testreport.Report
	fetchErr  error
}

func (f *fakeReports) Exists(ctx context.Context, req *models.Request) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeReports) Fetch(ctx context.Context, req *models.Request) (*testreport.Report, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.report, nil
}

func (f *fakeReports) FancyURL(req *models.Request) string {
	return "https://qam.example/reports/" + req.RRID() + "/log"
}

func passedReport() *testreport.Report {
	return &testreport.Report{Summary: "PASSED", FancyURL: "https://qam.example/reports/r/log"}
}

func failedReport(comment string) *testreport.Report {
	return &testreport.Report{Summary: "FAILED", Comment: comment, FancyURL: "https://qam.example/reports/r/log"}
}
