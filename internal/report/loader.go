package report

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"

	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/review"
	"github.com/joescharf/qam/internal/testreport"
)

// Source is the part of the build service client a listing needs.
type Source interface {
	Priority(ctx context.Context, req *models.Request) models.Priority
	Comments(ctx context.Context, id string) ([]models.Comment, error)
	IssueCount(ctx context.Context, project string) (int, error)
}

// Templates loads test reports.
type Templates interface {
	Fetch(ctx context.Context, req *models.Request) (*testreport.Report, error)
}

// Warning is a request that was left out of a listing.
type Warning struct {
	RequestID string
	Err       error
}

func (w Warning) String() string {
	return fmt.Sprintf("skipping %s: %v", w.RequestID, w.Err)
}

// Loader builds reports with a bounded number of concurrent fetches.
type Loader struct {
	source    Source
	templates Templates
	workers   int
}

// NewLoader returns a loader running at most workers fetches at a time.
func NewLoader(source Source, templates Templates, workers int) *Loader {
	if workers <= 0 {
		workers = 8
	}
	return &Loader{source: source, templates: templates, workers: workers}
}

type loaded struct {
	report *Report
	warn   *Warning
}

// Load builds a report per request. Requests whose test report cannot be
// loaded are left out and returned as warnings; comments and issues are
// only fetched when fields ask for them.
func (l *Loader) Load(ctx context.Context, reqs []*review.Request, fields []Field) ([]*Report, []Warning) {
	wantComments := containsField(fields, FieldComments)
	wantIssues := containsField(fields, FieldIssues)

	p := pool.NewWithResults[loaded]().WithMaxGoroutines(l.workers)
	for _, req := range reqs {
		p.Go(func() loaded {
			return l.load(ctx, req, wantComments, wantIssues)
		})
	}

	var (
		reports  []*Report
		warnings []Warning
	)
	for _, res := range p.Wait() {
		if res.warn != nil {
			warnings = append(warnings, *res.warn)
			continue
		}
		reports = append(reports, res.report)
	}
	Sort(reports)
	return reports, warnings
}

func (l *Loader) load(ctx context.Context, req *review.Request, wantComments, wantIssues bool) loaded {
	meta := req.Meta()
	test, err := l.templates.Fetch(ctx, meta)
	if err != nil {
		return loaded{warn: &Warning{RequestID: meta.ID, Err: err}}
	}

	req.SetPriority(l.source.Priority(ctx, meta))
	r := &Report{
		Request:  req,
		Test:     test,
		Priority: req.Priority(),
		Issues:   req.IssueCount(),
	}
	if wantComments {
		comments, err := l.source.Comments(ctx, meta.ID)
		if err != nil {
			return loaded{warn: &Warning{RequestID: meta.ID, Err: err}}
		}
		r.Comments = comments
	}
	if wantIssues {
		n, err := l.source.IssueCount(ctx, meta.SrcProject)
		if err == nil {
			req.SetIssueCount(n)
			r.Issues = req.IssueCount()
		}
	}
	return loaded{report: r}
}

func containsField(fields []Field, f Field) bool {
	for _, v := range fields {
		if v == f {
			return true
		}
	}
	return false
}
