package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/obs"
	"github.com/joescharf/qam/internal/store"
	"github.com/joescharf/qam/internal/testreport"
)

// ErrNoComment is returned when a reject is attempted on a report without a
// comment explaining the failure.
var ErrNoComment = errors.New("testreport has no comment")

// Reports is the test report service as the workflow sees it.
type Reports interface {
	Exists(ctx context.Context, req *models.Request) (bool, error)
	Fetch(ctx context.Context, req *models.Request) (*testreport.Report, error)
	FancyURL(req *models.Request) string
}

// NotPreviousReviewerError is returned by Assign when an earlier request of
// the same incident was declined by other reviewers.
type NotPreviousReviewerError struct {
	User      string
	Reviewers []string
}

func (e *NotPreviousReviewerError) Error() string {
	return fmt.Sprintf("%s was not a reviewer of the previously declined request(s); previous reviewers: %s",
		e.User, strings.Join(e.Reviewers, ", "))
}

// Outcome summarizes what a workflow step did.
type Outcome struct {
	Request  *Request
	Action   models.JournalAction
	Groups   []string
	Messages []string
	// Inferred is set when the groups were chosen without -G.
	Inferred bool
	// MoreGroups lists open groups the user could still pick up.
	MoreGroups []string
	// Warnings are non-fatal problems, such as a failed journal write.
	Warnings []string
	DryRun   bool
}

// Service runs review actions for one user session.
type Service struct {
	client  obs.Client
	reports Reports
	journal store.Store
	dryRun  bool
}

// NewService returns a service. journal may be nil.
func NewService(client obs.Client, reports Reports, journal store.Store) *Service {
	return &Service{client: client, reports: reports, journal: journal}
}

// WithDryRun makes every mutation a no-op that is still reported.
func (s *Service) WithDryRun(dryRun bool) *Service {
	s.dryRun = dryRun
	return s
}

// Load fetches the request and the directory and infers group states.
func (s *Service) Load(ctx context.Context, id string) (*Request, error) {
	var (
		meta *models.Request
		dir  *directory.Directory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = s.client.Request(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		dir, err = s.client.Directory(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return New(meta, dir), nil
}

// AssignOptions modifies Assign.
type AssignOptions struct {
	Groups       []string
	SkipTemplate bool
	// Force skips the previous reviewer check.
	Force bool
}

// Assign starts user's review of the request.
func (s *Service) Assign(ctx context.Context, id, user string, opts AssignOptions) (*Outcome, error) {
	// 1. Load and classify without the template check
	req, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	decision := req.CanAssign(user, opts.Groups, true)
	if !decision.IsLegal() {
		return nil, decision.Err()
	}

	// 2. Declined requests of the same incident should go to the same reviewer
	if !opts.Force {
		if err := s.checkPreviousReviewers(ctx, req, user); err != nil {
			return nil, err
		}
	}

	// 3. Template check
	if !opts.SkipTemplate {
		exists, err := s.reports.Exists(ctx, req.Meta())
		if err != nil {
			return nil, fmt.Errorf("check testreport: %w", err)
		}
		decision = req.CanAssign(user, opts.Groups, exists)
		if !decision.IsLegal() {
			return nil, decision.Err()
		}
	}

	// 4. Assign every group, continuing past failures
	out := s.outcome(req, models.JournalAssign, decision.Groups)
	if len(opts.Groups) == 0 {
		out.Inferred = true
		out.Messages = append(out.Messages, fmt.Sprintf("Found a possible group: %s.", decision.Groups[0]))
	}
	var errs error
	for _, group := range decision.Groups {
		msg := fmt.Sprintf("Assigning %s to %s for %s.", user, group, req.ID())
		out.Messages = append(out.Messages, msg)
		if s.dryRun {
			continue
		}
		if err := s.client.AssignReview(ctx, req.ID(), group, user, msg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("assign %s: %w", group, err))
		}
	}
	s.record(ctx, out, user, nil, strings.Join(out.Messages, "\n"))
	return out, errs
}

func (s *Service) checkPreviousReviewers(ctx context.Context, req *Request, user string) error {
	if req.Meta().SrcProject == "" {
		return nil
	}
	related, err := s.client.ForIncident(ctx, req.Meta().SrcProject)
	if err != nil {
		return fmt.Errorf("search previous requests: %w", err)
	}
	seen := make(map[string]struct{})
	var reviewers []string
	for _, r := range related {
		if r.ID == req.ID() || r.State != models.RequestStateDeclined {
			continue
		}
		for _, ur := range r.UserReviews {
			if _, ok := seen[ur.User]; ok {
				continue
			}
			seen[ur.User] = struct{}{}
			reviewers = append(reviewers, ur.User)
		}
	}
	if len(reviewers) == 0 {
		return nil
	}
	if _, ok := seen[user]; ok {
		return nil
	}
	sort.Strings(reviewers)
	return &NotPreviousReviewerError{User: user, Reviewers: reviewers}
}

// Unassign releases user's groups, or the given subset of them.
func (s *Service) Unassign(ctx context.Context, id, user string, groups []string) (*Outcome, error) {
	req, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	decision := req.CanUnassign(user, groups)
	if !decision.IsLegal() {
		return nil, decision.Err()
	}

	out := s.outcome(req, models.JournalUnassign, decision.Groups)
	var errs error
	for _, group := range decision.Groups {
		msg := fmt.Sprintf("Unassigning %s from %s for group %s.", user, req.ID(), group)
		out.Messages = append(out.Messages, msg)
		if s.dryRun {
			continue
		}
		if err := s.client.UnassignReview(ctx, req.ID(), group, user, msg); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unassign %s: %w", group, err))
		}
	}
	s.record(ctx, out, user, nil, strings.Join(out.Messages, "\n"))
	return out, errs
}

// ApproveOptions modifies Approve.
type ApproveOptions struct {
	SkipTemplate bool
}

// Approve accepts user's review after checking the test report passed.
func (s *Service) Approve(ctx context.Context, id, user string, opts ApproveOptions) (*Outcome, error) {
	req, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	decision := req.CanApprove(user)
	if !decision.IsLegal() {
		return nil, decision.Err()
	}

	url := s.reports.FancyURL(req.Meta())
	if !opts.SkipTemplate {
		report, err := s.reports.Fetch(ctx, req.Meta())
		if err != nil {
			return nil, fmt.Errorf("load testreport: %w", err)
		}
		if err := report.RequirePassed(); err != nil {
			return nil, err
		}
		url = report.FancyURL
	}

	out := s.outcome(req, models.JournalApprove, decision.Groups)
	msg := fmt.Sprintf("Approving %s for %s (%s). Testreport: %s",
		req.ID(), user, strings.Join(decision.Groups, ", "), url)
	out.Messages = append(out.Messages, msg)
	out.MoreGroups = req.GroupsOpenFor(user)

	if !s.dryRun {
		if err := s.client.AcceptReview(ctx, req.ID(), obs.ByUser(user), msg); err != nil {
			return nil, fmt.Errorf("approve %s: %w", req.ID(), err)
		}
	}
	s.record(ctx, out, user, nil, msg)
	return out, nil
}

// ApproveGroup accepts a group review directly, bypassing assignment.
func (s *Service) ApproveGroup(ctx context.Context, id, user, group string) (*Outcome, error) {
	req, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	st, ok := req.States()[group]
	switch {
	case !ok:
		return nil, inference.Illegal(inference.KindNotEligible,
			"group %s has no review on request %s", group, req.ID()).Err()
	case st.Status.Terminal():
		return nil, inference.Illegal(inference.KindNotEligible,
			"review for group %s is already %s", group, st.Status).Err()
	}

	out := s.outcome(req, models.JournalApproveGroup, []string{group})
	msg := fmt.Sprintf("Approving %s for group %s.", req.ID(), group)
	out.Messages = append(out.Messages, msg)
	if !s.dryRun {
		if err := s.client.AcceptReview(ctx, req.ID(), obs.ByGroup(group), msg); err != nil {
			return nil, fmt.Errorf("approve %s for %s: %w", req.ID(), group, err)
		}
	}
	s.record(ctx, out, user, nil, msg)
	return out, nil
}

// RejectOptions modifies Reject.
type RejectOptions struct {
	Reasons []models.RejectReason
	Message string
	// Force skips the FAILED report and comment checks.
	Force bool
}

// Reject declines user's review and records the reasons on the incident.
func (s *Service) Reject(ctx context.Context, id, user string, opts RejectOptions) (*Outcome, error) {
	req, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	decision := req.CanReject(user, opts.Reasons)
	if !decision.IsLegal() {
		return nil, decision.Err()
	}

	url := s.reports.FancyURL(req.Meta())
	if !opts.Force {
		report, err := s.reports.Fetch(ctx, req.Meta())
		if err != nil {
			return nil, fmt.Errorf("load testreport: %w", err)
		}
		if err := report.RequireFailed(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(report.Comment) == "" {
			return nil, fmt.Errorf("%s: %w", report.FancyURL, ErrNoComment)
		}
		url = report.FancyURL
	}

	out := s.outcome(req, models.JournalReject, decision.Groups)
	msg := fmt.Sprintf("Declining request %s for %s. See Testreport: %s", req.ID(), user, url)
	if opts.Message != "" {
		msg += "\n\n" + opts.Message
	}
	out.Messages = append(out.Messages, msg)

	flags := make([]string, len(opts.Reasons))
	for i, r := range opts.Reasons {
		flags[i] = r.Flag
	}

	if !s.dryRun {
		if err := s.addRejectReasons(ctx, req, flags); err != nil {
			return nil, err
		}
		if err := s.client.DeclineReview(ctx, req.ID(), obs.ByUser(user), msg); err != nil {
			return nil, fmt.Errorf("reject %s: %w", req.ID(), err)
		}
	}
	s.record(ctx, out, user, flags, msg)
	return out, nil
}

func (s *Service) addRejectReasons(ctx context.Context, req *Request, flags []string) error {
	project := req.Meta().SrcProject
	values, err := s.client.RejectReasons(ctx, project)
	if err != nil && !errors.Is(err, obs.ErrNotFound) {
		return fmt.Errorf("read reject reasons: %w", err)
	}
	for _, f := range flags {
		values = append(values, req.ID()+":"+f)
	}
	if err := s.client.SetRejectReasons(ctx, project, values); err != nil {
		return fmt.Errorf("set reject reasons: %w", err)
	}
	return nil
}

// Comment adds a comment to the request.
func (s *Service) Comment(ctx context.Context, id, user, text string) (*Outcome, error) {
	reqID, err := obs.ParseRequestID(id)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Action: models.JournalComment, DryRun: s.dryRun, Messages: []string{text}}
	if !s.dryRun {
		if err := s.client.AddComment(ctx, reqID, text); err != nil {
			return nil, fmt.Errorf("comment on %s: %w", reqID, err)
		}
	}
	s.recordEntry(ctx, out, &models.JournalEntry{
		RequestID: reqID, Action: models.JournalComment, User: user, Message: text, DryRun: s.dryRun,
	})
	return out, nil
}

// DeleteComment removes one comment of the request.
func (s *Service) DeleteComment(ctx context.Context, id, user, commentID string) (*Outcome, error) {
	reqID, err := obs.ParseRequestID(id)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Action: models.JournalDeleteComment, DryRun: s.dryRun,
		Messages: []string{fmt.Sprintf("Deleting comment %s of %s.", commentID, reqID)}}
	if !s.dryRun {
		if err := s.client.DeleteComment(ctx, commentID); err != nil {
			return nil, fmt.Errorf("delete comment %s: %w", commentID, err)
		}
	}
	s.recordEntry(ctx, out, &models.JournalEntry{
		RequestID: reqID, Action: models.JournalDeleteComment, User: user, Message: commentID, DryRun: s.dryRun,
	})
	return out, nil
}

func (s *Service) outcome(req *Request, action models.JournalAction, groups []string) *Outcome {
	return &Outcome{Request: req, Action: action, Groups: groups, DryRun: s.dryRun}
}

func (s *Service) record(ctx context.Context, out *Outcome, user string, reasons []string, msg string) {
	s.recordEntry(ctx, out, &models.JournalEntry{
		RequestID: out.Request.ID(),
		Action:    out.Action,
		User:      user,
		Groups:    out.Groups,
		Reasons:   reasons,
		Message:   msg,
		DryRun:    s.dryRun,
	})
}

func (s *Service) recordEntry(ctx context.Context, out *Outcome, e *models.JournalEntry) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordAction(ctx, e); err != nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("journal: %v", err))
	}
}
