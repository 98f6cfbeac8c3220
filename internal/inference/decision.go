package inference

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why an action cannot proceed as requested.
type ErrorKind string

const (
	KindAmbiguousGroup      ErrorKind = "AMBIGUOUS_GROUP"
	KindNotEligible         ErrorKind = "NOT_ELIGIBLE"
	KindNotAssigned         ErrorKind = "NOT_ASSIGNED"
	KindTemplateMissing     ErrorKind = "TEMPLATE_MISSING"
	KindMissingReason       ErrorKind = "MISSING_REASON"
	KindNoOpenReviews       ErrorKind = "NO_OPEN_REVIEWS"
	KindInconsistentHistory ErrorKind = "INCONSISTENT_HISTORY"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
)

// ErrUpstreamUnavailable marks a failed read or write of a collaborator.
// Collaborator packages wrap it in their own sentinels.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// Outcome is the case of a Decision.
type Outcome string

const (
	OutcomeLegal     Outcome = "legal"
	OutcomeAmbiguous Outcome = "ambiguous"
	OutcomeIllegal   Outcome = "illegal"
)

// Decision is the result of classifying an action: Legal with the groups to
// act on, Ambiguous with the candidates the caller must choose from, or
// Illegal with the reason.
type Decision struct {
	Outcome Outcome
	Groups  []string
	Kind    ErrorKind
	Detail  string
}

// Legal returns a decision allowing the action on groups.
func Legal(groups []string) Decision {
	return Decision{Outcome: OutcomeLegal, Groups: groups}
}

// Ambiguous returns a decision asking the caller to pick among candidates.
func Ambiguous(candidates []string) Decision {
	return Decision{
		Outcome: OutcomeAmbiguous,
		Groups:  candidates,
		Kind:    KindAmbiguousGroup,
		Detail: fmt.Sprintf("user could review more than one group: %s; "+
			"specify the group to review with -G", strings.Join(candidates, ", ")),
	}
}

// Illegal returns a decision refusing the action.
func Illegal(kind ErrorKind, format string, a ...any) Decision {
	return Decision{Outcome: OutcomeIllegal, Kind: kind, Detail: fmt.Sprintf(format, a...)}
}

// IsLegal reports whether the action may proceed.
func (d Decision) IsLegal() bool { return d.Outcome == OutcomeLegal }

// Err returns nil for a legal decision and a *DecisionError otherwise.
func (d Decision) Err() error {
	if d.IsLegal() {
		return nil
	}
	return &DecisionError{Kind: d.Kind, Detail: d.Detail, Candidates: d.Groups}
}

func (d Decision) String() string {
	switch d.Outcome {
	case OutcomeLegal:
		return "legal(" + strings.Join(d.Groups, ", ") + ")"
	case OutcomeAmbiguous:
		return "ambiguous(" + strings.Join(d.Groups, ", ") + ")"
	default:
		return "illegal(" + string(d.Kind) + ")"
	}
}

// DecisionError carries a non-legal decision through error returns.
type DecisionError struct {
	Kind       ErrorKind
	Detail     string
	Candidates []string
}

func (e *DecisionError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return e.Detail
}

// KindOf extracts the ErrorKind from an error chain. Collaborator failures
// report UPSTREAM_UNAVAILABLE.
func KindOf(err error) (ErrorKind, bool) {
	var de *DecisionError
	switch {
	case errors.As(err, &de):
		return de.Kind, true
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable, true
	}
	return "", false
}
