package review

import (
	"fmt"
	"strings"

	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/models"
)

// Action is a review transition a user can ask for.
type Action string

const (
	ActionAssign   Action = "assign"
	ActionUnassign Action = "unassign"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
)

// Actions lists every action in display order.
var Actions = []Action{ActionAssign, ActionUnassign, ActionApprove, ActionReject}

// ParseAction resolves an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q (available: assign, unassign, approve, reject)", s)
}

// Options carries the optional inputs of Classify.
type Options struct {
	Groups         []string
	TemplateExists bool
	Reasons        []models.RejectReason
}

// Classify decides whether user may perform action on req. Only req's own
// events take part.
func Classify(req *Request, action Action, user string, opts Options) inference.Decision {
	switch action {
	case ActionAssign:
		return req.CanAssign(user, opts.Groups, opts.TemplateExists)
	case ActionUnassign:
		return req.CanUnassign(user, opts.Groups)
	case ActionApprove:
		return req.CanApprove(user)
	case ActionReject:
		return req.CanReject(user, opts.Reasons)
	}
	return inference.Illegal(inference.KindNotEligible, "unknown action %q", action)
}
