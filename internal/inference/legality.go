package inference

import (
	"sort"
	"strings"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/models"
)

// OpenGroups returns the groups with status OPEN, sorted.
func OpenGroups(states map[string]models.GroupReviewState) []string {
	return groupsWhere(states, func(s models.GroupReviewState) bool {
		return s.Status == models.GroupStatusOpen
	})
}

// OpenGroupsFor returns the OPEN groups user is a member of, sorted.
func OpenGroupsFor(states map[string]models.GroupReviewState, dir *directory.Directory, user string) []string {
	return groupsWhere(states, func(s models.GroupReviewState) bool {
		return s.Status == models.GroupStatusOpen && dir.IsMember(s.Group, user)
	})
}

// InProgressFor returns the groups user is currently reviewing, sorted.
func InProgressFor(states map[string]models.GroupReviewState, user string) []string {
	return groupsWhere(states, func(s models.GroupReviewState) bool {
		return s.Status == models.GroupStatusInProgress && s.ReviewedBy(user)
	})
}

func groupsWhere(states map[string]models.GroupReviewState, keep func(models.GroupReviewState) bool) []string {
	var out []string
	for _, s := range states {
		if keep(s) {
			out = append(out, s.Group)
		}
	}
	sort.Strings(out)
	return out
}

// unique returns the distinct names of groups in sorted order.
func unique(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// ClassifyAssign decides whether user may start reviewing.
//
// With explicit groups each must be OPEN with user a member. Without them the
// candidates are the OPEN groups user belongs to: none is NOT_ELIGIBLE, more
// than one is ambiguous. The template check runs last; callers that skip it
// pass templateExists = true.
func ClassifyAssign(states map[string]models.GroupReviewState, dir *directory.Directory,
	user string, explicit []string, templateExists bool) Decision {

	var groups []string
	if len(explicit) > 0 {
		for _, g := range unique(explicit) {
			st, ok := states[g]
			switch {
			case !ok:
				return Illegal(KindNotEligible, "group %s has no review on this request", g)
			case !dir.IsMember(g, user):
				return Illegal(KindNotEligible, "user %s is not a member of group %s", user, g)
			case st.Status != models.GroupStatusOpen:
				return Illegal(KindNotEligible, "review for group %s is not open (%s)", g, st.Status)
			}
		}
		groups = unique(explicit)
	} else {
		if len(OpenGroups(states)) == 0 {
			return Illegal(KindNoOpenReviews, "no open reviews on this request")
		}
		candidates := OpenGroupsFor(states, dir, user)
		switch len(candidates) {
		case 0:
			return Illegal(KindNotEligible, "user %s is not a member of any open review group", user)
		case 1:
			groups = candidates
		default:
			return Ambiguous(candidates)
		}
	}

	if !templateExists {
		return Illegal(KindTemplateMissing, "no testreport template found for this request")
	}
	return Legal(groups)
}

// ClassifyUnassign decides which of user's in-progress groups to release.
func ClassifyUnassign(states map[string]models.GroupReviewState, user string, explicit []string) Decision {
	assigned := InProgressFor(states, user)
	if len(assigned) == 0 {
		return Illegal(KindNotAssigned, "user %s is not assigned to any group of this request", user)
	}
	if len(explicit) == 0 {
		return Legal(assigned)
	}
	var missing []string
	for _, g := range unique(explicit) {
		if !contains(assigned, g) {
			missing = append(missing, g)
		}
	}
	if len(missing) > 0 {
		return Illegal(KindNotAssigned, "user %s is not assigned to: %s", user, strings.Join(missing, ", "))
	}
	return Legal(unique(explicit))
}

// ClassifyApprove decides whether user may approve their in-progress groups.
func ClassifyApprove(states map[string]models.GroupReviewState, user string) Decision {
	assigned := InProgressFor(states, user)
	if len(assigned) == 0 {
		return Illegal(KindNotAssigned, "user %s is not assigned to any group of this request", user)
	}
	return Legal(assigned)
}

// ParseReasons resolves reject reason flags or names. A code outside the
// closed set is a MISSING_REASON decision error.
func ParseReasons(codes []string) ([]models.RejectReason, error) {
	reasons, err := models.ParseRejectReasons(codes)
	if err != nil {
		return nil, Illegal(KindMissingReason, "%v", err).Err()
	}
	return reasons, nil
}

// ClassifyReject is ClassifyApprove with at least one valid reason required.
func ClassifyReject(states map[string]models.GroupReviewState, user string, reasons []models.RejectReason) Decision {
	if len(reasons) == 0 {
		return Illegal(KindMissingReason, "a reject reason is required (one of: %s)",
			models.RejectReasonFlags())
	}
	for _, r := range reasons {
		if known, err := models.RejectReasonByID(r.ID); err != nil || known != r {
			return Illegal(KindMissingReason, "invalid reject reason: %s", r.Flag)
		}
	}
	return ClassifyApprove(states, user)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
