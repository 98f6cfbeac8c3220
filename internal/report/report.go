package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/review"
	"github.com/joescharf/qam/internal/testreport"
)

// Report is one request together with the data a listing shows for it.
type Report struct {
	Request  *review.Request
	Test     *testreport.Report
	Priority models.Priority
	Comments []models.Comment
	Issues   fn.Option[int]
}

// Value renders field for display. Multiple values are comma separated.
func (r *Report) Value(f Field) string {
	meta := r.Request.Meta()
	switch f {
	case FieldRRID:
		if r.Test != nil && r.Test.RRID != "" {
			return r.Test.RRID
		}
		return meta.RRID()
	case FieldProducts:
		return r.join(func(t *testreport.Report) []string { return t.Products })
	case FieldSRCRPMs:
		return r.join(func(t *testreport.Report) []string { return t.SRCRPMs })
	case FieldBugs:
		return r.join(func(t *testreport.Report) []string { return t.Bugs })
	case FieldCategory:
		return r.header("Category")
	case FieldRating:
		if r.Test == nil {
			return ""
		}
		return string(r.Test.Rating)
	case FieldPackageStreams:
		return r.header("Package-Streams")
	case FieldUnassigned:
		return strings.Join(r.Request.OpenGroups(), ", ")
	case FieldAssigned:
		assignments := r.Request.Assignments()
		parts := make([]string, len(assignments))
		for i, a := range assignments {
			parts[i] = a.String()
		}
		return strings.Join(parts, ", ")
	case FieldPriority:
		return r.Priority.String()
	case FieldComments:
		parts := make([]string, len(r.Comments))
		for i, c := range r.Comments {
			parts[i] = fmt.Sprintf("%s (%s): %s", c.Who, humanize.Time(c.When), c.Text)
		}
		return strings.Join(parts, "\n")
	case FieldCreator:
		return meta.Creator
	case FieldIssues:
		if r.Issues.IsNone() {
			return ""
		}
		return strconv.Itoa(r.Issues.UnwrapOr(0))
	}
	return ""
}

func (r *Report) join(values func(*testreport.Report) []string) string {
	if r.Test == nil {
		return ""
	}
	return strings.Join(values(r.Test), ", ")
}

func (r *Report) header(key string) string {
	if r.Test == nil {
		return ""
	}
	return r.Test.Headers[key]
}

// Rating returns the test report rating, empty without a report.
func (r *Report) Rating() models.Rating {
	if r.Test == nil {
		return ""
	}
	return r.Test.Rating
}
