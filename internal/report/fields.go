// Package report composes the listing of review requests: which fields to
// show, loading the data behind them and rendering it.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// Field is a column of a listing.
type Field string

const (
	FieldRRID           Field = "ReviewRequestID"
	FieldProducts       Field = "Products"
	FieldSRCRPMs        Field = "SRCRPMs"
	FieldBugs           Field = "Bugs"
	FieldCategory       Field = "Category"
	FieldRating         Field = "Rating"
	FieldUnassigned     Field = "Unassigned Roles"
	FieldAssigned       Field = "Assigned Roles"
	FieldPackageStreams Field = "Package-Streams"
	FieldPriority       Field = "Incident Priority"
	FieldComments       Field = "Comments"
	FieldCreator        Field = "Creator"
	FieldIssues         Field = "Issues"
)

// AllFields lists every field in display order.
var AllFields = []Field{
	FieldRRID, FieldProducts, FieldSRCRPMs, FieldBugs, FieldCategory,
	FieldRating, FieldUnassigned, FieldAssigned, FieldPackageStreams,
	FieldPriority, FieldComments, FieldCreator, FieldIssues,
}

// DefaultFields is shown by list when no -F is given.
var DefaultFields = []Field{FieldRRID, FieldSRCRPMs, FieldRating, FieldProducts, FieldPriority}

// AssignedFields is shown by assigned and my.
var AssignedFields = append(append([]Field{}, DefaultFields...), FieldAssigned, FieldCreator)

// InfoFields is shown by info.
var InfoFields = append(append([]Field{}, DefaultFields...),
	FieldAssigned, FieldUnassigned, FieldCreator, FieldIssues)

const maxSuggestionDistance = 4

// UnknownFieldError names a field that does not exist and the closest
// existing ones.
type UnknownFieldError struct {
	Name        string
	Suggestions []Field
}

func (e *UnknownFieldError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown field %q", e.Name)
	}
	names := make([]string, len(e.Suggestions))
	for i, f := range e.Suggestions {
		names[i] = fmt.Sprintf("%q", string(f))
	}
	return fmt.Sprintf("unknown field %q, did you mean %s?", e.Name, strings.Join(names, " or "))
}

// ParseField resolves a field name, ignoring case.
func ParseField(name string) (Field, error) {
	name = strings.TrimSpace(name)
	for _, f := range AllFields {
		if strings.EqualFold(string(f), name) {
			return f, nil
		}
	}
	return "", &UnknownFieldError{Name: name, Suggestions: suggest(name)}
}

// ParseFields resolves every name, failing on the first unknown one.
func ParseFields(names []string) ([]Field, error) {
	fields := make([]Field, 0, len(names))
	for _, n := range names {
		f, err := ParseField(n)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func suggest(name string) []Field {
	type candidate struct {
		field    Field
		distance int
	}
	lower := strings.ToLower(name)
	var candidates []candidate
	for _, f := range AllFields {
		d := levenshtein.Distance(lower, strings.ToLower(string(f)), nil)
		if d <= maxSuggestionDistance {
			candidates = append(candidates, candidate{f, d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	out := make([]Field, len(candidates))
	for i, c := range candidates {
		out[i] = c.field
	}
	return out
}
