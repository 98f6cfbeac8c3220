package models

import (
	"fmt"
	"strings"
)

// RejectReason is one of the fixed categories the maintenance tracker accepts
// for a declined update. Flag is the value stored remotely.
type RejectReason struct {
	ID   int
	Name string
	Flag string
	Text string
}

// RejectReasons is the closed set of reasons, ordered by ID.
var RejectReasons = []RejectReason{
	{ID: 0, Name: "administrative", Flag: "admin", Text: "Administrative (e.g. pack more fixes into the updates)"},
	{ID: 1, Name: "retracted", Flag: "retracted", Text: "Retracted (e.g. fix not needed)"},
	{ID: 2, Name: "build_problem", Flag: "build_problem", Text: "Build problem (e.g. wrong rpm $version-$release)"},
	{ID: 3, Name: "not_fixed", Flag: "not_fixed", Text: "Issues not fixed (e.g. incomplete back-port or upstream fix)"},
	{ID: 4, Name: "regression", Flag: "regression", Text: "Regression (e.g. run-time regression or installation issues)"},
	{ID: 5, Name: "false_reject", Flag: "false_reject", Text: "False reject (e.g. spoiled results due to test setup error)"},
	{ID: 6, Name: "tracking_issue", Flag: "tracking_issue", Text: "Incident tracking issue (e.g. bad bug list or issues with patchinfo metadata)"},
}

func (r RejectReason) String() string { return r.Text }

// RejectReasonFlags returns the accepted flags, comma separated.
func RejectReasonFlags() string {
	flags := make([]string, len(RejectReasons))
	for i, r := range RejectReasons {
		flags[i] = r.Flag
	}
	return strings.Join(flags, ", ")
}

// ParseRejectReason resolves a flag or a category name.
func ParseRejectReason(s string) (RejectReason, error) {
	s = strings.TrimSpace(s)
	for _, r := range RejectReasons {
		if r.Flag == s || r.Name == s {
			return r, nil
		}
	}
	return RejectReason{}, fmt.Errorf("unknown reject reason %q (available: %s)", s, RejectReasonFlags())
}

// RejectReasonByID resolves the number shown by the interactive prompt.
func RejectReasonByID(id int) (RejectReason, error) {
	for _, r := range RejectReasons {
		if r.ID == id {
			return r, nil
		}
	}
	return RejectReason{}, fmt.Errorf("no reject reason with id %d", id)
}

// ParseRejectReasons parses every entry, failing on the first unknown one.
func ParseRejectReasons(values []string) ([]RejectReason, error) {
	reasons := make([]RejectReason, 0, len(values))
	for _, v := range values {
		r, err := ParseRejectReason(v)
		if err != nil {
			return nil, err
		}
		reasons = append(reasons, r)
	}
	return reasons, nil
}
