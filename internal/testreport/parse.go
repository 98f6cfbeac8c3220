package testreport

import (
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/joescharf/qam/internal/models"
)

const endMarker = "#############################"

// Status is the overall verdict recorded in a report's SUMMARY header.
type Status string

const (
	StatusPassed  Status = "PASSED"
	StatusFailed  Status = "FAILED"
	StatusUnknown Status = "UNKNOWN"
)

// Report is the parsed header of a test report log.
type Report struct {
	URL      string
	FancyURL string

	Summary  string
	Comment  string
	Rating   models.Rating
	Products []string
	SRCRPMs  []string
	Packages []string
	Bugs     []string
	RRID     string

	// Headers holds every header line by key, including the ones above.
	Headers map[string]string
}

// Status interprets the SUMMARY header.
func (r *Report) Status() Status {
	switch strings.ToUpper(strings.TrimSpace(r.Summary)) {
	case "PASSED":
		return StatusPassed
	case "FAILED":
		return StatusFailed
	}
	return StatusUnknown
}

// Parse reads the header section of a report log and merges the optional
// metadata.json document over it.
func Parse(log, metadata []byte) *Report {
	r := &Report{Headers: make(map[string]string)}

	text := string(log)
	comment := commentBlock(text)
	if comment != "" {
		text = strings.Replace(text, comment, "", 1)
	}
	r.Comment = strings.TrimSpace(strings.TrimPrefix(comment, "comment:"))
	if r.Comment == "NONE" {
		r.Comment = ""
	}

	entries := make(map[string][]string)
	var order []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, endMarker) {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if _, seen := entries[key]; !seen {
			order = append(order, key)
		}
		entries[key] = append(entries[key], strings.TrimSpace(value))
	}

	for _, key := range order {
		value := strings.Join(entries[key], "\n")
		r.Headers[key] = value
		switch key {
		case "SUMMARY":
			r.Summary = value
		case "Packages":
			r.Packages = splitComma(value)
		case "Bugs":
			r.Bugs = splitComma(value)
		case "Products":
			r.Products = splitProducts(value)
		case "SRCRPMs":
			r.SRCRPMs = splitComma(value)
		case "Rating":
			r.Rating = models.Rating(value)
		case "ReviewRequestID":
			r.RRID = value
		}
	}

	if len(metadata) > 0 && gjson.ValidBytes(metadata) {
		r.mergeMetadata(gjson.ParseBytes(metadata))
	}
	return r
}

func (r *Report) mergeMetadata(md gjson.Result) {
	if v := md.Get("SRCRPMs"); v.Exists() {
		r.SRCRPMs = strs(v)
	}
	if v := md.Get("products"); v.Exists() {
		r.Products = splitProducts(strings.Join(strs(v), ","))
	}
	if v := md.Get("rating"); v.Exists() {
		r.Rating = models.Rating(v.String())
	}
	if v := md.Get("packages"); v.Exists() {
		set := make(map[string]struct{})
		v.ForEach(func(_, list gjson.Result) bool {
			for _, p := range strs(list) {
				set[p] = struct{}{}
			}
			return true
		})
		r.Packages = r.Packages[:0]
		for p := range set {
			r.Packages = append(r.Packages, p)
		}
		sort.Strings(r.Packages)
	}
	if v := md.Get("bugs"); v.Exists() {
		r.Bugs = strs(v)
	}
	if v := md.Get("rrid"); v.Exists() {
		r.RRID = v.String()
	}
}

func strs(v gjson.Result) []string {
	arr := v.Array()
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, e.String())
	}
	return out
}

// commentBlock returns the lines from "comment:" up to the Products header.
func commentBlock(log string) string {
	lines := strings.Split(log, "\n")
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(l, "comment:") {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}
	end := len(lines)
	for i := start; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "Products:") {
			end = i
			break
		}
	}
	return strings.Join(lines[start:end], "\n")
}

func splitComma(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// splitProducts splits "SLE-SERVER 15-SP5 (x86_64, s390x), SLE-DESKTOP 15
// (x86_64)" into products, dropping the SLE- prefix.
func splitProducts(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "),") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.Contains(p, "(") && !strings.HasSuffix(p, ")") {
			p += ")"
		}
		out = append(out, strings.TrimPrefix(p, "SLE-"))
	}
	return out
}
