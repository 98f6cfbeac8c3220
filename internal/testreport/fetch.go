// Package testreport loads the test report kept for each maintenance request
// on the QA report server.
package testreport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/models"
)

var (
	// ErrNotFound means no report was generated for the request yet.
	ErrNotFound = errors.New("test report not found")
	// ErrUnavailable marks a failure to reach the report server.
	ErrUnavailable = fmt.Errorf("test report server: %w", inference.ErrUpstreamUnavailable)
	// ErrResultMismatch means the report's SUMMARY disagrees with the action.
	ErrResultMismatch = errors.New("test report result mismatch")
)

// Default report server locations.
const (
	DefaultBaseURL      = "https://qam.suse.de/testreports/"
	DefaultFancyBaseURL = "https://qam.suse.de/reports/"
)

// Fetcher downloads reports over HTTP.
type Fetcher struct {
	client       *http.Client
	baseURL      string
	fancyBaseURL string
}

// NewFetcher returns a fetcher for the given server locations.
func NewFetcher(baseURL, fancyBaseURL string) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if fancyBaseURL == "" {
		fancyBaseURL = DefaultFancyBaseURL
	}
	return &Fetcher{
		client:       cleanhttp.DefaultPooledClient(),
		baseURL:      withSlash(baseURL),
		fancyBaseURL: withSlash(fancyBaseURL),
	}
}

// WithHTTPClient replaces the HTTP client.
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// URL is the machine readable log of the request's report.
func (f *Fetcher) URL(req *models.Request) string {
	return f.baseURL + req.RRID() + "/log"
}

// MetadataURL is the metadata document of the request's report.
func (f *Fetcher) MetadataURL(req *models.Request) string {
	return f.baseURL + req.RRID() + "/metadata.json"
}

// FancyURL is the human readable report.
func (f *Fetcher) FancyURL(req *models.Request) string {
	return f.fancyBaseURL + req.RRID() + "/log"
}

// Fetch loads and parses the report of req.
func (f *Fetcher) Fetch(ctx context.Context, req *models.Request) (*Report, error) {
	if req.SrcProject == "" {
		return nil, fmt.Errorf("request %s has no source project: %w", req.ID, ErrNotFound)
	}
	log, err := f.get(ctx, f.URL(req))
	if err != nil {
		return nil, err
	}
	metadata, err := f.get(ctx, f.MetadataURL(req))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	r := Parse(log, metadata)
	r.URL = f.URL(req)
	r.FancyURL = f.FancyURL(req)
	return r, nil
}

// Exists reports whether a report was generated for req.
func (f *Fetcher) Exists(ctx context.Context, req *models.Request) (bool, error) {
	if req.SrcProject == "" {
		return false, nil
	}
	_, err := f.get(ctx, f.URL(req))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, errors.Join(err, ErrUnavailable))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", url, ErrNotFound)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("GET %s: %s: %w", url, resp.Status, ErrUnavailable)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, errors.Join(err, ErrUnavailable))
	}
	return body, nil
}

// RequirePassed fails unless the report says PASSED.
func (r *Report) RequirePassed() error {
	if r.Status() != StatusPassed {
		return fmt.Errorf("report %s is %s, expected PASSED: %w", r.FancyURL, r.Status(), ErrResultMismatch)
	}
	return nil
}

// RequireFailed fails unless the report says FAILED.
func (r *Report) RequireFailed() error {
	if r.Status() != StatusFailed {
		return fmt.Errorf("report %s is %s, expected FAILED: %w", r.FancyURL, r.Status(), ErrResultMismatch)
	}
	return nil
}
