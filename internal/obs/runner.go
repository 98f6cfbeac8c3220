package obs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/joescharf/qam/internal/inference"
)

var (
	// ErrUnavailable marks a failed call to the build service.
	ErrUnavailable = fmt.Errorf("build service: %w", inference.ErrUpstreamUnavailable)
	// ErrNotFound marks a resource the build service does not know.
	ErrNotFound = errors.New("not found")
)

// Runner performs one raw API call and returns the response body.
type Runner interface {
	Run(ctx context.Context, method, path string, body []byte) ([]byte, error)
}

// OscRunner talks to the build service through the osc command line client,
// which already holds the user's credentials.
type OscRunner struct {
	command []string
	apiURL  string
	timeout time.Duration
}

// NewOscRunner builds a runner from the configured command line, for
// example "osc" or "osc --config ~/.oscrc-ibs".
func NewOscRunner(commandLine, apiURL string) (*OscRunner, error) {
	argv, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, fmt.Errorf("parse osc command %q: %w", commandLine, err)
	}
	if len(argv) == 0 {
		argv = []string{"osc"}
	}
	return &OscRunner{command: argv, apiURL: apiURL}, nil
}

// WithTimeout bounds every call. Zero means no limit.
func (r *OscRunner) WithTimeout(d time.Duration) *OscRunner {
	r.timeout = d
	return r
}

// Args returns the argv used for a call.
func (r *OscRunner) Args(method, path string, body []byte) []string {
	args := append([]string{}, r.command[1:]...)
	if r.apiURL != "" {
		args = append(args, "-A", r.apiURL)
	}
	args = append(args, "api")
	if method != "" && method != "GET" {
		args = append(args, "-X", method)
	}
	if body != nil {
		args = append(args, "-d", string(body))
	}
	return append(args, path)
}

func (r *OscRunner) Run(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	args := r.Args(method, path, body)
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		if strings.Contains(msg, "404") {
			return nil, fmt.Errorf("%s %s: %s: %w", method, path, msg, ErrNotFound)
		}
		return nil, fmt.Errorf("%s %s: %s: %w", method, path, msg, ErrUnavailable)
	}
	return out, nil
}

// Whoami resolves the login of the configured osc account.
func (r *OscRunner) Whoami(ctx context.Context) (string, error) {
	args := append([]string{}, r.command[1:]...)
	if r.apiURL != "" {
		args = append(args, "-A", r.apiURL)
	}
	args = append(args, "whois")
	out, err := exec.CommandContext(ctx, r.command[0], args...).Output()
	if err != nil {
		return "", fmt.Errorf("osc whois: %w", errors.Join(err, ErrUnavailable))
	}
	return parseWhois(string(out))
}

// parseWhois extracts the login from `alice: "Alice A" <alice@example.com>`.
func parseWhois(out string) (string, error) {
	out = strings.TrimSpace(out)
	login, _, ok := strings.Cut(out, ":")
	if !ok || strings.TrimSpace(login) == "" {
		return "", fmt.Errorf("unexpected osc whois output %q", out)
	}
	return strings.TrimSpace(login), nil
}
