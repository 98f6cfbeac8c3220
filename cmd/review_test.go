package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/obs"
	"github.com/joescharf/qam/internal/output"
	"github.com/joescharf/qam/internal/review"
)

func testUI(t *testing.T, input string) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	ui = &output.UI{Out: out, ErrOut: errOut, In: strings.NewReader(input), Interactive: true}
	return out, errOut
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "90d", want: 90 * 24 * time.Hour},
		{in: "0d", want: 0},
		{in: "12h", want: 12 * time.Hour},
		{in: "1h30m", want: 90 * time.Minute},
		{in: "xd", wantErr: true},
		{in: "-3d", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAge(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPromptReasons(t *testing.T) {
	out, _ := testUI(t, "2, 4\n")

	reasons, err := promptReasons()
	require.NoError(t, err)
	require.Len(t, reasons, 2)
	assert.Equal(t, "build_problem", reasons[0].Flag)
	assert.Equal(t, "regression", reasons[1].Flag)
	assert.Contains(t, out.String(), "0: Administrative")
}

func TestPromptReasons_Invalid(t *testing.T) {
	testUI(t, "two\n")
	_, err := promptReasons()
	assert.Error(t, err)

	testUI(t, "9\n")
	_, err = promptReasons()
	assert.Error(t, err)
}

func TestPromptReasons_NotInteractive(t *testing.T) {
	testUI(t, "")
	ui.Interactive = false
	_, err := promptReasons()
	assert.ErrorIs(t, err, output.ErrNotInteractive)
}

func TestPrintOutcome(t *testing.T) {
	out, errOut := testUI(t, "")
	printOutcome(&review.Outcome{
		Action:   models.JournalAssign,
		Messages: []string{"Assigning alice to qam-sle for 1."},
		Warnings: []string{"journal: disk full"},
	})
	all := out.String() + errOut.String()
	assert.Contains(t, all, "Assigning alice to qam-sle for 1.")
	assert.Contains(t, all, "journal: disk full")

	printOutcome(nil)
}

func TestPrintOutcome_DryRun(t *testing.T) {
	out, errOut := testUI(t, "")
	ui.DryRun = true
	printOutcome(&review.Outcome{DryRun: true, Messages: []string{"Approving 1 for alice."}})
	assert.Contains(t, out.String()+errOut.String(), "Approving 1 for alice.")
}

func TestExplain(t *testing.T) {
	out, errOut := testUI(t, "")
	err := inference.Ambiguous([]string{"qam-atk", "qam-sle"}).Err()
	assert.Equal(t, err, explain(err))
	assert.Contains(t, out.String()+errOut.String(), "qam-atk, qam-sle")

	plain := errors.New("boom")
	assert.Equal(t, plain, explain(plain))
}

func TestExplain_Upstream(t *testing.T) {
	testUI(t, "")
	err := explain(fmt.Errorf("load 1: %w", obs.ErrUnavailable))
	assert.ErrorIs(t, err, obs.ErrUnavailable)
	assert.Contains(t, err.Error(), "UPSTREAM_UNAVAILABLE")
}

func TestReportAnomalies(t *testing.T) {
	out, errOut := testUI(t, "")
	ui.Verbose = true
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	dir := directory.New(directory.Entry{Group: "qam-sle", Members: []string{"alice", "bob"}})
	req := review.New(&models.Request{
		ID:     "300001",
		Groups: []string{"qam-sle"},
		Events: []models.ReviewEvent{
			{Group: "qam-sle", Actor: "alice", Kind: models.EventAssigned, Timestamp: at, Sequence: 1},
			{Group: "qam-sle", Actor: "bob", Kind: models.EventAssigned, Timestamp: at.Add(time.Minute), Sequence: 2},
		},
	}, dir)

	reportAnomalies(req)
	all := out.String() + errOut.String()
	assert.Contains(t, all, "INCONSISTENT_HISTORY")
	assert.Contains(t, all, "assuming bob")
}

func TestRejectRun_UnknownReason(t *testing.T) {
	testUI(t, "")
	rejectReasons = []string{"bogus"}
	t.Cleanup(func() { rejectReasons = nil })

	err := rejectRun(context.Background(), "300001")
	kind, ok := inference.KindOf(err)
	require.True(t, ok, "%v", err)
	assert.Equal(t, inference.KindMissingReason, kind)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "first", firstLine("\n first\nsecond"))
	assert.Equal(t, "", firstLine(""))
}
