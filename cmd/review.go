package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/review"
)

// reportAnomalies prints what the history inference had to tolerate.
func reportAnomalies(r *review.Request) {
	for _, a := range r.Anomalies() {
		if kind := a.ErrorKind(); kind != "" {
			ui.Warning("%s: %s for %s: %s was assigned while %s was reviewing, assuming %s",
				r.ID(), kind, a.Group, a.Event.Actor, a.Previous.UnwrapOr("nobody"), a.Event.Actor)
			continue
		}
		ui.VerboseLog("%s: ignored %s by %s for %s (%s)", r.ID(), a.Event.Kind, a.Event.Actor, a.Group, a.Kind)
	}
}

// printOutcome reports what a workflow step did or would do.
func printOutcome(out *review.Outcome) {
	if out == nil {
		return
	}
	if out.Request != nil {
		reportAnomalies(out.Request)
	}
	for _, m := range out.Messages {
		if out.DryRun {
			ui.DryRunMsg("%s", m)
			continue
		}
		ui.Success("%s", m)
	}
	for _, w := range out.Warnings {
		ui.Warning("%s", w)
	}
}

// explain adds a hint for decisions the user can resolve and tags
// collaborator failures.
func explain(err error) error {
	var de *inference.DecisionError
	if errors.As(err, &de) && de.Kind == inference.KindAmbiguousGroup {
		ui.Info("Candidate groups: %s", strings.Join(de.Candidates, ", "))
	}
	if kind, ok := inference.KindOf(err); ok && kind == inference.KindUpstreamUnavailable {
		return fmt.Errorf("%s: %w", kind, err)
	}
	return err
}
