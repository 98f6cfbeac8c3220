package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/obs"
	"github.com/joescharf/qam/internal/store"
)

var (
	journalUser   string
	journalAction string
	journalLimit  int
	journalSince  string
	pruneOlder    string
)

var journalCmd = &cobra.Command{
	Use:   "journal [request-id]",
	Short: "Show the local journal of review actions",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		return journalRun(cmd.Context(), id)
	},
}

var journalShowCmd = &cobra.Command{
	Use:   "show <entry-id>",
	Short: "Show one journal entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return journalShowRun(cmd.Context(), args[0])
	},
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return journalPruneRun(cmd.Context())
	},
}

func init() {
	journalCmd.Flags().StringVarP(&journalUser, "user", "U", "", "Only entries of this user")
	journalCmd.Flags().StringVarP(&journalAction, "action", "a", "", "Only entries of this action")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "l", 20, "Maximum number of entries")
	journalCmd.Flags().StringVar(&journalSince, "since", "", "Only entries newer than this age (e.g. 7d, 12h)")
	journalPruneCmd.Flags().StringVar(&pruneOlder, "older-than", "90d", "Delete entries older than this age")

	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalPruneCmd)
	rootCmd.AddCommand(journalCmd)
}

// parseAge accepts Go durations plus a "d" suffix for days.
func parseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid age %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid age %q", s)
	}
	return d, nil
}

func journalRun(ctx context.Context, id string) error {
	s, err := getJournal()
	if err != nil {
		return err
	}

	filter := store.JournalFilter{
		User:   journalUser,
		Action: models.JournalAction(journalAction),
		Limit:  journalLimit,
	}
	if id != "" {
		if filter.RequestID, err = obs.ParseRequestID(id); err != nil {
			return err
		}
	}
	if journalSince != "" {
		age, err := parseAge(journalSince)
		if err != nil {
			return err
		}
		filter.Since = time.Now().Add(-age)
	}

	entries, err := s.ListActions(ctx, filter)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.Info("No journal entries")
		return nil
	}

	table := ui.Table([]string{"ID", "When", "Request", "Action", "User", "Groups"})
	for _, e := range entries {
		action := string(e.Action)
		if e.DryRun {
			action += " (dry-run)"
		}
		if err := table.Append([]string{
			e.ID[:10], humanize.Time(e.CreatedAt), e.RequestID, action, e.User, strings.Join(e.Groups, ", "),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func journalShowRun(ctx context.Context, id string) error {
	s, err := getJournal()
	if err != nil {
		return err
	}
	e, err := s.GetAction(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(ui.Out, "id: %s\n", e.ID)
	fmt.Fprintf(ui.Out, "when: %s (%s)\n", e.CreatedAt.Local().Format(time.RFC3339), humanize.Time(e.CreatedAt))
	fmt.Fprintf(ui.Out, "request: %s\n", e.RequestID)
	fmt.Fprintf(ui.Out, "action: %s\n", e.Action)
	fmt.Fprintf(ui.Out, "user: %s\n", e.User)
	fmt.Fprintf(ui.Out, "dry-run: %t\n", e.DryRun)
	if len(e.Groups) > 0 {
		fmt.Fprintf(ui.Out, "groups: %s\n", strings.Join(e.Groups, ", "))
	}
	if len(e.Reasons) > 0 {
		fmt.Fprintf(ui.Out, "reasons: %s\n", strings.Join(e.Reasons, ", "))
	}
	if e.Message != "" {
		fmt.Fprintf(ui.Out, "message: %s\n", e.Message)
	}
	return nil
}

func journalPruneRun(ctx context.Context) error {
	age, err := parseAge(pruneOlder)
	if err != nil {
		return err
	}
	s, err := getJournal()
	if err != nil {
		return err
	}
	before := time.Now().Add(-age)
	if dryRun {
		ui.DryRunMsg("Would delete journal entries before %s", before.Format(time.DateOnly))
		return nil
	}
	n, err := s.PruneActions(ctx, before)
	if err != nil {
		return err
	}
	ui.Success("Deleted %d journal entries", n)
	return nil
}
