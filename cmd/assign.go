package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/joescharf/qam/internal/review"
)

var (
	assignGroups       []string
	assignUser         string
	assignSkipTemplate bool
	assignForce        bool
)

var assignCmd = &cobra.Command{
	Use:   "assign <request-id>",
	Short: "Start reviewing a request",
	Long: `Assign yourself (or -U user) to the open review of a request.

Without -G the group is inferred from your qam groups; when more than one
group could be reviewed, pick one with -G.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignRun(cmd.Context(), args[0])
	},
}

var unassignCmd = &cobra.Command{
	Use:   "unassign <request-id>",
	Short: "Stop reviewing a request",
	Long:  "Release every group you review on the request, or only the groups given with -G.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return unassignRun(cmd.Context(), args[0])
	},
}

func init() {
	assignCmd.Flags().StringSliceVarP(&assignGroups, "group", "G", nil, "Groups to review for")
	assignCmd.Flags().StringVarP(&assignUser, "user", "U", "", "Assign this user instead of yourself")
	assignCmd.Flags().BoolVar(&assignSkipTemplate, "skip-template", false, "Do not require a test report template")
	assignCmd.Flags().BoolVarP(&assignForce, "force", "f", false, "Skip the previous reviewer check")

	unassignCmd.Flags().StringSliceVarP(&assignGroups, "group", "G", nil, "Groups to release")
	unassignCmd.Flags().StringVarP(&assignUser, "user", "U", "", "Unassign this user instead of yourself")

	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(unassignCmd)
}

func actingUser(ctx context.Context, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return currentUser(ctx)
}

func assignRun(ctx context.Context, id string) error {
	user, err := actingUser(ctx, assignUser)
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}

	opts := review.AssignOptions{
		Groups:       assignGroups,
		SkipTemplate: assignSkipTemplate,
		Force:        assignForce,
	}
	out, err := svc.Assign(ctx, id, user, opts)

	var npr *review.NotPreviousReviewerError
	if errors.As(err, &npr) {
		ui.Warning("%v", npr)
		ok, askErr := ui.Confirm("Assign anyway?")
		if askErr != nil || !ok {
			return err
		}
		opts.Force = true
		out, err = svc.Assign(ctx, id, user, opts)
	}
	printOutcome(out)
	return explain(err)
}

func unassignRun(ctx context.Context, id string) error {
	user, err := actingUser(ctx, assignUser)
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}
	out, err := svc.Unassign(ctx, id, user, assignGroups)
	printOutcome(out)
	return explain(err)
}
