package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/qam/internal/review"
)

var (
	approveGroup        string
	approveUser         string
	approveSkipTemplate bool
)

var approveCmd = &cobra.Command{
	Use:   "approve <request-id>",
	Short: "Approve a request you are reviewing",
	Long: `Approve your review of a request. The test report must say PASSED
unless --skip-template is given.

With -G the review of that group is accepted directly, without an
assignment. This asks for confirmation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return approveRun(cmd.Context(), args[0])
	},
}

func init() {
	approveCmd.Flags().StringVarP(&approveGroup, "group", "G", "", "Accept this group's review directly")
	approveCmd.Flags().StringVarP(&approveUser, "user", "U", "", "Approve as this user instead of yourself")
	approveCmd.Flags().BoolVar(&approveSkipTemplate, "skip-template", false, "Do not check the test report")
	rootCmd.AddCommand(approveCmd)
}

func approveRun(ctx context.Context, id string) error {
	user, err := actingUser(ctx, approveUser)
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}

	if approveGroup != "" {
		ok, err := ui.Confirm(fmt.Sprintf("Approve %s for group %s?", id, approveGroup))
		if err != nil {
			return err
		}
		if !ok {
			ui.Info("Aborted")
			return nil
		}
		out, err := svc.ApproveGroup(ctx, id, user, approveGroup)
		printOutcome(out)
		return explain(err)
	}

	out, err := svc.Approve(ctx, id, user, review.ApproveOptions{SkipTemplate: approveSkipTemplate})
	printOutcome(out)
	if err != nil {
		return explain(err)
	}
	if len(out.MoreGroups) > 0 {
		ui.Info("The following groups could also be reviewed by you: %s", strings.Join(out.MoreGroups, ", "))
	}
	return nil
}
