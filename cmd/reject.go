package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/qam/internal/inference"
	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/review"
)

var (
	rejectReasons []string
	rejectMessage string
	rejectUser    string
	rejectForce   bool
	rejectSuggest bool
)

var rejectCmd = &cobra.Command{
	Use:   "reject <request-id>",
	Short: "Decline a request you are reviewing",
	Long: `Decline your review of a request. The test report must say FAILED and
carry a comment unless --force is given.

Reasons are given with -R (flags or names, see below) or picked from a
numbered list. --suggest asks the configured model for reasons and a
message based on the report comment.

Reasons: ` + models.RejectReasonFlags(),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rejectRun(cmd.Context(), args[0])
	},
}

func init() {
	rejectCmd.Flags().StringSliceVarP(&rejectReasons, "reason", "R", nil, "Reject reasons")
	rejectCmd.Flags().StringVarP(&rejectMessage, "message", "M", "", "Message appended to the decline comment")
	rejectCmd.Flags().StringVarP(&rejectUser, "user", "U", "", "Reject as this user instead of yourself")
	rejectCmd.Flags().BoolVarP(&rejectForce, "force", "f", false, "Do not check the test report")
	rejectCmd.Flags().BoolVar(&rejectSuggest, "suggest", false, "Suggest reasons from the report comment")
	rootCmd.AddCommand(rejectCmd)
}

func rejectRun(ctx context.Context, id string) error {
	reasons, err := inference.ParseReasons(rejectReasons)
	if err != nil {
		return explain(err)
	}

	user, err := actingUser(ctx, rejectUser)
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}
	message := rejectMessage

	if len(reasons) == 0 && rejectSuggest {
		reasons, message, err = suggestReasons(ctx, svc, id, message)
		if err != nil {
			return err
		}
	}
	if len(reasons) == 0 && ui.Interactive {
		reasons, err = promptReasons()
		if err != nil {
			return err
		}
	}

	out, err := svc.Reject(ctx, id, user, review.RejectOptions{
		Reasons: reasons,
		Message: message,
		Force:   rejectForce,
	})
	printOutcome(out)
	return explain(err)
}

func suggestReasons(ctx context.Context, svc *review.Service, id, message string) ([]models.RejectReason, string, error) {
	client := newLLMClient()
	if client == nil {
		return nil, message, fmt.Errorf("--suggest needs anthropic.api_key or ANTHROPIC_API_KEY")
	}
	req, err := svc.Load(ctx, id)
	if err != nil {
		return nil, message, err
	}
	tr, err := getReports().Fetch(ctx, req.Meta())
	if err != nil {
		return nil, message, err
	}

	ui.Info("Asking %s for reject reasons...", client.Model())
	s, err := client.SuggestRejectReasons(ctx, tr)
	if err != nil {
		return nil, message, err
	}
	for _, r := range s.Reasons {
		ui.Info("  %s", r)
	}
	if s.Message != "" {
		ui.Info("  message: %s", s.Message)
	}
	if ui.Interactive {
		ok, err := ui.Confirm("Use these reasons?")
		if err != nil {
			return nil, message, err
		}
		if !ok {
			return nil, message, nil
		}
	}
	if message == "" {
		message = s.Message
	}
	return s.Reasons, message, nil
}

func promptReasons() ([]models.RejectReason, error) {
	for _, r := range models.RejectReasons {
		fmt.Fprintf(ui.Out, "%d: %s\n", r.ID, r)
	}
	answer, err := ui.Ask("Please select reasons (comma separated):")
	if err != nil {
		return nil, err
	}

	var reasons []models.RejectReason
	for _, field := range strings.Split(answer, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", field)
		}
		r, err := models.RejectReasonByID(n)
		if err != nil {
			return nil, err
		}
		reasons = append(reasons, r)
	}
	return reasons, nil
}
