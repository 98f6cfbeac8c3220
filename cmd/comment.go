package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joescharf/qam/internal/obs"
)

var commentCmd = &cobra.Command{
	Use:   "comment <request-id> <text>...",
	Short: "Comment on a request",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return commentRun(cmd.Context(), args[0], strings.Join(args[1:], " "))
	},
}

var deleteCommentCmd = &cobra.Command{
	Use:     "deletecomment <request-id> [comment-id]",
	Aliases: []string{"rmcomment"},
	Short:   "Delete a comment of a request",
	Long:    "Delete a comment by id. Without an id the comments are listed and one is picked.",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		commentID := ""
		if len(args) == 2 {
			commentID = args[1]
		}
		return deleteCommentRun(cmd.Context(), args[0], commentID)
	},
}

func init() {
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(deleteCommentCmd)
}

func commentRun(ctx context.Context, id, text string) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}
	out, err := svc.Comment(ctx, id, user, text)
	printOutcome(out)
	return err
}

func deleteCommentRun(ctx context.Context, id, commentID string) error {
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	if commentID == "" {
		commentID, err = pickComment(ctx, id)
		if err != nil || commentID == "" {
			return err
		}
	}
	svc, err := getService()
	if err != nil {
		return err
	}
	out, err := svc.DeleteComment(ctx, id, user, commentID)
	printOutcome(out)
	return err
}

func pickComment(ctx context.Context, id string) (string, error) {
	reqID, err := obs.ParseRequestID(id)
	if err != nil {
		return "", err
	}
	c, err := getClient()
	if err != nil {
		return "", err
	}
	comments, err := c.Comments(ctx, reqID)
	if err != nil {
		return "", err
	}
	if len(comments) == 0 {
		ui.Info("No comments on %s", reqID)
		return "", nil
	}

	for _, cm := range comments {
		fmt.Fprintf(ui.Out, "%s: %s (%s): %s\n", cm.ID, cm.Who, humanize.Time(cm.When), firstLine(cm.Text))
	}
	answer, err := ui.Ask("Comment to delete:")
	if err != nil {
		return "", err
	}
	for _, cm := range comments {
		if cm.ID == answer {
			return answer, nil
		}
	}
	return "", fmt.Errorf("no comment %q on %s", answer, reqID)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
