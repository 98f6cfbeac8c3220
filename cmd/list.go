package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/qam/internal/directory"
	"github.com/joescharf/qam/internal/models"
	"github.com/joescharf/qam/internal/output"
	"github.com/joescharf/qam/internal/report"
	"github.com/joescharf/qam/internal/review"
)

var (
	listGroups  []string
	listUser    string
	listFields  []string
	listTabular bool
	listAll     bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"open"},
	Short:   "List requests with open reviews",
	Long: `List requests that still need a QAM review.

With -G only requests open for those groups are shown. Otherwise the
requests open for any qam group of the user, and the requests the user
already reviews, are shown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listRun(cmd.Context())
	},
}

var myCmd = &cobra.Command{
	Use:   "my",
	Short: "List requests you are reviewing",
	RunE: func(cmd *cobra.Command, args []string) error {
		return myRun(cmd.Context())
	},
}

var assignedCmd = &cobra.Command{
	Use:   "assigned",
	Short: "List requests somebody is reviewing",
	Long:  "List requests with an assigned review, optionally for the given groups (-G) or user (-U).",
	RunE: func(cmd *cobra.Command, args []string) error {
		return assignedRun(cmd.Context())
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <request-id>",
	Short: "Show the inferred review state of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return infoRun(cmd.Context(), args[0])
	},
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&listFields, "fields", "F", nil,
		"Fields to show (available: "+fieldNames()+")")
	cmd.Flags().BoolVarP(&listTabular, "tabular", "T", false, "Render as a table")
	cmd.Flags().BoolVarP(&listAll, "all-fields", "V", false, "Show every field")
}

func init() {
	listCmd.Flags().StringSliceVarP(&listGroups, "group", "G", nil, "Only requests open for these groups")
	listCmd.Flags().StringVarP(&listUser, "user", "U", "", "List for this user instead of yourself")
	addListFlags(listCmd)

	addListFlags(myCmd)

	assignedCmd.Flags().StringSliceVarP(&listGroups, "group", "G", nil, "Only requests reviewed for these groups")
	assignedCmd.Flags().StringVarP(&listUser, "user", "U", "", "Only requests reviewed by this user")
	addListFlags(assignedCmd)

	infoCmd.Flags().StringSliceVarP(&listFields, "fields", "F", nil, "Fields to show")
	infoCmd.Flags().BoolVarP(&listAll, "all-fields", "V", false, "Show every field")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(myCmd)
	rootCmd.AddCommand(assignedCmd)
	rootCmd.AddCommand(infoCmd)
}

func fieldNames() string {
	names := make([]string, len(report.AllFields))
	for i, f := range report.AllFields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// resolveFields applies -V and -F over the command's defaults.
func resolveFields(defaults []report.Field) ([]report.Field, error) {
	switch {
	case listAll:
		return report.AllFields, nil
	case len(listFields) > 0:
		return report.ParseFields(listFields)
	}
	return defaults, nil
}

func listRun(ctx context.Context) error {
	fields, err := resolveFields(report.DefaultFields)
	if err != nil {
		return err
	}
	c, err := getClient()
	if err != nil {
		return err
	}
	dir, err := c.Directory(ctx)
	if err != nil {
		return err
	}

	var reqs []*review.Request
	if len(listGroups) > 0 {
		metas, err := c.OpenForGroups(ctx, listGroups)
		if err != nil {
			return err
		}
		reqs = report.Filter(wrap(metas, dir), report.Active())
	} else {
		user := listUser
		if user == "" {
			if user, err = currentUser(ctx); err != nil {
				return err
			}
		}
		groups := dir.GroupsOf(user)
		if len(groups) == 0 {
			return fmt.Errorf("user %s is not a member of any qam group", user)
		}
		open, err := c.OpenForGroups(ctx, groups)
		if err != nil {
			return err
		}
		own, err := c.ForUser(ctx, user)
		if err != nil {
			return err
		}
		reqs = report.Filter(wrap(append(open, own...), dir), func(r *review.Request) bool {
			return r.Meta().State.Active() && (len(r.GroupsOpenFor(user)) > 0 || r.AssignedTo(user))
		})
	}
	return renderRequests(ctx, report.Dedup(reqs), fields)
}

func myRun(ctx context.Context) error {
	fields, err := resolveFields(report.AssignedFields)
	if err != nil {
		return err
	}
	user, err := currentUser(ctx)
	if err != nil {
		return err
	}
	c, err := getClient()
	if err != nil {
		return err
	}
	dir, err := c.Directory(ctx)
	if err != nil {
		return err
	}
	metas, err := c.ForUser(ctx, user)
	if err != nil {
		return err
	}
	if groups := dir.GroupsOf(user); len(groups) > 0 {
		more, err := c.ReviewForGroups(ctx, groups)
		if err != nil {
			return err
		}
		metas = append(metas, more...)
	}
	reqs := report.Filter(wrap(metas, dir), report.AssignedTo(user))
	return renderRequests(ctx, report.Dedup(reqs), fields)
}

func assignedRun(ctx context.Context) error {
	fields, err := resolveFields(report.AssignedFields)
	if err != nil {
		return err
	}
	c, err := getClient()
	if err != nil {
		return err
	}
	dir, err := c.Directory(ctx)
	if err != nil {
		return err
	}

	groups := listGroups
	if len(groups) == 0 {
		groups = dir.Names()
	}
	metas, err := c.ReviewForGroups(ctx, groups)
	if err != nil {
		return err
	}
	reqs := report.Filter(wrap(metas, dir), report.HasAssignments())
	if len(listGroups) > 0 {
		reqs = report.Filter(reqs, func(r *review.Request) bool {
			for _, g := range listGroups {
				if report.InProgressFor(g)(r) {
					return true
				}
			}
			return false
		})
	}
	if listUser != "" {
		reqs = report.Filter(reqs, report.AssignedTo(listUser))
	}
	return renderRequests(ctx, report.Dedup(reqs), fields)
}

func infoRun(ctx context.Context, id string) error {
	fields, err := resolveFields(report.InfoFields)
	if err != nil {
		return err
	}
	svc, err := getService()
	if err != nil {
		return err
	}
	req, err := svc.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := renderRequests(ctx, []*review.Request{req}, fields); err != nil {
		return err
	}

	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Group", "Status", "Reviewer", "Events"})
	for _, g := range req.Groups() {
		st := req.States()[g]
		_ = table.Append([]string{
			g,
			statusColor(st.Status),
			st.Reviewer.UnwrapOr("-"),
			fmt.Sprintf("%d", len(req.History(g))),
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	for g, events := range req.Orphaned() {
		ui.VerboseLog("%d event(s) for unknown group %s", len(events), g)
	}
	return nil
}

func statusColor(s models.GroupStatus) string {
	return output.StatusColor(string(s))
}

func wrap(metas []*models.Request, dir *directory.Directory) []*review.Request {
	reqs := make([]*review.Request, len(metas))
	for i, m := range metas {
		reqs[i] = review.New(m, dir)
	}
	return reqs
}

// renderRequests loads the listing data and prints it.
func renderRequests(ctx context.Context, reqs []*review.Request, fields []report.Field) error {
	for _, r := range reqs {
		reportAnomalies(r)
	}
	if len(reqs) == 0 {
		ui.Info("No requests found")
		return nil
	}

	c, err := getClient()
	if err != nil {
		return err
	}
	loader := report.NewLoader(c, getReports(), viper.GetInt("workers"))
	reports, warnings := loader.Load(ctx, reqs, fields)
	for _, w := range warnings {
		ui.Warning("%s", w)
	}
	if len(reports) == 0 {
		ui.Info("No requests with a test report found")
		return nil
	}

	if listTabular {
		return report.RenderTable(ui, reports, fields)
	}
	return report.RenderVerbose(ui.Out, reports, fields)
}
