package cmd

import (
	"github.com/spf13/cobra"

	"github.com/joescharf/qam/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets an assistant list open reviews, inspect inferred assignments
and check which workflow action is legal, without changing anything.
Configure it with:

  {
    "mcpServers": {
      "qam": { "command": "qam", "args": ["mcp"] }
    }
  }

Available tools: qam_list_open, qam_info, qam_classify, qam_journal`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getClient()
		if err != nil {
			return err
		}
		j, err := getJournal()
		if err != nil {
			return err
		}
		user, err := currentUser(cmd.Context())
		if err != nil {
			ui.VerboseLog("No default user: %v", err)
			user = ""
		}
		return mcp.NewServer(c, getReports(), j, user).ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
