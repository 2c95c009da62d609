package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// restoreCmd represents the restore command
var restoreCmd = &cobra.Command{
	Use:   "restore [email]",
	Short: "Restore directory access for a user account",
	Long: `Look up the account for an email address and restore its directory
access, printing the same result text a pipeline run would report.

With --issue, the result text is also posted as a comment on that issue.

Example:
  relayctl restore user@example.com --issue OPS-123`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		issueKey, _ := cmd.Flags().GetString("issue")

		client, err := newTrackerClient()
		if err != nil {
			return fmt.Errorf("tracker client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		text, err := client.RestoreUser(ctx, email)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Println(text)

		if issueKey != "" {
			status, err := client.AddComment(ctx, issueKey, text)
			if err != nil {
				return fmt.Errorf("failed to post comment: %w", err)
			}
			fmt.Printf("Posted comment on %s (HTTP %d)\n", issueKey, status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().String("issue", "", "issue key to post the result text on")
}
