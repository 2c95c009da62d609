package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PatrickEleganceGroup/issuerelay/internal/script"
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report [issue-key] [text]",
	Short: "Post a result text as a comment on an issue",
	Long: `Post a result text as a comment on the given issue.

Pass "-" as the text to read it from stdin, or --file to read a result
file with the same contract the pipeline enforces (missing or empty
files are rejected).

Example:
  relayctl report OPS-123 "Restored access for user@example.com"
  cat result.txt | relayctl report OPS-123 -
  relayctl report OPS-123 --file result.txt`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		issueKey := args[0]
		resultFile, _ := cmd.Flags().GetString("file")

		var text string
		switch {
		case resultFile != "":
			t, err := script.ReadResult(resultFile)
			if err != nil {
				return err
			}
			text = t
		case len(args) < 2:
			return fmt.Errorf("result text or --file is required")
		case args[1] == "-":
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = strings.TrimRight(string(data), "\n")
		default:
			text = args[1]
		}
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("result text is empty")
		}

		client, err := newTrackerClient()
		if err != nil {
			return fmt.Errorf("tracker client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		status, err := client.AddComment(ctx, issueKey, text)
		if err != nil {
			return fmt.Errorf("failed to post comment: %w", err)
		}

		fmt.Printf("Posted comment on %s (HTTP %d)\n", issueKey, status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("file", "", "read the result text from a result file")
}
