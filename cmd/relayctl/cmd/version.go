package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the relayctl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := version
		if env := os.Getenv("SERVICE_VERSION"); v == "dev" && env != "" {
			v = env
		}
		fmt.Printf("relayctl %s\n", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
