package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PatrickEleganceGroup/issuerelay/internal/config"
	"github.com/PatrickEleganceGroup/issuerelay/internal/tracker"
)

var (
	cfgFile       string
	trackerURL    string
	trackerEmail  string
	trackerToken  string
	basicToken    string
	commentFormat string
	timeout       time.Duration
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "Issue Relay CLI - Interact with the issue tracker relay",
	Long: `Issue Relay CLI (relayctl) is a command line tool for the issue relay
automation service.

You can use it to post task results as issue comments, publish dispatch
events that start pipeline runs, and restore directory access for a user.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.relayctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&trackerURL, "tracker-url", "", "issue tracker base URL (overrides TRACKER_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&trackerEmail, "email", "", "tracker account email (overrides TRACKER_EMAIL)")
	rootCmd.PersistentFlags().StringVar(&trackerToken, "token", "", "tracker API token (overrides TRACKER_API_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&basicToken, "basic-token", "", "pre-encoded basic credential (overrides TRACKER_BASIC_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&commentFormat, "format", "", `comment body format: "rich" or "simple"`)
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	// Bind flags to viper
	viper.BindPFlag("tracker-url", rootCmd.PersistentFlags().Lookup("tracker-url"))
	viper.BindPFlag("email", rootCmd.PersistentFlags().Lookup("email"))
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	viper.BindPFlag("basic-token", rootCmd.PersistentFlags().Lookup("basic-token"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".relayctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Override global variables with config values if flags weren't explicitly set
	if !rootCmd.PersistentFlags().Changed("tracker-url") {
		if s := viper.GetString("tracker-url"); s != "" {
			trackerURL = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("email") {
		if s := viper.GetString("email"); s != "" {
			trackerEmail = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("token") {
		if s := viper.GetString("token"); s != "" {
			trackerToken = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("basic-token") {
		if s := viper.GetString("basic-token"); s != "" {
			basicToken = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("format") {
		if s := viper.GetString("format"); s != "" {
			commentFormat = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
}

// trackerConfig layers CLI flags over the environment configuration.
func trackerConfig() config.Tracker {
	t := config.FromEnv().Tracker
	if trackerURL != "" {
		t.BaseURL = trackerURL
	}
	if trackerEmail != "" {
		t.Email = trackerEmail
	}
	if trackerToken != "" {
		t.APIToken = trackerToken
	}
	if commentFormat != "" {
		t.CommentFormat = commentFormat
	}
	t.HTTPTimeout = timeout
	return t
}

// newTrackerClient builds the tracker client for a subcommand. An explicit
// --basic-token wins over the credential forms the environment supplies.
func newTrackerClient() (*tracker.Client, error) {
	cfg := trackerConfig()
	if basicToken != "" {
		return tracker.NewWithCredentials(cfg, tracker.PreEncoded(basicToken))
	}
	return tracker.New(cfg)
}
