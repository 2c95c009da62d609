package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nsqio/go-nsq"
	"github.com/spf13/cobra"

	"github.com/PatrickEleganceGroup/issuerelay/internal/config"
	"github.com/PatrickEleganceGroup/issuerelay/internal/dispatch"
)

// dispatchCmd represents the dispatch command
var dispatchCmd = &cobra.Command{
	Use:   "dispatch [key=value ...]",
	Short: "Publish a dispatch event that starts a pipeline run",
	Long: `Publish a dispatch event to the dispatch topic. Each key=value
argument becomes an input of the run's trigger. Publishing the same
inputs twice starts two independent runs.

Example:
  relayctl dispatch jira_issue_key=OPS-123 target_email=user@example.com`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs := make(map[string]string, len(args))
		for _, arg := range args {
			k, v, ok := strings.Cut(arg, "=")
			if !ok || k == "" {
				return fmt.Errorf("input %q is not key=value", arg)
			}
			inputs[k] = v
		}

		nsqCfg := config.FromEnv().NSQ
		if addr, _ := cmd.Flags().GetString("nsqd"); addr != "" {
			nsqCfg.NsqdTCPAddr = addr
		}
		if topic, _ := cmd.Flags().GetString("topic"); topic != "" {
			nsqCfg.DispatchTopic = topic
		}

		producer, err := nsq.NewProducer(nsqCfg.NsqdTCPAddr, nsq.NewConfig())
		if err != nil {
			return fmt.Errorf("nsq producer: %w", err)
		}
		defer producer.Stop()

		ev := dispatch.NewEvent(inputs, nil)
		body, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if err := producer.Publish(nsqCfg.DispatchTopic, body); err != nil {
			return fmt.Errorf("failed to publish dispatch event: %w", err)
		}

		fmt.Printf("Dispatched run: %s\n", ev.RunID)
		fmt.Printf("  Topic: %s\n", nsqCfg.DispatchTopic)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dispatchCmd)

	dispatchCmd.Flags().String("nsqd", "", "nsqd TCP address (overrides NSQD_TCP_ADDR)")
	dispatchCmd.Flags().String("topic", "", "dispatch topic (overrides NSQ_DISPATCH_TOPIC)")
}
