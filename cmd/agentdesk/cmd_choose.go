package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// chooseCmd asks the service to run a selection of agents in one call
var chooseCmd = &cobra.Command{
	Use:   "choose <agent>...",
	Short: "Run a server-side selection of agents",
	Long: `Ask the agent service to run the selected agents itself and return their
combined output. Unlike run, the selection is resolved by the service.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChoose,
}

func init() {
	chooseCmd.Flags().BoolVar(&rawOutput, "raw", false, "Print plain Markdown")
}

func runChoose(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	res, err := client.ChooseAgents(ctxOrBackground(cmd), args)
	if err != nil {
		return fmt.Errorf("failed to run agents: %w", err)
	}
	if !res.OK() {
		if res.Message != "" {
			return errors.New(res.Message)
		}
		return fmt.Errorf("agent selection rejected (status %q)", res.Status)
	}

	return printTranscript(cmd.OutOrStdout(), res.Messages())
}
