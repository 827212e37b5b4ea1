// cmd/tools/assistant-cli/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"family-assistant/internal/common/logger"
)

var (
	verbose bool

	log logger.Logger = logger.NewNoOpLogger()
)

var rootCmd = &cobra.Command{
	Use:   "assistant-cli",
	Short: "Offline checks for the family assistant",
	Long: `Runs the deterministic parts of the family assistant without any
backing services: the neutral voice filter, the neutrality score, the
pattern router and agent selection, and the activity registry.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log = logger.NewStructured("debug", "console")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
