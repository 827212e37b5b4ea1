package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"family-assistant/internal/assistant/neutralvoice"
)

var (
	voicePerson string
	voiceTask   string
	voiceRole   string
	voiceSeed   int64
)

var neutralizeCmd = &cobra.Command{
	Use:   "neutralize [text]",
	Short: "Rewrite text in the neutral, collaborative voice",
	Long: `Applies the neutral voice filter to text and prints the rewrite.

Example:
  assistant-cli neutralize "You never help with the laundry" --task laundry`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNeutralize,
}

var scoreCmd = &cobra.Command{
	Use:   "score [text]",
	Short: "Score the neutrality of text",
	Long: `Prints the neutrality report of text as JSON: a 0-100 score, the
number of blame patterns, their severity and recommendations.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScore,
}

func init() {
	neutralizeCmd.Flags().StringVar(&voicePerson, "person", "", "person the text is about")
	neutralizeCmd.Flags().StringVar(&voiceTask, "task", "", "task the text is about")
	neutralizeCmd.Flags().StringVar(&voiceRole, "role", "", "role of the reader")
	neutralizeCmd.Flags().Int64Var(&voiceSeed, "seed", 0, "template selection seed, 0 picks at random")

	rootCmd.AddCommand(neutralizeCmd, scoreCmd)
}

func runNeutralize(cmd *cobra.Command, args []string) error {
	var opts []neutralvoice.Option
	if voiceSeed != 0 {
		opts = append(opts, neutralvoice.WithRandSource(rand.NewSource(voiceSeed)))
	}
	filter := neutralvoice.New(log, opts...)

	out := filter.Neutralize(strings.Join(args, " "), neutralvoice.Context{
		Person: voicePerson,
		Task:   voiceTask,
		Role:   voiceRole,
	})
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	report := neutralvoice.MessageNeutrality(strings.Join(args, " "))
	return printJSON(cmd, report)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
