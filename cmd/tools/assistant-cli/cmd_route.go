package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"family-assistant/internal/assistant"
	"family-assistant/internal/assistant/agents"
	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/assistant/patternrouter"
	"family-assistant/internal/models"
)

// RouteReport describes how the assistant would treat a message before any
// completion call is made.
type RouteReport struct {
	Message     string `json:"message"`
	Route       string `json:"route"`
	ActionType  string `json:"actionType"`
	Agent       string `json:"agent,omitempty"`
	AgentReason string `json:"agentReason,omitempty"`
}

var routeCmd = &cobra.Command{
	Use:   "route [message]",
	Short: "Show the fast-path route and agent a message would take",
	Long: `Matches a message against the built-in pattern routes, the heuristic
action-type classifier and the specialized agent rules, and prints the result
as JSON. Messages that match no route report "` + patternrouter.FallbackRoute + `".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)
}

func runRoute(cmd *cobra.Command, args []string) error {
	report, err := routeMessage(strings.Join(args, " "))
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func routeMessage(message string) (*RouteReport, error) {
	offline := func(context.Context, string, *models.FamilyContext) (*models.ActionResult, error) {
		return nil, nil
	}
	router, err := patternrouter.New(assistant.DefaultRoutes(offline), log)
	if err != nil {
		return nil, err
	}

	report := &RouteReport{
		Message:    message,
		Route:      patternrouter.FallbackRoute,
		ActionType: string(intent.HeuristicActionType(message)),
	}
	if rule, ok := router.Match(message); ok {
		report.Route = rule.Name
	}
	if sel := agents.DetectSpecializedAgent(message, nil); sel != nil {
		report.Agent = string(sel.Agent)
		report.AgentReason = sel.Reason
	}
	return report, nil
}
