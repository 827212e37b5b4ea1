// Package agents picks a specialized reply strategy for conversational
// turns and gathers the knowledge-graph context it needs.
package agents

import (
	"regexp"
	"sort"

	"family-assistant/internal/models"
)

// Agent names a specialized reply strategy.
type Agent string

const (
	GraphQuery       Agent = "graph_query"
	GiftDiscovery    Agent = "gift_discovery"
	BalanceForensics Agent = "balance_forensics"
	HabitImprovement Agent = "habit_improvement"
)

// Selection is the chosen agent and why.
type Selection struct {
	Agent    Agent  `json:"agent"`
	Priority int    `json:"priority"`
	Reason   string `json:"reason"`
}

// Rule selects Agent when Match reports true. Lower Priority is evaluated
// first; equal priorities keep declaration order.
type Rule struct {
	Agent    Agent
	Priority int
	Reason   string
	Match    func(message string, fc *models.FamilyContext) bool
}

func pattern(expr string) func(string, *models.FamilyContext) bool {
	re := regexp.MustCompile(expr)
	return func(message string, _ *models.FamilyContext) bool { return re.MatchString(message) }
}

var fatigue = regexp.MustCompile(`(?i)\b(?:tired|exhausted|overwhelmed|burn(?:ed|t)? out|drained|stretched thin)\b`)

// DefaultRules is the built-in rule set.
var DefaultRules = []Rule{
	{
		Agent:    GraphQuery,
		Priority: 1,
		Reason:   "asks about patterns across family activity",
		Match:    pattern(`(?i)\b(?:who (?:usually|typically|normally|mostly) (?:does|handles|takes care of)|how (?:often|many times) (?:do|does|did|have)|what (?:patterns|connections|relationships)|show me (?:the )?(?:graph|connections)|knowledge graph)\b`),
	},
	{
		Agent:    GiftDiscovery,
		Priority: 2,
		Reason:   "asks for gift ideas",
		Match:    pattern(`(?i)\b(?:gifts?|presents?|birthday ideas?|stocking stuffers?|what (?:should|could|can) (?:i|we) (?:get|buy))\b`),
	},
	{
		Agent:    BalanceForensics,
		Priority: 3,
		Reason:   "raises household workload balance",
		Match:    pattern(`(?i)\b(?:fair(?:ness)?|unfair|balance|imbalance|invisible labou?r|mental load|doing (?:more|all|everything)|carry(?:ing)? (?:the|more)|split (?:the )?(?:chores|work)|who does more)\b`),
	},
	{
		Agent:    BalanceForensics,
		Priority: 3,
		Reason:   "fatigue wording while a workload imbalance is on record",
		Match: func(message string, fc *models.FamilyContext) bool {
			if fc == nil || fc.Insights == nil || fc.Insights.LaborBalance == nil {
				return false
			}
			imbalanced, _ := fc.Insights.LaborBalance["imbalanced"].(bool)
			return imbalanced && fatigue.MatchString(message)
		},
	},
	{
		Agent:    HabitImprovement,
		Priority: 4,
		Reason:   "wants to build or improve a routine",
		Match:    pattern(`(?i)\b(?:habits?|routines?|streaks?|consisten(?:t|cy)|get better at|improve|keep forgetting|build a)\b`),
	},
}

// Detect returns the first rule of rules matching message, or nil.
func Detect(rules []Rule, message string, fc *models.FamilyContext) *Selection {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	for _, r := range ordered {
		if r.Match != nil && r.Match(message, fc) {
			return &Selection{Agent: r.Agent, Priority: r.Priority, Reason: r.Reason}
		}
	}
	return nil
}

// DetectSpecializedAgent applies DefaultRules.
func DetectSpecializedAgent(message string, fc *models.FamilyContext) *Selection {
	return Detect(DefaultRules, message, fc)
}
