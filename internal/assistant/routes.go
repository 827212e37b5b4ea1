package assistant

import (
	"context"
	"fmt"
	"regexp"

	"family-assistant/internal/assistant/patternrouter"
	"family-assistant/internal/models"
)

// Fast-path route names.
const (
	RouteGreeting      = "greeting"
	RouteThanks        = "thanks"
	RouteHelp          = "help"
	RouteCalendarToday = "calendar_today"
)

const helpText = `Here's what I can do:
- add events, appointments and reminders to the family calendar
- keep track of doctors, dentists, sitters and teachers
- manage the family to-do list
- record growth measurements for the kids
- answer questions about what's coming up`

// DefaultRoutes returns the built-in fast-path rules. A nil calendar
// handler leaves out the calendar look-up rule.
func DefaultRoutes(calendar patternrouter.Handler) []patternrouter.Rule {
	rules := []patternrouter.Rule{
		{
			Name:     RouteGreeting,
			Priority: 1,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^\s*(?:hi|hello|hey|hiya|good (?:morning|afternoon|evening))(?: there)?[\s!.,]*$`),
			},
			Handler: greet,
		},
		{
			Name:     RouteThanks,
			Priority: 2,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^\s*(?:thanks|thank you|thx|cheers)(?: (?:so much|a lot|again))?[\s!.]*$`),
			},
			Handler: static("You're welcome! Let's keep things moving together."),
		},
		{
			Name:     RouteHelp,
			Priority: 3,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^\s*(?:help|what can you do|how do(?:es)? (?:this|you) work)[\s?!.]*$`),
			},
			Handler: static(helpText),
		},
	}
	if calendar != nil {
		rules = append(rules, patternrouter.Rule{
			Name:     RouteCalendarToday,
			Priority: 4,
			Patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)^\s*what(?:['’]s| is) (?:on )?(?:the |my |our )?(?:calendar|schedule|agenda)(?: for)? (?:today|this week)[\s?]*$`),
				regexp.MustCompile(`(?i)^\s*what(?:['’]s| is) (?:happening|going on|coming up)(?: today| this week)?[\s?]*$`),
			},
			Handler: calendar,
		})
	}
	return rules
}

func greet(_ context.Context, _ string, fc *models.FamilyContext) (*models.ActionResult, error) {
	if fc != nil && fc.CurrentUser != nil && fc.CurrentUser.Name != "" {
		return models.Succeeded(fmt.Sprintf("Hi %s! What can we take care of together today?", firstName(fc.CurrentUser.Name)), nil), nil
	}
	return models.Succeeded("Hi! What can we take care of together today?", nil), nil
}

func static(text string) patternrouter.Handler {
	return func(context.Context, string, *models.FamilyContext) (*models.ActionResult, error) {
		return models.Succeeded(text, nil), nil
	}
}

func firstName(name string) string {
	for i, r := range name {
		if r == ' ' {
			return name[:i]
		}
	}
	return name
}
