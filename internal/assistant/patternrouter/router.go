// Package patternrouter is the deterministic fast path in front of the
// classifier. Rules are evaluated by ascending priority, ties in
// declaration order, and the first rule with a matching pattern handles
// the message.
package patternrouter

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
	"family-assistant/internal/models"
)

// FallbackRoute is reported when no rule matches.
const FallbackRoute = "general_chat"

// Handler answers a message matched by a rule.
type Handler func(ctx context.Context, message string, fc *models.FamilyContext) (*models.ActionResult, error)

// Rule fires when any of its patterns matches.
type Rule struct {
	Name     string
	Priority int
	Patterns []*regexp.Regexp
	Handler  Handler
}

// Matches reports whether any pattern matches message.
func (r Rule) Matches(message string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

// Result is the routing outcome. Handled is false both when nothing matched
// (Route is FallbackRoute) and when the matching rule's handler failed (Err
// is set).
type Result struct {
	Handled bool
	Route   string
	Result  *models.ActionResult
	Err     error
}

type Router struct {
	rules  []Rule
	logger logger.Logger
}

// New validates rules and fixes their evaluation order.
func New(rules []Rule, log logger.Logger) (*Router, error) {
	seen := make(map[string]bool, len(rules))
	ordered := make([]Rule, 0, len(rules))
	for _, r := range rules {
		switch {
		case r.Name == "":
			return nil, fmt.Errorf("route rule without a name")
		case seen[r.Name]:
			return nil, fmt.Errorf("duplicate route rule %q", r.Name)
		case len(r.Patterns) == 0:
			return nil, fmt.Errorf("route rule %q has no patterns", r.Name)
		case r.Handler == nil:
			return nil, fmt.Errorf("route rule %q has no handler", r.Name)
		}
		seen[r.Name] = true
		ordered = append(ordered, r)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	return &Router{
		rules:  ordered,
		logger: log.With(map[string]interface{}{"component": "patternrouter"}),
	}, nil
}

// Rules returns the rules in evaluation order.
func (r *Router) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// Match returns the first rule matching message without running it.
func (r *Router) Match(message string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.Matches(message) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Route runs the first matching rule. Handler errors and panics are
// reported in the result and never retried.
func (r *Router) Route(ctx context.Context, message string, fc *models.FamilyContext) Result {
	rule, ok := r.Match(message)
	if !ok {
		return Result{Handled: false, Route: FallbackRoute}
	}

	metrics.PatternRouteHits.WithLabelValues(rule.Name).Inc()
	res, err := r.run(ctx, rule, message, fc)
	if err != nil {
		r.logger.Warn("Route handler failed", map[string]interface{}{
			"route": rule.Name,
			"error": err.Error(),
		})
		return Result{Handled: false, Route: rule.Name, Err: err}
	}

	r.logger.Debug("Message handled by fast path", map[string]interface{}{"route": rule.Name})
	return Result{Handled: true, Route: rule.Name, Result: res}
}

func (r *Router) run(ctx context.Context, rule Rule, message string, fc *models.FamilyContext) (res *models.ActionResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("route %s panicked: %v", rule.Name, p)
		}
	}()
	res, err = rule.Handler(ctx, message, fc)
	if err == nil && res == nil {
		err = fmt.Errorf("route %s returned no result", rule.Name)
	}
	return res, err
}
