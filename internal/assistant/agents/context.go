package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"family-assistant/internal/common/knowledge"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
)

// Context slice names.
const (
	SliceLabor       = "labor_breakdown"
	SliceSnapshot    = "graph_snapshot"
	SlicePredictions = "predictive_insights"
	SliceAnswer      = "graph_answer"
)

// AgentContext maps slice names to fetched data. A nil slice failed or
// timed out.
type AgentContext map[string]knowledge.Slice

// Available returns the names of slices that were fetched.
func (c AgentContext) Available() []string {
	var out []string
	for _, name := range []string{SliceAnswer, SliceSnapshot, SliceLabor, SlicePredictions} {
		if s, ok := c[name]; ok && s != nil {
			out = append(out, name)
		}
	}
	return out
}

type fetch struct {
	slice string
	run   func(ctx context.Context) (knowledge.Slice, error)
}

func fetchesFor(agent Agent, g knowledge.Graph, familyID, message string) []fetch {
	labor := fetch{SliceLabor, func(ctx context.Context) (knowledge.Slice, error) { return g.LaborBreakdown(ctx, familyID) }}
	snapshot := fetch{SliceSnapshot, func(ctx context.Context) (knowledge.Slice, error) { return g.GraphSnapshot(ctx, familyID) }}
	predictions := fetch{SlicePredictions, func(ctx context.Context) (knowledge.Slice, error) { return g.PredictiveInsights(ctx, familyID) }}

	switch agent {
	case GraphQuery:
		answer := fetch{SliceAnswer, func(ctx context.Context) (knowledge.Slice, error) { return g.Query(ctx, familyID, message) }}
		return []fetch{answer, snapshot}
	case GiftDiscovery:
		return []fetch{snapshot, predictions}
	case BalanceForensics:
		return []fetch{labor, predictions}
	case HabitImprovement:
		return []fetch{labor, predictions}
	}
	return nil
}

// FetchContext runs the selection's sub-fetches concurrently and joins them.
// A failed, timed out or panicking branch leaves its slice nil and never
// cancels its siblings.
func FetchContext(ctx context.Context, g knowledge.Graph, sel *Selection, familyID, message string, timeout time.Duration, log logger.Logger) AgentContext {
	out := AgentContext{}
	if g == nil || sel == nil {
		return out
	}

	fetches := fetchesFor(sel.Agent, g, familyID, message)
	var mu sync.Mutex
	var eg errgroup.Group

	for _, f := range fetches {
		eg.Go(func() error {
			data, err := runFetch(ctx, f, timeout)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.AgentContextFailures.WithLabelValues(f.slice).Inc()
				log.Warn("Agent context fetch failed", map[string]interface{}{
					"agent":    string(sel.Agent),
					"slice":    f.slice,
					"familyId": familyID,
					"error":    err.Error(),
				})
				out[f.slice] = nil
				return nil
			}
			out[f.slice] = data
			return nil
		})
	}
	_ = eg.Wait()
	return out
}

func runFetch(ctx context.Context, f fetch, timeout time.Duration) (data knowledge.Slice, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("%w: panic: %v", knowledge.ErrKnowledgeFailed, r)
		}
	}()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return f.run(ctx)
}
