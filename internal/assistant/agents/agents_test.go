package agents

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"family-assistant/internal/assistant/neutralvoice"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/knowledge"
	"family-assistant/internal/common/llm"
	"family-assistant/internal/common/llm/llmtest"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeGraph struct {
	data    map[string]knowledge.Slice
	fail    map[string]error
	panicOn string
	blockOn string
	meet    int32
	arrived atomic.Int32
	calls   atomic.Int32
}

func (g *fakeGraph) get(ctx context.Context, slice string) (knowledge.Slice, error) {
	g.calls.Add(1)
	if slice == g.panicOn {
		panic("graph exploded")
	}
	if err := g.fail[slice]; err != nil {
		return nil, err
	}
	if slice == g.blockOn {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if g.meet > 0 {
		// Waits until every branch has started.
		g.arrived.Add(1)
		for g.arrived.Load() < g.meet {
			select {
			case <-time.After(time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return g.data[slice], nil
}

func (g *fakeGraph) LaborBreakdown(ctx context.Context, _ string) (knowledge.Slice, error) {
	return g.get(ctx, SliceLabor)
}

func (g *fakeGraph) GraphSnapshot(ctx context.Context, _ string) (knowledge.Slice, error) {
	return g.get(ctx, SliceSnapshot)
}

func (g *fakeGraph) PredictiveInsights(ctx context.Context, _ string) (knowledge.Slice, error) {
	return g.get(ctx, SlicePredictions)
}

func (g *fakeGraph) Query(ctx context.Context, _, _ string) (knowledge.Slice, error) {
	return g.get(ctx, SliceAnswer)
}

func fullGraph() *fakeGraph {
	return &fakeGraph{data: map[string]knowledge.Slice{
		SliceLabor:       {"jordan": 0.7, "sam": 0.3},
		SliceSnapshot:    {"interests": []interface{}{"dinosaurs", "drawing"}},
		SlicePredictions: {"risk": "busy week ahead"},
		SliceAnswer:      {"answer": "Sam handles most school pickups"},
	}}
}

func family() *models.FamilyContext {
	return &models.FamilyContext{
		FamilyID:    "fam-1",
		CurrentUser: &models.FamilyMember{ID: "u-1", Name: "Jordan", Role: "parent"},
		FamilyMembers: []models.FamilyMember{
			{ID: "u-1", Name: "Jordan", Role: "parent"},
			{ID: "u-2", Name: "Sam", Role: "parent"},
			{ID: "c-1", Name: "Lily", Role: "child", Age: 6},
		},
	}
}

func newResponder(t *testing.T, client llm.Client, g knowledge.Graph, opts ResponderOptions) *Responder {
	t.Helper()
	log := logger.NewTestLogger(t)
	voice := neutralvoice.New(log, neutralvoice.WithRandSource(rand.NewSource(1)))
	return NewResponder(client, g, voice, opts, log)
}

func TestDetectSpecializedAgent(t *testing.T) {
	imbalanced := family()
	imbalanced.Insights = &models.InsightSnapshots{LaborBalance: map[string]interface{}{"imbalanced": true}}

	tests := []struct {
		name    string
		message string
		fc      *models.FamilyContext
		want    Agent
	}{
		{"graph pattern", "Who usually handles school pickups?", nil, GraphQuery},
		{"gift", "Any gift ideas for Lily?", nil, GiftDiscovery},
		{"balance wording", "It feels unfair, I'm doing everything around here", nil, BalanceForensics},
		{"habit", "Help me build a bedtime routine", nil, HabitImprovement},
		{"graph beats gift", "How often do we buy gifts for cousins?", nil, GraphQuery},
		{"fatigue with imbalance on record", "I'm so tired lately", imbalanced, BalanceForensics},
		{"fatigue alone", "I'm so tired lately", family(), ""},
		{"plain chat", "What's a good name for a goldfish?", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := DetectSpecializedAgent(tt.message, tt.fc)
			if tt.want == "" {
				assert.Nil(t, sel)
				return
			}
			require.NotNil(t, sel)
			assert.Equal(t, tt.want, sel.Agent)
			assert.NotEmpty(t, sel.Reason)
		})
	}
}

func TestDetect_OrdersByPriority(t *testing.T) {
	always := func(string, *models.FamilyContext) bool { return true }
	rules := []Rule{
		{Agent: HabitImprovement, Priority: 4, Match: always},
		{Agent: GiftDiscovery, Priority: 2, Match: always},
		{Agent: BalanceForensics, Priority: 2, Match: always},
	}

	sel := Detect(rules, "anything", nil)
	require.NotNil(t, sel)
	assert.Equal(t, GiftDiscovery, sel.Agent)
	assert.Equal(t, HabitImprovement, rules[0].Agent, "input order is left untouched")
}

func TestFetchContext_IsolatesBranchFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(g *fakeGraph)
		timeout time.Duration
	}{
		{"error", func(g *fakeGraph) { g.fail = map[string]error{SliceLabor: knowledge.ErrKnowledgeFailed} }, time.Second},
		{"panic", func(g *fakeGraph) { g.panicOn = SliceLabor }, time.Second},
		{"timeout", func(g *fakeGraph) { g.blockOn = SliceLabor }, 20 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := fullGraph()
			tt.mutate(g)
			sel := &Selection{Agent: BalanceForensics}

			ac := FetchContext(context.Background(), g, sel, "fam-1", "is this fair?", tt.timeout, logger.NewTestLogger(t))

			require.Contains(t, ac, SliceLabor)
			assert.Nil(t, ac[SliceLabor])
			assert.Equal(t, "busy week ahead", ac[SlicePredictions]["risk"])
			assert.Equal(t, []string{SlicePredictions}, ac.Available())
			assert.EqualValues(t, 2, g.calls.Load())
		})
	}
}

func TestFetchContext_SiblingsRunConcurrently(t *testing.T) {
	g := fullGraph()
	g.meet = 2
	sel := &Selection{Agent: GraphQuery}

	ac := FetchContext(context.Background(), g, sel, "fam-1", "who usually cooks?", time.Second, logger.NewTestLogger(t))

	assert.Equal(t, []string{SliceAnswer, SliceSnapshot}, ac.Available())
}

func TestFetchContext_NoGraph(t *testing.T) {
	ac := FetchContext(context.Background(), nil, &Selection{Agent: GiftDiscovery}, "fam-1", "gift", time.Second, logger.NewTestLogger(t))
	assert.Empty(t, ac)
}

func TestRespond_StripsReasoningAndNeutralizes(t *testing.T) {
	client := llmtest.New("<thinking>They keep forgetting, blame them.</thinking>Try a shared checklist by the door.<plan/>")
	r := newResponder(t, client, nil, ResponderOptions{})

	resp, err := r.Respond(context.Background(), "How do we stop forgetting lunchboxes?", family())
	require.NoError(t, err)

	assert.NotContains(t, resp.Text, "<")
	assert.NotContains(t, resp.Text, "blame")
	assert.Contains(t, resp.Text, "shared checklist")
	assert.True(t, neutralvoice.HasCollaboration(resp.Text))
}

func TestRespond_AgentContextInPrompt(t *testing.T) {
	g := fullGraph()
	g.fail = map[string]error{SlicePredictions: errors.New("graph down")}
	client := llmtest.New("Here is how the work is spread right now.")
	r := newResponder(t, client, g, ResponderOptions{})

	resp, err := r.Respond(context.Background(), "Is the chore split fair?", family())
	require.NoError(t, err)
	require.NotNil(t, resp.Selection)
	assert.Equal(t, BalanceForensics, resp.Selection.Agent)

	system := client.Calls()[0].System
	assert.Contains(t, system, "[labor_breakdown]\n{\"jordan\":0.7,\"sam\":0.3}")
	assert.Contains(t, system, "[predictive_insights]\nunavailable")
	assert.Contains(t, system, "- Lily (child)")
	assert.NotContains(t, system, "HARD CONSTRAINT")
}

func TestRespond_ChildObserverConstraintIsLast(t *testing.T) {
	fc := family()
	fc.ChildObserver = true
	client := llmtest.New("Let's pick a fun gift together!")
	r := newResponder(t, client, fullGraph(), ResponderOptions{})

	_, err := r.Respond(context.Background(), "Any gift ideas for grandma?", fc)
	require.NoError(t, err)

	system := client.Calls()[0].System
	assert.True(t, strings.HasSuffix(system, childObserverConstraint))
}

func TestRespond_RecentWindow(t *testing.T) {
	fc := family()
	for i := 0; i < 4; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		fc.RecentMessages = append(fc.RecentMessages, models.RecentMessage{Role: role, Text: string(rune('a' + i))})
	}
	client := llmtest.New("Sounds good, let's do it together.")
	r := newResponder(t, client, nil, ResponderOptions{RecentWindow: 2})

	_, err := r.Respond(context.Background(), "and now?", fc)
	require.NoError(t, err)

	turns := client.Calls()[0].Turns
	require.Len(t, turns, 3)
	assert.Equal(t, llm.Turn{Role: llm.RoleUser, Content: "c"}, turns[0])
	assert.Equal(t, llm.Turn{Role: llm.RoleAssistant, Content: "d"}, turns[1])
	assert.Equal(t, "and now?", turns[2].Content)
}

func TestRespond_EmptyCompletionFallsBack(t *testing.T) {
	r := newResponder(t, llmtest.New("<reasoning>nothing to say</reasoning>"), nil, ResponderOptions{})

	resp, err := r.Respond(context.Background(), "hmm", family())
	require.NoError(t, err)
	assert.Contains(t, resp.Text, "What would be most useful")
}

func TestRespond_CompletionFailure(t *testing.T) {
	client := &llmtest.Scripted{Err: llm.ErrCompletionTimeout}
	r := newResponder(t, client, nil, ResponderOptions{})

	resp, err := r.Respond(context.Background(), "hello there", family())
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, apperrors.ErrCodeCompletionFailed, apperrors.CodeOf(err))
	assert.ErrorIs(t, err, llm.ErrCompletionTimeout)
}
