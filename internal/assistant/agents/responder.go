package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"family-assistant/internal/assistant/neutralvoice"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/knowledge"
	"family-assistant/internal/common/llm"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
	"family-assistant/internal/common/observability"
	"family-assistant/internal/models"
)

const basePersona = `You are a warm, practical family assistant. You help a household coordinate schedules, tasks, providers and children's milestones.
Speak about situations and systems, never about who is at fault. Keep replies short and end with an invitation to work on it together.
Never include hidden reasoning, planning notes or XML-style tags in your reply.`

const childObserverConstraint = `HARD CONSTRAINT: a child is reading this conversation. Use simple, age-appropriate words. Do not mention conflict between adults, money worries, health scares or any adult topic. If the request needs such content, say that you can talk about it later with the grown-ups.`

var agentInstructions = map[Agent]string{
	GraphQuery:       "Answer using the family activity graph below. Cite patterns, not individuals' shortcomings.",
	GiftDiscovery:    "Suggest three thoughtful gift ideas that fit the interests and upcoming occasions below. Keep each idea to one line.",
	BalanceForensics: "Describe how household work is currently spread using the breakdown below. Frame any imbalance as a system to adjust together and propose one small change.",
	HabitImprovement: "Help build a sustainable routine. Use the workload and risk signals below to propose one small, repeatable step.",
}

// Fallback is returned when the completion service produces nothing usable.
const Fallback = "I'm here to help. What would be most useful to work on together right now?"

type Neutralizer interface {
	Neutralize(text string, c neutralvoice.Context) string
}

// Response is a generated conversational reply.
type Response struct {
	Text      string       `json:"text"`
	Selection *Selection   `json:"selection,omitempty"`
	Context   AgentContext `json:"context,omitempty"`
}

type ResponderOptions struct {
	KnowledgeTimeout time.Duration
	RecentWindow     int
	Temperature      float64
	MaxTokens        int
}

// Responder generates conversational replies, augmented by a specialized
// agent's knowledge-graph context when one is selected.
type Responder struct {
	llm    llm.Client
	graph  knowledge.Graph
	voice  Neutralizer
	rules  []Rule
	opts   ResponderOptions
	obs    *observability.Observability
	logger logger.Logger
}

type ResponderOption func(*Responder)

func WithRules(rules []Rule) ResponderOption {
	return func(r *Responder) { r.rules = rules }
}

func WithObservability(obs *observability.Observability) ResponderOption {
	return func(r *Responder) { r.obs = obs }
}

// NewResponder builds a responder. graph and voice may be nil.
func NewResponder(client llm.Client, graph knowledge.Graph, voice Neutralizer, opts ResponderOptions, log logger.Logger, options ...ResponderOption) *Responder {
	if opts.KnowledgeTimeout <= 0 {
		opts.KnowledgeTimeout = 5 * time.Second
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 10
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 600
	}
	r := &Responder{
		llm:    client,
		graph:  graph,
		voice:  voice,
		rules:  DefaultRules,
		opts:   opts,
		logger: log,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Respond generates a reply to message. The returned text has reasoning
// markup removed and has passed through the neutral voice filter.
func (r *Responder) Respond(ctx context.Context, message string, fc *models.FamilyContext) (resp *Response, err error) {
	familyID := ""
	if fc != nil {
		familyID = fc.FamilyID
	}
	ctx, span := r.obs.Tracing().Start(ctx, "assistant.respond", map[string]string{"familyId": familyID})
	defer func() { observability.End(span, err) }()

	resp = &Response{Selection: Detect(r.rules, message, fc)}
	if resp.Selection != nil {
		metrics.AgentSelections.WithLabelValues(string(resp.Selection.Agent)).Inc()
		resp.Context = FetchContext(ctx, r.graph, resp.Selection, familyID, message, r.opts.KnowledgeTimeout, r.logger)
		r.logger.Info("Specialized agent selected", map[string]interface{}{
			"agent":     string(resp.Selection.Agent),
			"reason":    resp.Selection.Reason,
			"familyId":  familyID,
			"available": resp.Context.Available(),
		})
	}

	system := BuildPrompt(resp.Selection, resp.Context, fc)
	turns := r.turns(message, fc)

	raw, err := r.llm.GenerateResponse(ctx, turns, system, llm.SamplingOptions{
		Temperature: r.opts.Temperature,
		MaxTokens:   r.opts.MaxTokens,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeCompletionFailed, "Conversational reply failed", err)
	}

	text := llm.StripReasoning(raw)
	if text == "" {
		text = Fallback
	}
	resp.Text = r.neutralize(text, fc)
	return resp, nil
}

func (r *Responder) neutralize(text string, fc *models.FamilyContext) string {
	if r.voice == nil {
		return text
	}
	c := neutralvoice.Context{}
	if fc != nil && fc.CurrentUser != nil {
		c.Person = fc.CurrentUser.Name
		c.Role = fc.CurrentUser.Role
	}
	return r.voice.Neutralize(text, c)
}

func (r *Responder) turns(message string, fc *models.FamilyContext) []llm.Turn {
	var turns []llm.Turn
	if fc != nil {
		recent := fc.RecentMessages
		if len(recent) > r.opts.RecentWindow {
			recent = recent[len(recent)-r.opts.RecentWindow:]
		}
		for _, m := range recent {
			role := llm.RoleUser
			if m.Role == llm.RoleAssistant {
				role = llm.RoleAssistant
			}
			turns = append(turns, llm.Turn{Role: role, Content: m.Text})
		}
	}
	return append(turns, llm.Turn{Role: llm.RoleUser, Content: message})
}

// BuildPrompt assembles the system instructions for one reply. The child
// observer constraint is always the last block.
func BuildPrompt(sel *Selection, ac AgentContext, fc *models.FamilyContext) string {
	var b strings.Builder
	b.WriteString(basePersona)

	if fc != nil && len(fc.FamilyMembers) > 0 {
		b.WriteString("\n\nFamily members:")
		for _, m := range fc.FamilyMembers {
			fmt.Fprintf(&b, "\n- %s (%s)", m.Name, m.Role)
		}
	}
	if fc != nil && fc.CurrentUser != nil {
		fmt.Fprintf(&b, "\nYou are talking with %s.", fc.CurrentUser.Name)
	}

	if sel != nil {
		b.WriteString("\n\n")
		b.WriteString(agentInstructions[sel.Agent])
		for _, f := range fetchOrder(sel.Agent) {
			data, ok := ac[f]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "\n\n[%s]\n", f)
			if data == nil {
				b.WriteString("unavailable right now; do not guess at it")
				continue
			}
			encoded, err := json.Marshal(data)
			if err != nil {
				b.WriteString("unavailable right now; do not guess at it")
				continue
			}
			b.Write(encoded)
		}
	}

	if fc != nil && fc.ChildObserver {
		b.WriteString("\n\n")
		b.WriteString(childObserverConstraint)
	}
	return b.String()
}

func fetchOrder(agent Agent) []string {
	switch agent {
	case GraphQuery:
		return []string{SliceAnswer, SliceSnapshot}
	case GiftDiscovery:
		return []string{SliceSnapshot, SlicePredictions}
	default:
		return []string{SliceLabor, SlicePredictions}
	}
}
