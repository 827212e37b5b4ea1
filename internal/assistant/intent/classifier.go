package intent

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"family-assistant/internal/assistant/state"
	"family-assistant/internal/common/llm"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
	"family-assistant/internal/models"
)

// Resolution is the classifier's verdict for one message.
type Resolution struct {
	Type        Type                `json:"type"`
	Confidence  float64             `json:"confidence"`
	Source      models.IntentSource `json:"source"`
	RawResponse string              `json:"rawResponse,omitempty"`
	Dampened    bool                `json:"dampened,omitempty"`
}

const (
	DefaultDampeningFactor = 0.8
	DefaultDampeningFloor  = 0.4
)

type Options struct {
	DampeningFactor float64
	DampeningFloor  float64
}

// Classifier resolves intents through the completion service and dampens
// confidence for repeated messages.
type Classifier struct {
	llm    llm.Client
	memory state.RepeatMemory
	factor float64
	floor  float64
	now    func() time.Time
	logger logger.Logger
}

func NewClassifier(client llm.Client, memory state.RepeatMemory, opts Options, log logger.Logger) *Classifier {
	if opts.DampeningFactor <= 0 || opts.DampeningFactor > 1 {
		opts.DampeningFactor = DefaultDampeningFactor
	}
	if opts.DampeningFloor <= 0 || opts.DampeningFloor > 1 {
		opts.DampeningFloor = DefaultDampeningFloor
	}
	return &Classifier{
		llm:    client,
		memory: memory,
		factor: opts.DampeningFactor,
		floor:  opts.DampeningFloor,
		now:    time.Now,
		logger: log.With(map[string]interface{}{"component": "intent"}),
	}
}

var classifySystem = func() string {
	labels := make([]string, 0, len(All))
	for _, t := range All {
		labels = append(labels, string(t))
	}
	return fmt.Sprintf(`You classify messages sent to a family organization assistant.
Choose exactly one intent from: %s.
- add_provider: registering any caregiver, babysitter, doctor, dentist, tutor or coach.
- add_event: scheduling an appointment, practice, party or any dated event.
- add_task: a chore, errand or to-do.
- track_growth: recording a child's height, weight or other measurement.
- query_*: the user asks to see existing information.
- general_chat: anything conversational.
Respond with only a JSON object: {"intent": "<label>", "confidence": <0..1>}.`, strings.Join(labels, ", "))
}()

type classifyReply struct {
	Intent     string  `json:"intent"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// Classify never fails: completion errors and unparseable replies resolve
// to Unknown with zero confidence.
func (c *Classifier) Classify(ctx context.Context, message string) Resolution {
	raw, err := c.llm.GenerateResponse(ctx, llm.UserTurn(message), classifySystem, llm.SamplingOptions{Temperature: 0, MaxTokens: 100})
	if err != nil {
		c.logger.Warn("Intent classification failed", map[string]interface{}{"error": err.Error()})
		return Resolution{Type: Unknown, Source: models.SourceAI}
	}

	res := parseClassification(raw)
	if res.Type == Unknown {
		return res
	}
	return c.dampen(ctx, message, res)
}

func parseClassification(raw string) Resolution {
	res := Resolution{Type: Unknown, Source: models.SourceAI, RawResponse: raw}

	var reply classifyReply
	if !llm.DecodeJSONObject(raw, &reply) {
		return res
	}
	label := reply.Intent
	if label == "" {
		label = reply.Type
	}
	res.Type = Normalize(label)
	if res.Type != Unknown {
		res.Confidence = clamp01(reply.Confidence)
	}
	return res
}

// dampen lowers confidence when the same text resolved to the same intent
// within the repeat window. The result is factor times the confidence,
// raised to the floor but never above the undampened value.
func (c *Classifier) dampen(ctx context.Context, message string, res Resolution) Resolution {
	if c.memory == nil {
		return res
	}
	repeat, err := c.memory.Observe(ctx, message, string(res.Type), c.now())
	if err != nil {
		c.logger.Warn("Repeat memory unavailable", map[string]interface{}{"error": err.Error()})
		return res
	}
	if !repeat {
		return res
	}

	original := res.Confidence
	res.Confidence = Dampen(original, c.factor, c.floor)
	res.Dampened = true
	metrics.DampenedClassifications.WithLabelValues(string(res.Type)).Inc()
	c.logger.Info("Dampened repeated classification", map[string]interface{}{
		"intent":     string(res.Type),
		"original":   original,
		"confidence": res.Confidence,
	})
	return res
}

// Dampen applies the repeat penalty to confidence.
func Dampen(confidence, factor, floor float64) float64 {
	d := confidence * factor
	if d < floor {
		d = math.Min(floor, confidence)
	}
	return clamp01(d)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

var actionTypeSystem = `Decide what the user wants from a family organization assistant.
Answer "action" when they want something created, changed or removed,
"information" when they want to see existing information,
"conversation" for anything else.
Respond with only a JSON object: {"type": "<action|information|conversation>"}.`

var (
	actionVerbs   = regexp.MustCompile(`(?i)\b(?:add|schedule|create|book|remind|cancel|delete|remove|log|record|track|mark|complete|finish|register|save)\b`)
	questionWords = regexp.MustCompile(`(?i)^\s*(?:what|when|where|who|which|how many|show|list|do i have|is there|are there)\b`)
)

// ClassifyActionType asks the completion service whether message wants an
// action, information or conversation. When the reply is unusable the
// answer comes from keyword heuristics.
func (c *Classifier) ClassifyActionType(ctx context.Context, message string) ActionType {
	raw, err := c.llm.GenerateResponse(ctx, llm.UserTurn(message), actionTypeSystem, llm.SamplingOptions{Temperature: 0, MaxTokens: 20})
	if err == nil {
		var reply struct {
			Type string `json:"type"`
		}
		if llm.DecodeJSONObject(raw, &reply) {
			if t, ok := normalizeActionType(reply.Type); ok {
				return t
			}
		}
		if t, ok := normalizeActionType(raw); ok {
			return t
		}
	} else {
		c.logger.Warn("Action type classification failed", map[string]interface{}{"error": err.Error()})
	}
	return HeuristicActionType(message)
}

// HeuristicActionType classifies message without the completion service.
func HeuristicActionType(message string) ActionType {
	switch {
	case questionWords.MatchString(message):
		return ActionTypeInformation
	case actionVerbs.MatchString(message):
		return ActionTypeAction
	default:
		return ActionTypeConversation
	}
}
