// Package dispatcher resolves a message to an intent, extracts its
// entities and runs the registered action handler under failure isolation.
package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"family-assistant/internal/assistant/identity"
	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/assistant/neutralvoice"
	"family-assistant/internal/assistant/state"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/learning"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/common/metrics"
	"family-assistant/internal/common/observability"
	"family-assistant/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Request is what a handler receives.
type Request struct {
	Message    string
	Identity   identity.Identity
	Resolution intent.Resolution
	Entities   *models.EntityBundle
	Family     *models.FamilyContext
}

// Handler performs one intent's side effects. Handlers must be safe for the
// caller to retry; the dispatcher never retries them.
type Handler func(ctx context.Context, req Request) (*models.ActionResult, error)

type IntentClassifier interface {
	Classify(ctx context.Context, message string) intent.Resolution
}

type EntityExtractor interface {
	Extract(ctx context.Context, message string, t intent.Type, fc *models.FamilyContext) *models.EntityBundle
}

type IdentityResolver interface {
	Resolve(ctx context.Context, familyID, userID string) (*identity.Identity, error)
}

type Neutralizer interface {
	Neutralize(text string, c neutralvoice.Context) string
}

type Options struct {
	MinConfidence   float64
	LearningTimeout time.Duration
}

// Dispatcher is safe for concurrent use once handlers are registered.
type Dispatcher struct {
	classifier IntentClassifier
	extractor  EntityExtractor
	identity   IdentityResolver
	voice      Neutralizer
	handlers   map[intent.Type]Handler
	stats      *state.Stats
	learner    learning.Recorder
	obs        *observability.Observability
	opts       Options
	now        func() time.Time
	logger     logger.Logger
	pending    sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLearning(r learning.Recorder) Option {
	return func(d *Dispatcher) { d.learner = r }
}

func WithObservability(o *observability.Observability) Option {
	return func(d *Dispatcher) { d.obs = o }
}

func WithStats(s *state.Stats) Option {
	return func(d *Dispatcher) { d.stats = s }
}

func New(classifier IntentClassifier, extractor EntityExtractor, resolver IdentityResolver, voice Neutralizer, opts Options, log logger.Logger, options ...Option) *Dispatcher {
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = 0.5
	}
	if opts.LearningTimeout <= 0 {
		opts.LearningTimeout = 2 * time.Second
	}
	d := &Dispatcher{
		classifier: classifier,
		extractor:  extractor,
		identity:   resolver,
		voice:      voice,
		handlers:   make(map[intent.Type]Handler),
		stats:      state.NewStats(),
		learner:    learning.NopRecorder{},
		opts:       opts,
		now:        time.Now,
		logger:     log.With(map[string]interface{}{"component": "dispatcher"}),
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Register binds h to t, replacing any previous handler.
func (d *Dispatcher) Register(t intent.Type, h Handler) {
	d.handlers[t] = h
}

func (d *Dispatcher) Stats() *state.Stats {
	return d.stats
}

// WaitLearning blocks until in-flight outcome records finish.
func (d *Dispatcher) WaitLearning() {
	d.pending.Wait()
}

// ProcessRequest dispatches message for the given identity hints.
func (d *Dispatcher) ProcessRequest(ctx context.Context, message, familyID, userID string) *models.ActionResult {
	return d.Dispatch(ctx, message, familyID, userID, nil)
}

// Dispatch never returns nil and never panics on handler failure. Every
// call is counted once on entry and once on completion.
func (d *Dispatcher) Dispatch(ctx context.Context, message, familyID, userID string, fc *models.FamilyContext) *models.ActionResult {
	return d.dispatch(ctx, message, familyID, userID, fc, nil)
}

// DispatchResolved runs the handler for an intent resolved upstream, such as
// by a fast-path route. Identity, statistics and failure isolation apply as
// in Dispatch.
func (d *Dispatcher) DispatchResolved(ctx context.Context, res intent.Resolution, message, familyID, userID string, fc *models.FamilyContext) *models.ActionResult {
	return d.dispatch(ctx, message, familyID, userID, fc, &res)
}

func (d *Dispatcher) dispatch(ctx context.Context, message, familyID, userID string, fc *models.FamilyContext, preset *intent.Resolution) (result *models.ActionResult) {
	start := d.now()
	ticket := d.stats.Begin()
	metrics.AssistantRequests.Inc()

	ctx, span := d.obs.Tracing().Start(ctx, "assistant.dispatch", map[string]string{"familyId": familyID})
	resolved := intent.Unknown
	var failure error
	defer func() {
		observability.End(span, failure)
		d.finish(ctx, ticket, message, familyID, resolved, result, start)
	}()

	id, err := d.identity.Resolve(ctx, familyID, userID)
	if err != nil {
		failure = err
		return d.fail(err, "I couldn't tell which family this is for. Could you sign in and try again?")
	}
	familyID = id.FamilyID

	var res intent.Resolution
	var ok bool
	if preset != nil {
		res, ok = *preset, preset.Type.Valid() && preset.Type != intent.Unknown
	} else {
		res, ok = d.resolveIntent(ctx, message)
	}
	if !ok {
		failure = apperrors.NewClarificationNeededError("intent unresolved")
		return d.fail(failure, "I'm not sure what you'd like me to do. Could you tell me a bit more?")
	}
	resolved = res.Type
	span.SetAttributes(attribute.String("intent", string(res.Type)), attribute.String("source", string(res.Source)))

	fc = scopedContext(fc, id)
	var bundle *models.EntityBundle
	if d.extractor != nil {
		bundle = d.extractor.Extract(ctx, message, res.Type, fc)
	} else {
		bundle = models.NewBundle(res.Type.EntityType())
	}

	h, ok := d.handlers[res.Type]
	if !ok {
		failure = apperrors.NewClarificationNeededError(fmt.Sprintf("no handler for %s", res.Type))
		return d.fail(failure, "I can't help with that just yet. Is there something else I can do?")
	}

	out, err := d.invoke(ctx, h, Request{
		Message:    message,
		Identity:   *id,
		Resolution: res,
		Entities:   bundle,
		Family:     fc,
	})
	if err != nil {
		failure = err
		if apperrors.CodeOf(err) == apperrors.ErrCodeClarificationNeeded {
			return d.fail(err, clarificationText(err))
		}
		d.logger.Error("Action handler failed", map[string]interface{}{
			"intent": string(res.Type),
			"error":  err.Error(),
		})
		return d.fail(apperrors.NewHandlerFailedError(string(res.Type), err), "Something went wrong while I was working on that. Could we try again in a moment?")
	}
	out.Intent = string(res.Type)
	return out
}

// invoke runs h, converting panics and nil results into errors.
func (d *Dispatcher) invoke(ctx context.Context, h Handler, req Request) (out *models.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Action handler panicked", map[string]interface{}{
				"intent": string(req.Resolution.Type),
				"panic":  fmt.Sprint(r),
				"stack":  string(debug.Stack()),
			})
			out, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()

	out, err = h(ctx, req)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("handler returned no result")
	}
	if !out.Success && out.Error == "" {
		out.Error = "handler reported failure"
	}
	return out, nil
}

func (d *Dispatcher) fail(err error, text string) *models.ActionResult {
	message := text
	if d.voice != nil {
		message = d.voice.Neutralize(text, neutralvoice.Context{})
	}
	return models.Failed(message, err.Error())
}

func (d *Dispatcher) finish(ctx context.Context, ticket state.Ticket, message, familyID string, t intent.Type, result *models.ActionResult, start time.Time) {
	success := result != nil && result.Success
	outcome := "failure"
	if success {
		outcome = "success"
	}
	d.stats.Complete(ticket, string(t), success)
	metrics.AssistantActions.WithLabelValues(string(t), outcome).Inc()
	d.obs.RecordDispatch(ctx, string(t), outcome, d.now().Sub(start))

	rec := learning.Outcome{
		ID:         uuid.NewString(),
		FamilyID:   familyID,
		Intent:     string(t),
		Text:       message,
		Success:    success,
		RecordedAt: d.now().UTC(),
	}
	if result != nil {
		rec.Error = result.Error
	}
	d.record(ctx, rec)
}

// record sends outcome to the learning recorder off the request path. Its
// failure never reaches the caller.
func (d *Dispatcher) record(ctx context.Context, outcome learning.Outcome) {
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Warn("Learning recorder panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
			}
		}()

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.LearningTimeout)
		defer cancel()
		if err := d.learner.Record(lctx, outcome); err != nil {
			d.logger.Warn("Failed to record outcome", map[string]interface{}{
				"intent": outcome.Intent,
				"error":  err.Error(),
			})
		}
	}()
}

// scopedContext returns a family context carrying the resolved identity.
func scopedContext(fc *models.FamilyContext, id *identity.Identity) *models.FamilyContext {
	var out models.FamilyContext
	if fc != nil {
		out = *fc
	}
	out.FamilyID = id.FamilyID
	if out.CurrentUser == nil && id.UserID != "" {
		if m, ok := memberByID(out.FamilyMembers, id.UserID); ok {
			out.CurrentUser = &m
		} else {
			out.CurrentUser = &models.FamilyMember{ID: id.UserID}
		}
	}
	return &out
}

func memberByID(members []models.FamilyMember, id string) (models.FamilyMember, bool) {
	for _, m := range members {
		if m.ID == id {
			return m, true
		}
	}
	return models.FamilyMember{}, false
}

func clarificationText(err error) string {
	if std := apperrors.AsStandardError(err); std != nil && std.Details != "" {
		return fmt.Sprintf("Could you share the %s so I can finish this?", std.Details)
	}
	return "Could you share a few more details so I can finish this?"
}
