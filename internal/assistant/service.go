// Package assistant turns one inbound family message into a reply: fast-path
// routes first, then either an action through the dispatcher or a
// conversational answer from the agent responder.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"family-assistant/internal/assistant/agents"
	"family-assistant/internal/assistant/dispatcher"
	"family-assistant/internal/assistant/intent"
	"family-assistant/internal/assistant/neutralvoice"
	"family-assistant/internal/assistant/patternrouter"
	apperrors "family-assistant/internal/common/errors"
	"family-assistant/internal/common/logger"
	"family-assistant/internal/models"
)

const (
	RouteDispatch     = "dispatch"
	RouteConversation = "conversation"
	RouteEmpty        = "empty"
)

// Reply is the outcome of one turn. Text has always passed through the
// neutral voice filter.
type Reply struct {
	Text       string                 `json:"text"`
	Success    bool                   `json:"success"`
	Route      string                 `json:"route"`
	Intent     string                 `json:"intent,omitempty"`
	ActionType string                 `json:"actionType,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

type ActionTypeClassifier interface {
	ClassifyActionType(ctx context.Context, message string) intent.ActionType
}

type Responder interface {
	Respond(ctx context.Context, message string, fc *models.FamilyContext) (*agents.Response, error)
}

// Components are the collaborators of a Service. Classifier and Responder
// may be nil; Routes defaults to DefaultRoutes.
type Components struct {
	Classifier ActionTypeClassifier
	Dispatcher *dispatcher.Dispatcher
	Responder  Responder
	Voice      dispatcher.Neutralizer
	Routes     []patternrouter.Rule
}

type Options struct {
	RecentWindow int
}

type Service struct {
	router     *patternrouter.Router
	classifier ActionTypeClassifier
	dispatcher *dispatcher.Dispatcher
	responder  Responder
	voice      dispatcher.Neutralizer
	opts       Options
	now        func() time.Time
	logger     logger.Logger
}

// NewService wires the pipeline and registers the conversational handler on
// the dispatcher.
func NewService(c Components, opts Options, log logger.Logger) (*Service, error) {
	if c.Dispatcher == nil {
		return nil, fmt.Errorf("assistant service requires a dispatcher")
	}
	if opts.RecentWindow <= 0 {
		opts.RecentWindow = 10
	}

	s := &Service{
		classifier: c.Classifier,
		dispatcher: c.Dispatcher,
		responder:  c.Responder,
		voice:      c.Voice,
		opts:       opts,
		now:        time.Now,
		logger:     log.With(map[string]interface{}{"component": "assistant"}),
	}

	routes := c.Routes
	if routes == nil {
		routes = DefaultRoutes(s.calendarRoute)
	}
	router, err := patternrouter.New(routes, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build pattern router: %w", err)
	}
	s.router = router

	if s.responder != nil {
		s.dispatcher.Register(intent.GeneralChat, s.chat)
	}
	return s, nil
}

func (s *Service) Dispatcher() *dispatcher.Dispatcher {
	return s.dispatcher
}

// HandleMessage never returns nil. The user message and the reply are
// appended to fc's recent window.
func (s *Service) HandleMessage(ctx context.Context, message string, fc *models.FamilyContext) *Reply {
	if fc == nil {
		fc = &models.FamilyContext{}
	}
	received := s.now()

	reply := s.handle(ctx, message, fc)
	reply.Text = s.neutralize(reply.Text, fc)

	fc.AppendRecent(models.RecentMessage{Role: "user", Text: message, Timestamp: received}, s.opts.RecentWindow)
	fc.AppendRecent(models.RecentMessage{Role: "assistant", Text: reply.Text, Timestamp: s.now()}, s.opts.RecentWindow)

	s.logger.Info("Message handled", map[string]interface{}{
		"familyId":   fc.FamilyID,
		"route":      reply.Route,
		"intent":     reply.Intent,
		"actionType": reply.ActionType,
		"success":    reply.Success,
		"durationMs": s.now().Sub(received).Milliseconds(),
	})
	return reply
}

func (s *Service) handle(ctx context.Context, message string, fc *models.FamilyContext) *Reply {
	if strings.TrimSpace(message) == "" {
		return &Reply{
			Text:  "What can I help with today?",
			Route: RouteEmpty,
			Error: apperrors.NewInvalidInputError("empty message").Error(),
		}
	}

	routed := s.router.Route(ctx, message, fc)
	if routed.Handled {
		return fromResult(routed.Route, routed.Result)
	}
	if routed.Err != nil {
		s.logger.Warn("Fast path failed, continuing with classification", map[string]interface{}{
			"route": routed.Route,
			"error": routed.Err.Error(),
		})
	}

	actionType := s.actionType(ctx, message)
	var reply *Reply
	if actionType == intent.ActionTypeConversation && s.responder != nil {
		res := s.dispatcher.DispatchResolved(ctx, intent.Resolution{
			Type:       intent.GeneralChat,
			Confidence: 1,
			Source:     models.SourceAI,
		}, message, fc.FamilyID, fc.UserID(), fc)
		reply = fromResult(RouteConversation, res)
	} else {
		res := s.dispatcher.Dispatch(ctx, message, fc.FamilyID, fc.UserID(), fc)
		reply = fromResult(RouteDispatch, res)
	}
	reply.ActionType = string(actionType)
	return reply
}

func (s *Service) actionType(ctx context.Context, message string) intent.ActionType {
	if s.classifier == nil {
		return intent.HeuristicActionType(message)
	}
	return s.classifier.ClassifyActionType(ctx, message)
}

// chat answers general conversation through the responder. It runs inside
// the dispatcher, so the family context already carries the resolved
// identity.
func (s *Service) chat(ctx context.Context, req dispatcher.Request) (*models.ActionResult, error) {
	resp, err := s.responder.Respond(ctx, req.Message, req.Family)
	if err != nil {
		return nil, err
	}
	data := map[string]interface{}{}
	if resp.Selection != nil {
		data["agent"] = string(resp.Selection.Agent)
		data["agentReason"] = resp.Selection.Reason
		data["contextSlices"] = resp.Context.Available()
	}
	return models.Succeeded(resp.Text, data), nil
}

func (s *Service) calendarRoute(ctx context.Context, message string, fc *models.FamilyContext) (*models.ActionResult, error) {
	return s.dispatcher.DispatchResolved(ctx, intent.Resolution{
		Type:       intent.QueryCalendar,
		Confidence: 1,
		Source:     models.SourcePattern,
	}, message, fc.FamilyID, fc.UserID(), fc), nil
}

func (s *Service) neutralize(text string, fc *models.FamilyContext) string {
	if s.voice == nil {
		return text
	}
	c := neutralvoice.Context{}
	if fc.CurrentUser != nil {
		c.Person = fc.CurrentUser.Name
		c.Role = fc.CurrentUser.Role
	}
	return s.voice.Neutralize(text, c)
}

func fromResult(route string, res *models.ActionResult) *Reply {
	if res == nil {
		return &Reply{
			Text:  "Something went wrong while I was working on that. Could we try again in a moment?",
			Route: route,
			Error: "no result",
		}
	}
	return &Reply{
		Text:    res.Message,
		Success: res.Success,
		Route:   route,
		Intent:  res.Intent,
		Data:    res.Data,
		Error:   res.Error,
	}
}
