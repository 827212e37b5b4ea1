// Package llmtest provides a scripted completion client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"family-assistant/internal/common/llm"
)

// Call records one GenerateResponse invocation.
type Call struct {
	Turns  []llm.Turn
	System string
	Opts   llm.SamplingOptions
}

// Scripted returns canned replies in order, then repeats the last one.
// Respond, when set, takes precedence.
type Scripted struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Respond func(turns []llm.Turn, system string) (string, error)
	calls   []Call
}

func New(replies ...string) *Scripted {
	return &Scripted{Replies: replies}
}

func (s *Scripted) GenerateResponse(ctx context.Context, turns []llm.Turn, system string, opts llm.SamplingOptions) (string, error) {
	s.mu.Lock()
	idx := len(s.calls)
	s.calls = append(s.calls, Call{Turns: turns, System: system, Opts: opts})
	respond := s.Respond
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if respond != nil {
		return respond(turns, system)
	}
	if s.Err != nil {
		return "", s.Err
	}
	if len(s.Replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	if idx >= len(s.Replies) {
		idx = len(s.Replies) - 1
	}
	return s.Replies[idx], nil
}

// Calls returns a copy of the recorded calls.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of invocations.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}
