package backend

import (
	"context"
	"errors"
	"sync/atomic"
)

// Scripted replies with a fixed list of answers, cycling when exhausted.
// It never contacts a model and is safe for concurrent use.
type Scripted struct {
	name    string
	replies []string
	calls   atomic.Int64
}

// NewScripted creates a scripted backend. With no replies it answers "".
func NewScripted(name string, replies ...string) *Scripted {
	if name == "" {
		name = "scripted"
	}
	return &Scripted{name: name, replies: append([]string(nil), replies...)}
}

func (s *Scripted) Name() string                         { return s.name }
func (s *Scripted) Type() Type                           { return TypeScripted }
func (s *Scripted) IsAvailable(ctx context.Context) bool { return true }
func (s *Scripted) Capabilities() Capabilities           { return Capabilities{ContextLimit: 1 << 20, MaxTokens: 1 << 20} }

// Calls returns the number of Chat invocations so far.
func (s *Scripted) Calls() int {
	return int(s.calls.Load())
}

func (s *Scripted) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := s.calls.Add(1) - 1
	content := ""
	if len(s.replies) > 0 {
		content = s.replies[int(n)%len(s.replies)]
	}
	return &ChatResponse{Content: content, Model: s.name, FinishReason: "stop"}, nil
}

// ErrScriptedFailure is the default error of a Failing backend.
var ErrScriptedFailure = errors.New("scripted failure")

// Failing errors on every request.
type Failing struct {
	name  string
	err   error
	calls atomic.Int64
}

// NewFailing creates a backend that always returns err (ErrScriptedFailure if nil).
func NewFailing(name string, err error) *Failing {
	if name == "" {
		name = "failing"
	}
	if err == nil {
		err = ErrScriptedFailure
	}
	return &Failing{name: name, err: err}
}

func (f *Failing) Name() string                         { return f.name }
func (f *Failing) Type() Type                           { return TypeFailing }
func (f *Failing) IsAvailable(ctx context.Context) bool { return false }
func (f *Failing) Capabilities() Capabilities           { return Capabilities{} }

// Calls returns the number of Chat invocations so far.
func (f *Failing) Calls() int {
	return int(f.calls.Load())
}

func (f *Failing) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	f.calls.Add(1)
	return nil, f.err
}

// Func adapts a function to the Backend interface.
type Func func(ctx context.Context, req ChatRequest) (string, error)

func (f Func) Name() string                         { return "func" }
func (f Func) Type() Type                           { return TypeScripted }
func (f Func) IsAvailable(ctx context.Context) bool { return true }
func (f Func) Capabilities() Capabilities           { return Capabilities{} }

func (f Func) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	content, err := f(ctx, req)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{Content: content, Model: "func", FinishReason: "stop"}, nil
}
