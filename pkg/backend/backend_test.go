// Package backend tests for the generation contract, registry and cache.
package backend

import (
	"context"
	"errors"
	"testing"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

// -----------------------------------------------------------------------------
// Respond / TruncateAtStop
// -----------------------------------------------------------------------------

func TestTruncateAtStop(t *testing.T) {
	tests := []struct {
		name string
		text string
		stop []string
		want string
	}{
		{"no stop", "  hello there ", nil, "hello there"},
		{"cut at first", "I agree.\n\nUser bob posted: no", []string{"###", "\n\n", "User"}, "I agree."},
		{"earliest wins", "a ### b User c", []string{"User", "###"}, "a"},
		{"empty stop ignored", "keep all", []string{""}, "keep all"},
		{"stop at start", "###rest", []string{"###"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateAtStop(tt.text, tt.stop); got != tt.want {
				t.Errorf("TruncateAtStop(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestRemoveDisallowed(t *testing.T) {
	got := RemoveDisallowed("<|im_end|>hi<|im_end|> there", []string{"<|im_end|>", ""})
	if got != "hi there" {
		t.Errorf("got %q", got)
	}
}

func TestRespond(t *testing.T) {
	var seen ChatRequest
	b := Func(func(ctx context.Context, req ChatRequest) (string, error) {
		seen = req
		return " Sure thing.\n\nUser alice posted: hm", nil
	})

	got, err := Respond(context.Background(), b, "sys", "prompt", 42, []string{"\n\n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Sure thing." {
		t.Errorf("got %q", got)
	}
	if len(seen.Messages) != 2 || seen.Messages[0].Role != "system" || seen.Messages[1].Content != "prompt" {
		t.Errorf("unexpected messages: %+v", seen.Messages)
	}
	if seen.MaxTokens != 42 {
		t.Errorf("MaxTokens = %d", seen.MaxTokens)
	}
}

func TestRespond_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := Respond(context.Background(), NewFailing("f", boom), "", "", 0, nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Scripted backends
// -----------------------------------------------------------------------------

func TestScripted_Cycles(t *testing.T) {
	s := NewScripted("s", "one", "two")
	ctx := context.Background()
	var got []string
	for i := 0; i < 3; i++ {
		resp, err := s.Chat(ctx, ChatRequest{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, resp.Content)
	}
	if got[0] != "one" || got[1] != "two" || got[2] != "one" {
		t.Errorf("got %v", got)
	}
	if s.Calls() != 3 {
		t.Errorf("Calls() = %d", s.Calls())
	}
}

func TestScripted_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewScripted("s", "x").Chat(ctx, ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// -----------------------------------------------------------------------------
// Config
// -----------------------------------------------------------------------------

func TestConfig_Key_IgnoresName(t *testing.T) {
	a := Config{Name: "a", Type: TypeOpenAI, Model: "llama"}
	b := Config{Name: "b", Type: TypeOpenAI, Model: "llama"}
	c := Config{Name: "a", Type: TypeOpenAI, Model: "qwen"}

	if a.Key() != b.Key() {
		t.Error("names should not change the key")
	}
	if a.Key() == c.Key() {
		t.Error("models should change the key")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"openai ok", Config{Type: TypeOpenAI, Model: "m"}, false},
		{"openai no model", Config{Type: TypeOpenAI}, true},
		{"command ok", Config{Type: TypeCommand, Command: "llm"}, false},
		{"command missing", Config{Type: TypeCommand}, true},
		{"scripted", Config{Type: TypeScripted}, false},
		{"unknown", Config{Type: "gguf"}, true},
		{"negative timeout", Config{Type: TypeScripted, Timeout: -1}, true},
		{"negative rate", Config{Type: TypeScripted, RateLimit: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

func TestRegistry_DuplicateType(t *testing.T) {
	r := NewRegistry()
	f := func(cfg Config) (Backend, error) { return NewScripted(cfg.Name), nil }
	if err := r.Register(TypeScripted, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := r.Register(TypeScripted, f)
	if !derrors.HasCode(err, derrors.ErrBackendAlreadyRegistered) {
		t.Errorf("expected %s, got %v", derrors.ErrBackendAlreadyRegistered, err)
	}
}

func TestRegistry_New(t *testing.T) {
	r := DefaultRegistry()

	b, err := r.New(Config{Name: "dry", Type: TypeScripted, Replies: []string{"ok"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Name() != "dry" || b.Type() != TypeScripted {
		t.Errorf("got %s/%s", b.Name(), b.Type())
	}

	_, err = r.New(Config{Type: "nope"})
	if !derrors.HasCode(err, derrors.ErrBackendUnknownType) {
		t.Errorf("expected unknown type, got %v", err)
	}

	_, err = r.New(Config{Type: TypeOpenAI})
	if !derrors.HasCode(err, derrors.ErrBackendConstructionFailed) {
		t.Errorf("expected construction failure, got %v", err)
	}
}

func TestDefaultRegistry_Types(t *testing.T) {
	types := DefaultRegistry().Types()
	want := []Type{TypeCommand, TypeFailing, TypeOpenAI, TypeScripted}
	if len(types) != len(want) {
		t.Fatalf("got %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("types[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}
