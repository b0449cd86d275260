// Package backend provides the generation capability consumed by actors.
// A backend is an opaque prompt-in/text-out service; the Cache hands out one
// shared, concurrency-safe instance per distinct configuration.
package backend

import (
	"context"
	"strings"
)

// Type identifies the backend type.
type Type string

const (
	TypeOpenAI   Type = "openai"   // OpenAI-compatible HTTP server (llama.cpp, vLLM, ...)
	TypeCommand  Type = "command"  // External CLI, prompt on stdin
	TypeScripted Type = "scripted" // Canned replies, for dry runs
	TypeFailing  Type = "failing"  // Always errors, for failure drills
)

// Capabilities describes what a backend can do.
type Capabilities struct {
	ContextLimit int `json:"contextLimit"`
	MaxTokens    int `json:"maxTokens"`
}

// ChatMessage represents a single message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatRequest contains parameters for a chat request.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

// ChatResponse contains the model's response.
type ChatResponse struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	LatencyMS    float64    `json:"latency_ms"`
	Model        string     `json:"model"`
	FinishReason string     `json:"finish_reason"`
}

// Backend is the unified interface for model communication.
// Implementations must be safe for concurrent use.
type Backend interface {
	Name() string
	Type() Type
	IsAvailable(ctx context.Context) bool
	Capabilities() Capabilities
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Respond sends a system and a user prompt and returns the reply text,
// cut at the first stop sequence. Servers that honor "stop" never return
// one; the client-side cut covers backends that ignore it.
func Respond(ctx context.Context, b Backend, system, prompt string, maxTokens int, stop []string) (string, error) {
	req := ChatRequest{
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		MaxTokens: maxTokens,
		Stop:      stop,
	}
	resp, err := b.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return TruncateAtStop(resp.Content, stop), nil
}

// TruncateAtStop trims surrounding whitespace and cuts text at the earliest
// occurrence of any stop sequence.
func TruncateAtStop(text string, stop []string) string {
	text = strings.TrimSpace(text)
	cut := len(text)
	for _, s := range stop {
		if s == "" {
			continue
		}
		if i := strings.Index(text, s); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(text[:cut])
}

// RemoveDisallowed deletes every occurrence of the given strings.
func RemoveDisallowed(text string, disallowed []string) string {
	for _, s := range disallowed {
		if s != "" {
			text = strings.ReplaceAll(text, s, "")
		}
	}
	return text
}
