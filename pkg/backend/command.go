package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

// Command runs an external CLI per request. The prompt is written to stdin
// and stdout is the reply, either raw text or a JSON object with a "result"
// field.
type Command struct {
	name  string
	path  string
	args  []string
	model string
}

// NewCommand creates a new command backend.
func NewCommand(cfg Config) *Command {
	name := cfg.Name
	if name == "" {
		name = cfg.Command
	}
	model := cfg.Model
	if model == "" {
		model = cfg.Command
	}
	return &Command{
		name:  name,
		path:  cfg.Command,
		args:  append([]string(nil), cfg.Args...),
		model: model,
	}
}

func (c *Command) Name() string { return c.name }
func (c *Command) Type() Type   { return TypeCommand }

func (c *Command) IsAvailable(ctx context.Context) bool {
	_, err := exec.LookPath(c.path)
	return err == nil
}

func (c *Command) Capabilities() Capabilities {
	return Capabilities{
		ContextLimit: 200000,
		MaxTokens:    8192,
	}
}

func (c *Command) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	prompt := c.buildPrompt(req.Messages)

	cmd := exec.CommandContext(ctx, c.path, c.args...)
	cmd.Stdin = strings.NewReader(prompt)

	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, derrors.BackendWrap(
				fmt.Errorf("%s: %s", exitErr.Error(), strings.TrimSpace(string(exitErr.Stderr))),
				derrors.ErrBackendAPIError, "command failed").
				WithContext("backend", c.name)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		de := derrors.New(derrors.ErrBackendNotInstalled, derrors.CategoryBackend, "failed to run command").
			WithCause(err).
			WithContext(derrors.ContextBackend, string(TypeCommand)).
			WithContext("command", c.path)
		return nil, derrors.AttachSuggestions(de)
	}

	// A JSON envelope is unwrapped only when it carries a result field.
	// Any other output, JSON or not, is the reply itself.
	var resp struct {
		Result *string `json:"result"`
	}
	content := strings.TrimSpace(string(output))
	if err := json.Unmarshal(output, &resp); err == nil && resp.Result != nil {
		content = *resp.Result
	}

	return &ChatResponse{
		Content:      content,
		Model:        c.model,
		FinishReason: "stop",
		LatencyMS:    float64(time.Since(start).Milliseconds()),
		Usage: TokenUsage{
			PromptTokens:     len(prompt) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      (len(prompt) + len(content)) / 4,
		},
	}, nil
}

// buildPrompt flattens the chat into plain text: the system prompt first,
// then each user turn.
func (c *Command) buildPrompt(messages []ChatMessage) string {
	var parts []string
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			parts = append(parts, msg.Content)
		case "user":
			parts = append(parts, msg.Content)
		case "assistant":
			parts = append(parts, fmt.Sprintf("Assistant: %s", msg.Content))
		}
	}
	return strings.Join(parts, "\n\n")
}
