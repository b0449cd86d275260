package errors

import (
	"sort"
	"sync"
)

// Context keys used to select conditional suggestions.
const (
	ContextBackend = "backend"
	ContextPolicy  = "policy"
)

// Suggestion is a remediation hint with optional context conditions.
type Suggestion struct {
	// Text is the suggestion message displayed to the user.
	Text string

	// Conditions must all match the error context. Empty matches anything.
	Conditions map[string]string

	// Priority orders suggestions; higher first.
	Priority int
}

// Matches returns true if the suggestion's conditions hold in ctx.
func (s *Suggestion) Matches(ctx map[string]string) bool {
	for key, value := range s.Conditions {
		if ctx[key] != value {
			return false
		}
	}
	return true
}

// Registry maps error codes to their remediation suggestions.
type Registry struct {
	mu          sync.RWMutex
	suggestions map[string][]Suggestion
}

// NewRegistry creates an empty suggestion registry.
func NewRegistry() *Registry {
	return &Registry{suggestions: make(map[string][]Suggestion)}
}

// Register adds an unconditional suggestion for code.
func (r *Registry) Register(code, text string) *Registry {
	return r.RegisterSuggestion(code, Suggestion{Text: text})
}

// RegisterWithCondition adds a suggestion shown only when ctx matches conditions.
func (r *Registry) RegisterWithCondition(code, text string, conditions map[string]string) *Registry {
	return r.RegisterSuggestion(code, Suggestion{Text: text, Conditions: conditions, Priority: 10})
}

// RegisterSuggestion adds a fully specified suggestion.
func (r *Registry) RegisterSuggestion(code string, s Suggestion) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suggestions[code] = append(r.suggestions[code], s)
	return r
}

// Get returns the matching suggestion texts for code, highest priority first.
func (r *Registry) Get(code string, ctx map[string]string) []string {
	r.mu.RLock()
	all := append([]Suggestion(nil), r.suggestions[code]...)
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].Priority > all[j].Priority })

	var out []string
	for i := range all {
		if all[i].Matches(ctx) {
			out = append(out, all[i].Text)
		}
	}
	return out
}

// HasSuggestions reports whether any suggestion is registered for code.
func (r *Registry) HasSuggestions(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.suggestions[code]) > 0
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by the smart constructors.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// AttachSuggestions appends the default registry's suggestions for e.Code.
func AttachSuggestions(e *DiscoError) *DiscoError {
	if e == nil {
		return nil
	}
	e.Suggestions = append(e.Suggestions, defaultRegistry.Get(e.Code, e.Context)...)
	return e
}

func init() {
	r := defaultRegistry

	r.Register(ErrConfigNotFound, "Run 'syndisco init' to create a default configuration")
	r.Register(ErrConfigParseFailed, "Check the YAML syntax and remove keys that are not recognized")
	r.Register(ErrConfigInvalid, "Run 'syndisco init --force' to compare against the defaults")

	r.Register(ErrBackendNotFound, "Declare the backend under 'backends:' in the configuration")
	r.Register(ErrBackendUnknownType, "Valid backend types: openai, command, scripted")
	r.RegisterWithCondition(ErrBackendUnavailable,
		"Start an OpenAI-compatible server (llama.cpp, vLLM) and check 'url'",
		map[string]string{ContextBackend: "openai"})
	r.RegisterWithCondition(ErrBackendNotInstalled,
		"Make sure the configured command is on PATH",
		map[string]string{ContextBackend: "command"})

	r.Register(ErrActorGenerationTimeout, "Increase the backend 'timeout' or lower 'max_tokens'")
	r.Register(ErrActorGenerationFailed, "Inspect the backend logs; the participant is removed after repeated failures")

	r.Register(ErrSchedulerNotConfigured, "Call SetNames with the participant list before Next")
	r.Register(ErrSchedulerUnknownPolicy, "Valid turn policies: round_robin, random_weighted")
	r.RegisterWithCondition(ErrSchedulerNoWillingSpeaker,
		"Raise 'respond_probability' or set 'on_silence: retry'",
		map[string]string{ContextPolicy: "random_weighted"})

	r.Register(ErrJobAlreadyStarted, "Create a new job for every run")
	r.Register(ErrJobAllParticipantsFailed, "Every participant failed to generate; check backend availability")
	r.Register(ErrJobBatchFailed, "Inspect the failures with 'syndisco shell' and /runs, or rerun with --log-level debug")

	r.Register(ErrPersonaUnsupportedFormat, "Persona files must end in .json, .yaml, .yml or .toml")
	r.Register(ErrPersonaParseFailed, "Unknown persona fields are rejected in strict mode; use lenient loading to ignore them")

	r.Register(ErrIOPersistenceFailed, "Check that the output directory exists and is writable")
}
