// Package errors provides structured error types for syndisco.
// Errors carry a stable code, key-value context, an optional cause and
// remediation suggestions for the CLI.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
)

// Category classifies errors for consistent handling and display.
type Category string

const (
	CategoryConfig     Category = "config"     // Configuration loading/parsing errors
	CategoryBackend    Category = "backend"    // Generation backend errors
	CategoryActor      Category = "actor"      // Actor generation errors
	CategoryScheduler  Category = "scheduler"  // Turn manager errors
	CategoryJob        Category = "job"        // Discussion/annotation job errors
	CategoryPersona    Category = "persona"    // Persona loading errors
	CategoryValidation Category = "validation" // Input validation errors
	CategoryIO         Category = "io"         // File/IO and persistence errors
	CategoryInternal   Category = "internal"   // Internal/unexpected errors
)

// DiscoError is a structured error with context and suggestions.
type DiscoError struct {
	// Code is a unique identifier for this error type (e.g. "SCHEDULER_NOT_CONFIGURED")
	Code string

	// Category classifies this error for consistent handling
	Category Category

	// Message is the primary error message describing what went wrong
	Message string

	// Context provides additional key-value details about the error
	Context map[string]string

	// Cause is the underlying error, if any
	Cause error

	// Suggestions are actionable remediation steps for the user
	Suggestions []string
}

// Error implements the error interface.
func (e *DiscoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *DiscoError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DiscoError with the same Code.
func (e *DiscoError) Is(target error) bool {
	if t, ok := target.(*DiscoError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new DiscoError with the given code, category, and message.
func New(code string, category Category, message string) *DiscoError {
	return &DiscoError{
		Code:     code,
		Category: category,
		Message:  message,
		Context:  make(map[string]string),
	}
}

// Wrap wraps an existing error with a DiscoError.
func Wrap(err error, code string, category Category, message string) *DiscoError {
	return New(code, category, message).WithCause(err)
}

// WithContext adds a context key-value pair and returns the error for chaining.
func (e *DiscoError) WithContext(key, value string) *DiscoError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause sets the underlying error.
func (e *DiscoError) WithCause(cause error) *DiscoError {
	e.Cause = cause
	return e
}

// WithSuggestion adds a remediation suggestion and returns the error for chaining.
func (e *DiscoError) WithSuggestion(suggestion string) *DiscoError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// HasContext returns true if the error has context information.
func (e *DiscoError) HasContext() bool {
	return len(e.Context) > 0
}

// HasSuggestions returns true if the error has suggestions.
func (e *DiscoError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// ContextString returns the context as sorted key="value" pairs.
func (e *DiscoError) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, e.Context[k]))
	}
	return strings.Join(parts, ", ")
}

// AsDiscoError finds the first DiscoError in err's chain.
func AsDiscoError(err error) (*DiscoError, bool) {
	if err == nil {
		return nil, false
	}
	var de *DiscoError
	if stderrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any DiscoError in err's chain carries code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &DiscoError{Code: code})
}

// IsCategory checks if the outermost DiscoError in err's chain has the given category.
func IsCategory(err error, category Category) bool {
	if de, ok := AsDiscoError(err); ok {
		return de.Category == category
	}
	return false
}
