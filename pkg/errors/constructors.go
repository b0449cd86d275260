package errors

import "fmt"

// -----------------------------------------------------------------------------
// Smart Constructors with Auto-Attached Suggestions
// -----------------------------------------------------------------------------

// Config creates a configuration error with auto-attached suggestions.
func Config(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryConfig, message))
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(cause error, code, message string) *DiscoError {
	return AttachSuggestions(Wrap(cause, code, CategoryConfig, message))
}

// Backend creates a backend error with auto-attached suggestions.
func Backend(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryBackend, message))
}

// BackendWrap wraps an error as a backend error.
func BackendWrap(cause error, code, message string) *DiscoError {
	return AttachSuggestions(Wrap(cause, code, CategoryBackend, message))
}

// Actor creates an actor error.
func Actor(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryActor, message))
}

// ActorWrap wraps an error as an actor error.
func ActorWrap(cause error, code, message string) *DiscoError {
	return AttachSuggestions(Wrap(cause, code, CategoryActor, message))
}

// Scheduler creates a turn manager error.
func Scheduler(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryScheduler, message))
}

// Job creates a job error.
func Job(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryJob, message))
}

// JobWrap wraps an error as a job error.
func JobWrap(cause error, code, message string) *DiscoError {
	return AttachSuggestions(Wrap(cause, code, CategoryJob, message))
}

// Persona creates a persona error.
func Persona(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryPersona, message))
}

// PersonaWrap wraps an error as a persona error.
func PersonaWrap(cause error, code, message string) *DiscoError {
	return AttachSuggestions(Wrap(cause, code, CategoryPersona, message))
}

// Validation creates a validation error.
func Validation(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryValidation, message))
}

// IO creates an I/O error.
func IO(code, message string) *DiscoError {
	return AttachSuggestions(New(code, CategoryIO, message))
}

// IOWrap wraps an error as an I/O error.
func IOWrap(cause error, code, message string) *DiscoError {
	return AttachSuggestions(Wrap(cause, code, CategoryIO, message))
}

// Internal creates an internal error.
func Internal(code, message string) *DiscoError {
	return New(code, CategoryInternal, message)
}

// -----------------------------------------------------------------------------
// Common Error Patterns
// -----------------------------------------------------------------------------

// NotConfigured is returned by a turn manager used before SetNames.
func NotConfigured(policy string) *DiscoError {
	return Scheduler(ErrSchedulerNotConfigured, "no participant names registered").
		WithContext(ContextPolicy, policy)
}

// GenerationFailure wraps an error raised by the generation capability.
func GenerationFailure(actor string, cause error) *DiscoError {
	return ActorWrap(cause, ErrActorGenerationFailed, "generation failed").
		WithContext("actor", actor)
}

// GenerationTimeout is returned when generation exceeds its deadline.
func GenerationTimeout(backend string, cause error) *DiscoError {
	return ActorWrap(cause, ErrActorGenerationTimeout, "generation timed out").
		WithContext(ContextBackend, backend)
}

// PersistenceFailure wraps a write error for a record.
func PersistenceFailure(id, path string, cause error) *DiscoError {
	return IOWrap(cause, ErrIOPersistenceFailed, "failed to persist record").
		WithContext("id", id).
		WithContext("path", path)
}

// AlreadyStarted is returned when Begin is called on a job twice.
func AlreadyStarted(id string) *DiscoError {
	return Job(ErrJobAlreadyStarted, "job has already been started").
		WithContext("id", id)
}

// InternalPanic converts a recovered panic value into an error.
func InternalPanic(recovered any) *DiscoError {
	return Internal(ErrInternalPanic, fmt.Sprintf("recovered panic: %v", recovered))
}
