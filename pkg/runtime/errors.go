package runtime

import (
	"strings"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

// -----------------------------------------------------------------------------
// Error Creation Helpers
// -----------------------------------------------------------------------------

// generationError turns a backend failure into a GenerationFailure or
// GenerationTimeout carrying actor and backend context. Known failure modes
// get a targeted suggestion.
func generationError(actorName, backendName string, cause error) *derrors.DiscoError {
	if derrors.HasCode(cause, derrors.ErrActorGenerationTimeout) {
		de, _ := derrors.AsDiscoError(cause)
		return de.WithContext("actor", actorName)
	}

	errStr := strings.ToLower(cause.Error())
	err := derrors.GenerationFailure(actorName, cause).
		WithContext(derrors.ContextBackend, backendName)

	switch {
	case isTimeout(errStr):
		return derrors.GenerationTimeout(backendName, cause).
			WithContext("actor", actorName)
	case isConnectionRefused(errStr):
		err.Message = "generation failed: backend connection refused"
		err.WithSuggestion("Ensure the model server is running and reachable")
	case isAuthError(errStr):
		err.Message = "generation failed: authentication error"
		err.WithSuggestion("Check the environment variable named by 'api_key_env'")
	case isRateLimit(errStr):
		err.Message = "generation failed: rate limit exceeded"
		err.WithSuggestion("Lower 'rate_limit' for this backend")
	case isModelNotFound(errStr):
		err.Message = "generation failed: model not found"
		err.WithSuggestion("Verify the model name in the backend configuration")
	}
	return err
}

// createActorAlreadyExistsError is returned when two specs resolve to the same name.
func createActorAlreadyExistsError(name string, existing []string) *derrors.DiscoError {
	err := derrors.Actor(derrors.ErrActorAlreadyExists, "an actor with this name already exists").
		WithContext("actor", name)
	if len(existing) > 0 {
		err.WithContext("existing_actors", strings.Join(existing, ", "))
	}
	return err.WithSuggestion("Persona usernames must be unique within one discussion")
}

// createBackendNotFoundError is returned when a spec names an undeclared backend.
func createBackendNotFoundError(actorName, backendName string, available []string) *derrors.DiscoError {
	err := derrors.Backend(derrors.ErrBackendNotFound, "the specified backend is not configured").
		WithContext("actor", actorName).
		WithContext("backend", backendName)
	if len(available) > 0 {
		err.WithContext("available_backends", strings.Join(available, ", "))
	}
	return err
}

// -----------------------------------------------------------------------------
// Error Detection Helpers
// -----------------------------------------------------------------------------

func isConnectionRefused(errStr string) bool {
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "connection reset")
}

func isTimeout(errStr string) bool {
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "timed out")
}

func isAuthError(errStr string) bool {
	return strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "status 401") ||
		strings.Contains(errStr, "invalid api key")
}

func isRateLimit(errStr string) bool {
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "status 429") ||
		strings.Contains(errStr, "too many requests")
}

func isModelNotFound(errStr string) bool {
	return strings.Contains(errStr, "model not found") ||
		strings.Contains(errStr, "unknown model") ||
		strings.Contains(errStr, "model does not exist")
}
