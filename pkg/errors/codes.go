package errors

import "strings"

// -----------------------------------------------------------------------------
// Configuration Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = "CONFIG_NOT_FOUND"

	// ErrConfigParseFailed indicates the configuration file could not be parsed.
	// Usually a YAML syntax error or an unknown key.
	ErrConfigParseFailed = "CONFIG_PARSE_FAILED"

	// ErrConfigInvalid indicates configuration values are invalid.
	ErrConfigInvalid = "CONFIG_INVALID"

	// ErrConfigWriteFailed indicates the config file could not be written.
	ErrConfigWriteFailed = "CONFIG_WRITE_FAILED"
)

// -----------------------------------------------------------------------------
// Backend Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrBackendNotFound indicates the requested backend is not configured.
	ErrBackendNotFound = "BACKEND_NOT_FOUND"

	// ErrBackendAlreadyRegistered indicates a factory for this type already exists.
	ErrBackendAlreadyRegistered = "BACKEND_ALREADY_REGISTERED"

	// ErrBackendUnknownType indicates no factory is registered for a backend type.
	ErrBackendUnknownType = "BACKEND_UNKNOWN_TYPE"

	// ErrBackendConstructionFailed indicates a backend instance could not be built.
	ErrBackendConstructionFailed = "BACKEND_CONSTRUCTION_FAILED"

	// ErrBackendUnavailable indicates the backend is not reachable.
	ErrBackendUnavailable = "BACKEND_UNAVAILABLE"

	// ErrBackendAPIError indicates the backend API returned an error.
	ErrBackendAPIError = "BACKEND_API_ERROR"

	// ErrBackendNotInstalled indicates the backend CLI is not on PATH.
	ErrBackendNotInstalled = "BACKEND_NOT_INSTALLED"
)

// -----------------------------------------------------------------------------
// Actor Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrActorGenerationFailed indicates the generation capability raised an error.
	ErrActorGenerationFailed = "ACTOR_GENERATION_FAILED"

	// ErrActorGenerationTimeout indicates the generation call exceeded its timeout.
	ErrActorGenerationTimeout = "ACTOR_GENERATION_TIMEOUT"

	// ErrActorNotFound indicates no actor is registered under a name.
	ErrActorNotFound = "ACTOR_NOT_FOUND"

	// ErrActorAlreadyExists indicates an actor with this name already exists.
	ErrActorAlreadyExists = "ACTOR_ALREADY_EXISTS"

	// ErrActorInvalidSpec indicates the actor specification is invalid.
	ErrActorInvalidSpec = "ACTOR_INVALID_SPEC"
)

// -----------------------------------------------------------------------------
// Scheduler Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrSchedulerNotConfigured indicates Next was called before SetNames.
	ErrSchedulerNotConfigured = "SCHEDULER_NOT_CONFIGURED"

	// ErrSchedulerNoWillingSpeaker indicates nobody volunteered to speak.
	ErrSchedulerNoWillingSpeaker = "SCHEDULER_NO_WILLING_SPEAKER"

	// ErrSchedulerUnknownPolicy indicates an unrecognized turn policy name.
	ErrSchedulerUnknownPolicy = "SCHEDULER_UNKNOWN_POLICY"

	// ErrSchedulerInvalidProbability indicates a respond probability outside [0, 1].
	ErrSchedulerInvalidProbability = "SCHEDULER_INVALID_PROBABILITY"
)

// -----------------------------------------------------------------------------
// Job Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrJobAlreadyStarted indicates Begin was called twice on the same job.
	ErrJobAlreadyStarted = "JOB_ALREADY_STARTED"

	// ErrJobAllParticipantsFailed indicates every participant was removed after failures.
	ErrJobAllParticipantsFailed = "JOB_ALL_PARTICIPANTS_FAILED"

	// ErrJobAllItemsFailed indicates every annotation item failed.
	ErrJobAllItemsFailed = "JOB_ALL_ITEMS_FAILED"

	// ErrJobInvalid indicates the job options are inconsistent.
	ErrJobInvalid = "JOB_INVALID"

	// ErrJobCanceled indicates the job context was canceled.
	ErrJobCanceled = "JOB_CANCELED"

	// ErrJobBatchFailed indicates every job of a batch ended failed.
	ErrJobBatchFailed = "JOB_BATCH_FAILED"
)

// -----------------------------------------------------------------------------
// Persona Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrPersonaParseFailed indicates a persona file could not be decoded.
	ErrPersonaParseFailed = "PERSONA_PARSE_FAILED"

	// ErrPersonaInvalid indicates a decoded persona failed validation.
	ErrPersonaInvalid = "PERSONA_INVALID"

	// ErrPersonaUnsupportedFormat indicates an unknown persona file extension.
	ErrPersonaUnsupportedFormat = "PERSONA_UNSUPPORTED_FORMAT"
)

// -----------------------------------------------------------------------------
// Validation Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrValidationRequired indicates a required field is missing.
	ErrValidationRequired = "VALIDATION_REQUIRED"

	// ErrValidationInvalidValue indicates a value is invalid.
	ErrValidationInvalidValue = "VALIDATION_INVALID_VALUE"
)

// -----------------------------------------------------------------------------
// I/O Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrIOPersistenceFailed indicates a record could not be persisted.
	ErrIOPersistenceFailed = "IO_PERSISTENCE_FAILED"

	// ErrIOReadFailed indicates a file read operation failed.
	ErrIOReadFailed = "IO_READ_FAILED"

	// ErrIOWriteFailed indicates a file write operation failed.
	ErrIOWriteFailed = "IO_WRITE_FAILED"

	// ErrIOFileNotFound indicates a file was not found.
	ErrIOFileNotFound = "IO_FILE_NOT_FOUND"

	// ErrIOUnmarshalFailed indicates data unmarshaling failed.
	ErrIOUnmarshalFailed = "IO_UNMARSHAL_FAILED"

	// ErrIOIndexFailed indicates the run index database failed.
	ErrIOIndexFailed = "IO_INDEX_FAILED"
)

// -----------------------------------------------------------------------------
// Internal Error Codes
// -----------------------------------------------------------------------------

const (
	// ErrInternalError indicates an unexpected internal error.
	ErrInternalError = "INTERNAL_ERROR"

	// ErrInternalPanic indicates a panic was recovered.
	ErrInternalPanic = "INTERNAL_PANIC"
)

// CodeCategory returns the category a code belongs to, derived from its prefix.
func CodeCategory(code string) Category {
	prefixes := []struct {
		prefix   string
		category Category
	}{
		{"CONFIG_", CategoryConfig},
		{"BACKEND_", CategoryBackend},
		{"ACTOR_", CategoryActor},
		{"SCHEDULER_", CategoryScheduler},
		{"JOB_", CategoryJob},
		{"PERSONA_", CategoryPersona},
		{"VALIDATION_", CategoryValidation},
		{"IO_", CategoryIO},
	}
	for _, p := range prefixes {
		if strings.HasPrefix(code, p.prefix) {
			return p.category
		}
	}
	return CategoryInternal
}
