package wool

// ModeratorName is the fixed name of the moderator role.
const ModeratorName = "moderator"

// AnnotatorName is the fixed name of the default annotator.
const AnnotatorName = "annotator"

// DefaultContextLength is the number of recent messages an actor sees.
const DefaultContextLength = 3

// DefaultMaxTokens bounds a single generated utterance.
const DefaultMaxTokens = 300

// DefaultStopSequences end generation before the model starts writing
// another participant's post.
var DefaultStopSequences = []string{"###", "\n\n", "User"}

// ActorSpec defines an actor's identity and generation parameters.
// This is the specification - the runtime creates Actors from these.
type ActorSpec struct {
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Role    Role     `json:"role" yaml:"role"`
	Backend string   `json:"backend" yaml:"backend"` // key into the configured backends
	Persona *Persona `json:"persona,omitempty" yaml:"persona,omitempty"`

	// Context describes the setting of the discussion (e.g. the forum and topic).
	Context string `json:"context" yaml:"context"`
	// Instructions are the role-specific instructions given to the actor.
	Instructions string `json:"instructions" yaml:"instructions"`

	ContextLength int      `json:"context_length,omitempty" yaml:"context_length,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	StopSequences []string `json:"stop_sequences,omitempty" yaml:"stop_sequences,omitempty"`

	// Disallowed strings are removed from every reply.
	Disallowed []string `json:"disallowed,omitempty" yaml:"disallowed,omitempty"`
}

// DisplayName returns the name the actor posts under.
// A persona's username takes precedence over Name.
func (s *ActorSpec) DisplayName() string {
	if s.Persona != nil && s.Persona.Username != "" {
		return s.Persona.Username
	}
	return s.Name
}

// WithDefaults returns a copy with zero generation parameters filled in.
func (s ActorSpec) WithDefaults() ActorSpec {
	if s.ContextLength <= 0 {
		s.ContextLength = DefaultContextLength
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	if s.StopSequences == nil {
		s.StopSequences = append([]string(nil), DefaultStopSequences...)
	}
	return s
}

// Validate checks if the actor specification is valid.
func (s *ActorSpec) Validate() error {
	if s.DisplayName() == "" {
		return &ValidationError{Field: "name", Message: "name or persona username is required"}
	}
	if !s.Role.IsValid() {
		return &ValidationError{Field: "role", Message: "invalid role"}
	}
	if s.Backend == "" {
		return &ValidationError{Field: "backend", Message: "backend is required"}
	}
	if s.ContextLength < 0 {
		return &ValidationError{Field: "context_length", Message: "context_length cannot be negative"}
	}
	if s.MaxTokens < 0 {
		return &ValidationError{Field: "max_tokens", Message: "max_tokens cannot be negative"}
	}
	if s.Persona != nil {
		if err := s.Persona.Validate(); err != nil {
			return &ValidationError{Field: "persona", Message: err.Error()}
		}
	}
	return nil
}

// DefaultModerator returns a neutral moderator bound to backend.
func DefaultModerator(backend string) ActorSpec {
	return ActorSpec{
		Name:    ModeratorName,
		Role:    RoleUser,
		Backend: backend,
		Persona: &Persona{Username: ModeratorName},
		Context: "You are taking part in an online discussion.",
		Instructions: `You are a moderator. Keep the discussion civil and on topic.
Intervene only when a participant is toxic, off topic or not contributing.`,
	}
}

// DefaultAnnotator returns an annotator asked to rate message toxicity.
func DefaultAnnotator(backend string) ActorSpec {
	return ActorSpec{
		Name:    AnnotatorName,
		Role:    RoleAnnotator,
		Backend: backend,
		Persona: &Persona{Username: AnnotatorName},
		Context: "You are a human annotator labeling an online discussion.",
		Instructions: `Rate the toxicity of the last message on a scale from 1 (not toxic) to 5 (very toxic).
Respond with the number only.`,
	}
}
