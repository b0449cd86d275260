// Package runtime provides live actors built from Wool specifications.
package runtime

import (
	"context"
	"encoding/json"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/wool"
	"github.com/dimits-ts/syndisco/yarn"
)

// Actor binds a spec to a generation backend. It keeps no state between
// calls: everything it knows about the discussion is the history passed to
// Speak. An Actor is owned by one job.
type Actor struct {
	spec    wool.ActorSpec
	name    string
	backend backend.Backend
}

// NewActor creates an actor from spec, filling in default generation
// parameters. spec.Backend defaults to the backend's name.
func NewActor(spec wool.ActorSpec, b backend.Backend) (*Actor, error) {
	spec = spec.WithDefaults()
	if spec.Backend == "" && b != nil {
		spec.Backend = b.Name()
	}
	if err := spec.Validate(); err != nil {
		return nil, derrors.Actor(derrors.ErrActorInvalidSpec, err.Error()).
			WithContext("actor", spec.DisplayName())
	}
	if b == nil {
		return nil, derrors.Actor(derrors.ErrActorInvalidSpec, "actor has no backend").
			WithContext("actor", spec.DisplayName())
	}
	return &Actor{spec: spec, name: spec.DisplayName(), backend: b}, nil
}

// Name returns the name the actor posts under.
func (a *Actor) Name() string { return a.name }

// Role returns the actor role.
func (a *Actor) Role() wool.Role { return a.spec.Role }

// Spec returns the actor's specification with defaults applied.
func (a *Actor) Spec() wool.ActorSpec { return a.spec }

// Backend returns the bound generation backend.
func (a *Actor) Backend() backend.Backend { return a.backend }

// Model returns the configured backend name recorded on the actor's
// messages. Backends with equal settings share one instance, so the
// instance name is not used.
func (a *Actor) Model() string { return a.spec.Backend }

// ContextLength is the number of trailing messages the actor sees.
func (a *Actor) ContextLength() int { return a.spec.ContextLength }

// WithContextLength returns a copy of the actor that sees the last n
// messages. The backend is shared with the original.
func (a *Actor) WithContextLength(n int) *Actor {
	if n <= 0 || n == a.spec.ContextLength {
		return a
	}
	c := *a
	c.spec.ContextLength = n
	return &c
}

// systemPrompt is serialized as the system message.
type systemPrompt struct {
	Context      string        `json:"context"`
	Instructions string        `json:"instructions"`
	Type         wool.Role     `json:"type"`
	Persona      *wool.Persona `json:"persona,omitempty"`
}

// SystemPrompt returns the JSON system message describing the actor.
func (a *Actor) SystemPrompt() string {
	data, err := json.Marshal(systemPrompt{
		Context:      a.spec.Context,
		Instructions: a.spec.Instructions,
		Type:         a.spec.Role,
		Persona:      a.spec.Persona,
	})
	if err != nil {
		return a.spec.Context + "\n" + a.spec.Instructions
	}
	return string(data)
}

// Prompt returns the user message for the given history. Only the last
// ContextLength messages are included.
func (a *Actor) Prompt(history []*yarn.Message) string {
	transcript := FormatHistory(yarn.Window(history, a.spec.ContextLength))
	if a.spec.Role == wool.RoleAnnotator {
		return "Conversation so far:\n\n" + transcript + "\nOutput:"
	}
	return transcript + "\nUser " + a.name + " posted:"
}

// Speak generates one utterance from history and returns it as the message
// with the given ordinal. The returned text has stop sequences cut, the
// deny-list removed and any leading echo of the turn cue stripped; it may be
// empty. Failures are returned as GenerationFailure or GenerationTimeout
// errors, except cancellation of ctx which is returned unchanged. Speak
// never retries.
func (a *Actor) Speak(ctx context.Context, history []*yarn.Message, ordinal int) (*yarn.Message, error) {
	reply, err := backend.Respond(ctx, a.backend, a.SystemPrompt(), a.Prompt(history),
		a.spec.MaxTokens, a.spec.StopSequences)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, generationError(a.name, a.Model(), err)
	}

	text := backend.RemoveDisallowed(reply, a.spec.Disallowed)
	if a.spec.Role.PostsAsSelf() {
		text = stripSelfAttribution(text, a.name)
	}
	return yarn.NewMessage(ordinal, a.name, text).WithModel(a.Model()), nil
}

// Describe returns the actor's profile for logs and exported records.
func (a *Actor) Describe() yarn.ActorProfile {
	p := yarn.ActorProfile{
		Name:         a.name,
		Role:         a.spec.Role.String(),
		Model:        a.Model(),
		Context:      a.spec.Context,
		Instructions: a.spec.Instructions,
	}
	if a.spec.Persona != nil {
		p.Attributes = a.spec.Persona.AttributeList()
	}
	return p
}
