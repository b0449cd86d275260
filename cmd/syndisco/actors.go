package main

import (
	"errors"
	"os"

	"github.com/dimits-ts/syndisco/pkg/config"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/wool"
)

// userSpecs turns every persona in the discussion persona directory into a
// user bound to the discussion backend.
func userSpecs(d config.DiscussionsConfig) ([]wool.ActorSpec, error) {
	personas, err := wool.PersonaDir{Path: d.PersonaDir, Policy: wool.ParseFieldPolicy(d.PersonaPolicy)}.Load()
	if err != nil {
		return nil, err
	}
	if len(personas) == 0 {
		return nil, derrors.Persona(derrors.ErrPersonaInvalid, "no personas found").
			WithContext("path", d.PersonaDir).
			WithSuggestion("Add one YAML, JSON or TOML persona file per user to discussions.persona_dir")
	}

	specs := make([]wool.ActorSpec, 0, len(personas))
	for _, p := range personas {
		specs = append(specs, wool.ActorSpec{
			Name:          p.Username,
			Role:          wool.RoleUser,
			Backend:       d.Backend,
			Persona:       &p,
			Context:       d.Context,
			Instructions:  d.UserInstructions,
			ContextLength: d.ContextLength,
		})
	}
	return specs, nil
}

// moderatorSpec returns the moderator, or nil when disabled.
func moderatorSpec(d config.DiscussionsConfig) *wool.ActorSpec {
	if !d.IncludeModerator {
		return nil
	}
	b := d.ModeratorBackend
	if b == "" {
		b = d.Backend
	}
	m := wool.DefaultModerator(b)
	if d.Context != "" {
		m.Context = d.Context
	}
	if d.ModeratorInstructions != "" {
		m.Instructions = d.ModeratorInstructions
	}
	m.ContextLength = d.ContextLength
	return &m
}

// annotatorSpecs loads annotator personas, falling back to the default
// annotator when the directory does not exist or is empty.
func annotatorSpecs(c config.AnnotationsConfig) ([]wool.ActorSpec, error) {
	base := wool.DefaultAnnotator(c.Backend)
	if c.Instructions != "" {
		base.Instructions = c.Instructions
	}
	base.ContextLength = c.ContextLength

	var personas []wool.Persona
	if c.PersonaDir != "" {
		var err error
		personas, err = wool.PersonaDir{Path: c.PersonaDir, Policy: wool.Strict}.Load()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if len(personas) == 0 {
		return []wool.ActorSpec{base}, nil
	}

	specs := make([]wool.ActorSpec, 0, len(personas))
	for _, p := range personas {
		s := base
		s.Name = p.Username
		s.Persona = &p
		specs = append(specs, s)
	}
	return specs, nil
}
