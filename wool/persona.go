package wool

import (
	"fmt"
	"strings"
)

// Persona is the static attribute record of a simulated participant.
// Personas are loaded once and treated as read-only afterwards.
type Persona struct {
	Username                   string   `json:"username" yaml:"username" toml:"username"`
	Age                        int      `json:"age" yaml:"age" toml:"age"`
	Sex                        string   `json:"sex" yaml:"sex" toml:"sex"`
	SexualOrientation          string   `json:"sexual_orientation" yaml:"sexual_orientation" toml:"sexual_orientation"`
	DemographicGroup           string   `json:"demographic_group" yaml:"demographic_group" toml:"demographic_group"`
	CurrentEmployment          string   `json:"current_employment" yaml:"current_employment" toml:"current_employment"`
	EducationLevel             string   `json:"education_level" yaml:"education_level" toml:"education_level"`
	PersonalityCharacteristics []string `json:"personality_characteristics" yaml:"personality_characteristics" toml:"personality_characteristics"`
	SpecialInstructions        string   `json:"special_instructions,omitempty" yaml:"special_instructions,omitempty" toml:"special_instructions,omitempty"`
}

// Validate checks the required persona fields.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.Username) == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if p.Age < 0 {
		return &ValidationError{Field: "age", Message: "age cannot be negative"}
	}
	for i, c := range p.PersonalityCharacteristics {
		if strings.TrimSpace(c) == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("personality_characteristics[%d]", i),
				Message: "characteristic cannot be empty",
			}
		}
	}
	return nil
}

// AttributeList turns the persona into prompt-friendly attribute phrases.
// Empty attributes are skipped.
func (p *Persona) AttributeList() []string {
	var attrs []string
	add := func(s string) {
		if strings.TrimSpace(s) != "" {
			attrs = append(attrs, s)
		}
	}
	if p.Age > 0 {
		add(fmt.Sprintf("%d years old", p.Age))
	}
	add(p.SexualOrientation)
	add(p.DemographicGroup)
	add(p.CurrentEmployment)
	for _, c := range p.PersonalityCharacteristics {
		add(c)
	}
	if p.Sex != "" {
		add(SexLabel(p.Sex))
	}
	if p.EducationLevel != "" {
		add("with " + p.EducationLevel + " education")
	}
	return attrs
}

// SexLabel maps a sex attribute to its prompt equivalent.
func SexLabel(sex string) string {
	switch strings.ToLower(strings.TrimSpace(sex)) {
	case "male":
		return "man"
	case "female":
		return "woman"
	default:
		return "non-binary"
	}
}

// Describe returns a one-line summary used in logs and exports.
func (p *Persona) Describe() string {
	attrs := p.AttributeList()
	if len(attrs) == 0 {
		return p.Username
	}
	return p.Username + ": " + strings.Join(attrs, ", ")
}

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
