package wool

import (
	"reflect"
	"testing"
)

// TestActorSpecValidate tests the Validate method for ActorSpec.
func TestActorSpecValidate(t *testing.T) {
	persona := samplePersona()

	tests := []struct {
		name      string
		spec      ActorSpec
		wantField string
	}{
		{
			name:      "valid user with persona",
			spec:      ActorSpec{Role: RoleUser, Backend: "local", Persona: &persona},
			wantField: "",
		},
		{
			name:      "valid annotator with name only",
			spec:      ActorSpec{Name: "rater", Role: RoleAnnotator, Backend: "local"},
			wantField: "",
		},
		{
			name:      "missing name",
			spec:      ActorSpec{Role: RoleUser, Backend: "local"},
			wantField: "name",
		},
		{
			name:      "invalid role",
			spec:      ActorSpec{Name: "x", Role: "observer", Backend: "local"},
			wantField: "role",
		},
		{
			name:      "missing backend",
			spec:      ActorSpec{Name: "x", Role: RoleUser},
			wantField: "backend",
		},
		{
			name:      "negative context",
			spec:      ActorSpec{Name: "x", Role: RoleUser, Backend: "b", ContextLength: -1},
			wantField: "context_length",
		},
		{
			name:      "negative max tokens",
			spec:      ActorSpec{Name: "x", Role: RoleUser, Backend: "b", MaxTokens: -5},
			wantField: "max_tokens",
		},
		{
			name:      "invalid persona",
			spec:      ActorSpec{Name: "x", Role: RoleUser, Backend: "b", Persona: &Persona{Username: "p", Age: -2}},
			wantField: "persona",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error on field %q", tt.wantField)
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, ve.Field)
			}
		})
	}
}

func TestActorSpecDisplayName(t *testing.T) {
	spec := ActorSpec{Name: "fallback"}
	if spec.DisplayName() != "fallback" {
		t.Errorf("expected fallback name, got %q", spec.DisplayName())
	}
	spec.Persona = &Persona{Username: "Emma35"}
	if spec.DisplayName() != "Emma35" {
		t.Errorf("expected persona username, got %q", spec.DisplayName())
	}
}

func TestActorSpecWithDefaults(t *testing.T) {
	spec := ActorSpec{Name: "x"}.WithDefaults()
	if spec.ContextLength != DefaultContextLength {
		t.Errorf("expected context %d, got %d", DefaultContextLength, spec.ContextLength)
	}
	if spec.MaxTokens != DefaultMaxTokens {
		t.Errorf("expected max tokens %d, got %d", DefaultMaxTokens, spec.MaxTokens)
	}
	if !reflect.DeepEqual(spec.StopSequences, DefaultStopSequences) {
		t.Errorf("expected default stop sequences, got %q", spec.StopSequences)
	}

	// Mutating the copy does not touch the package default.
	spec.StopSequences[0] = "changed"
	if DefaultStopSequences[0] != "###" {
		t.Error("default stop sequences were aliased")
	}

	custom := ActorSpec{ContextLength: 7, MaxTokens: 20, StopSequences: []string{}}.WithDefaults()
	if custom.ContextLength != 7 || custom.MaxTokens != 20 || len(custom.StopSequences) != 0 {
		t.Errorf("explicit values overwritten: %+v", custom)
	}
}

func TestDefaultRoles(t *testing.T) {
	mod := DefaultModerator("local")
	if err := mod.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mod.DisplayName() != ModeratorName {
		t.Errorf("expected %q, got %q", ModeratorName, mod.DisplayName())
	}

	ann := DefaultAnnotator("local")
	if err := ann.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ann.Role != RoleAnnotator {
		t.Errorf("expected annotator role, got %s", ann.Role)
	}
}
