package wool

import (
	"reflect"
	"testing"
)

func samplePersona() Persona {
	return Persona{
		Username:                   "Emma35",
		Age:                        38,
		Sex:                        "female",
		SexualOrientation:          "Heterosexual",
		DemographicGroup:           "Latino",
		CurrentEmployment:          "Registered Nurse",
		EducationLevel:             "Bachelor's",
		PersonalityCharacteristics: []string{"compassionate", "patient"},
	}
}

func TestPersonaValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(p *Persona)
		wantField string
	}{
		{"valid", func(p *Persona) {}, ""},
		{"missing username", func(p *Persona) { p.Username = " " }, "username"},
		{"negative age", func(p *Persona) { p.Age = -1 }, "age"},
		{"empty characteristic", func(p *Persona) { p.PersonalityCharacteristics = []string{"ok", ""} }, "personality_characteristics[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePersona()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
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

func TestPersonaAttributeList(t *testing.T) {
	p := samplePersona()
	want := []string{
		"38 years old",
		"Heterosexual",
		"Latino",
		"Registered Nurse",
		"compassionate",
		"patient",
		"woman",
		"with Bachelor's education",
	}
	if got := p.AttributeList(); !reflect.DeepEqual(got, want) {
		t.Errorf("AttributeList() = %v, want %v", got, want)
	}
}

func TestPersonaAttributeList_SkipsEmpty(t *testing.T) {
	p := Persona{Username: "bare"}
	if got := p.AttributeList(); len(got) != 0 {
		t.Errorf("expected no attributes, got %v", got)
	}
	if p.Describe() != "bare" {
		t.Errorf("unexpected description %q", p.Describe())
	}
}

func TestSexLabel(t *testing.T) {
	tests := map[string]string{
		"male":   "man",
		"Female": "woman",
		"other":  "non-binary",
		"":       "non-binary",
		" MALE ": "man",
	}
	for in, want := range tests {
		if got := SexLabel(in); got != want {
			t.Errorf("SexLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPersonaDescribe(t *testing.T) {
	p := samplePersona()
	got := p.Describe()
	want := "Emma35: 38 years old, Heterosexual, Latino, Registered Nurse, compassionate, patient, woman, with Bachelor's education"
	if got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
