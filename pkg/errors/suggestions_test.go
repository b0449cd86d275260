package errors

import (
	"reflect"
	"testing"
)

func TestRegistry_GetOrdersByPriority(t *testing.T) {
	r := NewRegistry()
	r.Register("CODE", "generic")
	r.RegisterSuggestion("CODE", Suggestion{Text: "urgent", Priority: 50})

	got := r.Get("CODE", nil)
	want := []string{"urgent", "generic"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestRegistry_Conditions(t *testing.T) {
	r := NewRegistry()
	r.RegisterWithCondition("CODE", "openai only", map[string]string{ContextBackend: "openai"})
	r.Register("CODE", "always")

	tests := []struct {
		name string
		ctx  map[string]string
		want []string
	}{
		{"matching", map[string]string{ContextBackend: "openai"}, []string{"openai only", "always"}},
		{"not matching", map[string]string{ContextBackend: "command"}, []string{"always"}},
		{"empty context", nil, []string{"always"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Get("CODE", tt.ctx); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRegistry_HasSuggestions(t *testing.T) {
	r := NewRegistry()
	if r.HasSuggestions("NONE") {
		t.Error("expected no suggestions")
	}
	r.Register("SOME", "x")
	if !r.HasSuggestions("SOME") {
		t.Error("expected suggestions")
	}
}

func TestDefaultRegistry_CoversTaxonomy(t *testing.T) {
	codes := []string{
		ErrSchedulerNotConfigured,
		ErrActorGenerationFailed,
		ErrActorGenerationTimeout,
		ErrIOPersistenceFailed,
		ErrSchedulerNoWillingSpeaker,
	}
	for _, code := range codes {
		if !DefaultRegistry().HasSuggestions(code) {
			t.Errorf("expected default suggestions for %s", code)
		}
	}
}

func TestAttachSuggestions_UsesContext(t *testing.T) {
	de := New(ErrSchedulerNoWillingSpeaker, CategoryScheduler, "silence").
		WithContext(ContextPolicy, "random_weighted")
	AttachSuggestions(de)
	if len(de.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %v", de.Suggestions)
	}
	if AttachSuggestions(nil) != nil {
		t.Error("expected nil passthrough")
	}
}
