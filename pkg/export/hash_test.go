package export

import (
	"testing"

	"github.com/dimits-ts/syndisco/yarn"
)

func baseConfig() yarn.DiscussionConfig {
	return yarn.DiscussionConfig{
		Users: []yarn.ActorProfile{
			{Name: "alice", Role: "user", Model: "llama", Attributes: []string{"30 years old", "woman"}},
			{Name: "bob", Role: "user", Model: "llama"},
		},
		Moderator:     &yarn.ActorProfile{Name: "moderator", Role: "user", Model: "llama"},
		TurnPolicy:    "random_weighted",
		TurnParams:    map[string]float64{"respond_probability": 0.5, "max_retries": 2},
		ContextLength: 4,
		MaxTurns:      10,
		Topic:         "cycling",
		SeedOpinion:   "Cities should ban cars.",
	}
}

// TestConfigHashDeterminism verifies that identical inputs produce the same hash.
func TestConfigHashDeterminism(t *testing.T) {
	h1 := ConfigHash(baseConfig())
	h2 := ConfigHash(baseConfig())
	if h1 != h2 {
		t.Errorf("hash mismatch for identical inputs: %s != %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("expected hash length 64, got %d", len(h1))
	}

	withHash := baseConfig()
	withHash.ConfigHash = h1
	if got := ConfigHash(withHash); got != h1 {
		t.Error("the stored hash must not feed into the hash")
	}
}

// TestConfigHashSensitivity verifies that every generation input changes the hash.
func TestConfigHashSensitivity(t *testing.T) {
	base := ConfigHash(baseConfig())

	tests := []struct {
		name   string
		mutate func(c *yarn.DiscussionConfig)
	}{
		{"turn policy", func(c *yarn.DiscussionConfig) { c.TurnPolicy = "round_robin" }},
		{"turn param", func(c *yarn.DiscussionConfig) { c.TurnParams["respond_probability"] = 0.6 }},
		{"context length", func(c *yarn.DiscussionConfig) { c.ContextLength = 5 }},
		{"max turns", func(c *yarn.DiscussionConfig) { c.MaxTurns = 11 }},
		{"topic", func(c *yarn.DiscussionConfig) { c.Topic = "transit" }},
		{"seed opinion", func(c *yarn.DiscussionConfig) { c.SeedOpinion = "" }},
		{"user order", func(c *yarn.DiscussionConfig) { c.Users[0], c.Users[1] = c.Users[1], c.Users[0] }},
		{"user attributes", func(c *yarn.DiscussionConfig) { c.Users[0].Attributes = []string{"woman"} }},
		{"no moderator", func(c *yarn.DiscussionConfig) { c.Moderator = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mutate(&cfg)
			if ConfigHash(cfg) == base {
				t.Errorf("changing %s should change the hash", tt.name)
			}
		})
	}
}

func TestHashBuilder_OrderIndependent(t *testing.T) {
	a := NewHashBuilder().WithParameter("model", "gpt-4").WithParameter("temperature", "0.7").Build()
	b := NewHashBuilder().WithParameters(map[string]string{"temperature": "0.7", "model": "gpt-4"}).Build()
	if a != b {
		t.Errorf("hash should be order-independent: %s != %s", a, b)
	}

	// Quoting keeps "a=b|" from colliding with a split across keys.
	c := NewHashBuilder().WithParameter("a", "b|c=d").Build()
	d := NewHashBuilder().WithParameter("a", "b").WithParameter("c", "d").Build()
	if c == d {
		t.Error("distinct parameter sets should not collide")
	}
}

func TestShortHash(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"0123456789abcdef", "01234567"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ShortHash(tt.in); got != tt.want {
			t.Errorf("ShortHash(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
