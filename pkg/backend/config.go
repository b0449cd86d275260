package backend

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config is the declarative description of a backend instance.
type Config struct {
	Name        string        `yaml:"name" json:"name"`
	Type        Type          `yaml:"type" json:"type"`
	URL         string        `yaml:"url,omitempty" json:"url,omitempty"`
	Model       string        `yaml:"model,omitempty" json:"model,omitempty"`
	APIKeyEnv   string        `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
	Command     string        `yaml:"command,omitempty" json:"command,omitempty"`
	Args        []string      `yaml:"args,omitempty" json:"args,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxTokens   int           `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature float64       `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// Disallowed strings are stripped from every reply of this backend.
	Disallowed []string `yaml:"disallowed,omitempty" json:"disallowed,omitempty"`
	// Serialize allows one in-flight request at a time (e.g. a single GPU worker).
	Serialize bool `yaml:"serialize,omitempty" json:"serialize,omitempty"`
	// RateLimit caps requests per second. Zero disables the limiter.
	RateLimit float64 `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
	Burst     int     `yaml:"burst,omitempty" json:"burst,omitempty"`

	// Replies feed the scripted backend.
	Replies []string `yaml:"replies,omitempty" json:"replies,omitempty"`
}

// Key returns the identity of the configuration for the Cache.
// Name is a label only: two names with the same settings share an instance.
func (c Config) Key() string {
	k := c
	k.Name = ""
	data, err := json.Marshal(k)
	if err != nil {
		// NaN temperatures do not encode.
		return fmt.Sprintf("%+v", k)
	}
	return string(data)
}

// Validate checks type-specific required fields.
func (c Config) Validate() error {
	switch c.Type {
	case TypeOpenAI:
		if c.Model == "" {
			return fmt.Errorf("backend %q: model is required for type openai", c.Name)
		}
	case TypeCommand:
		if c.Command == "" {
			return fmt.Errorf("backend %q: command is required for type command", c.Name)
		}
	case TypeScripted, TypeFailing:
	default:
		return fmt.Errorf("backend %q: unknown type %q", c.Name, c.Type)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("backend %q: timeout cannot be negative", c.Name)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("backend %q: rate_limit cannot be negative", c.Name)
	}
	return nil
}
