// Package config handles syndisco configuration loading.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/export"
	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/pkg/turn"
	"github.com/dimits-ts/syndisco/wool"
)

// Config is the root configuration structure.
type Config struct {
	Logging     LoggingConfig             `yaml:"logging"`
	Backends    map[string]backend.Config `yaml:"backends"`
	Discussions DiscussionsConfig         `yaml:"discussions"`
	Annotations AnnotationsConfig         `yaml:"annotations"`
	Export      ExportConfig              `yaml:"export"`
	Index       IndexConfig               `yaml:"index"`
	Server      ServerConfig              `yaml:"server"`
}

// LoggingConfig holds zap logger settings.
type LoggingConfig struct {
	Level       string   `yaml:"level"`    // debug, info, warn, error
	Encoding    string   `yaml:"encoding"` // console or json
	OutputPaths []string `yaml:"output_paths"`
	Development bool     `yaml:"development"`
}

// DiscussionsConfig describes a batch of synthetic discussions.
type DiscussionsConfig struct {
	// Backend is the backend every user is bound to.
	Backend string `yaml:"backend"`

	// Topics seed the discussions. Each file in TopicsDir adds one topic.
	Topics    []string `yaml:"topics"`
	TopicsDir string   `yaml:"topics_dir"`

	PersonaDir    string `yaml:"persona_dir"`
	PersonaPolicy string `yaml:"persona_policy"` // strict or lenient

	Context          string `yaml:"context"`
	UserInstructions string `yaml:"user_instructions"`

	IncludeModerator      bool   `yaml:"include_moderator"`
	ModeratorBackend      string `yaml:"moderator_backend"`
	ModeratorInstructions string `yaml:"moderator_instructions"`

	TurnTaking       turn.Config     `yaml:"turn_taking"`
	ContextLength    int             `yaml:"context_length"`
	MaxTurns         int             `yaml:"max_turns"`
	ActiveUsers      int             `yaml:"active_users"`
	Count            int             `yaml:"count"`
	Concurrency      int             `yaml:"concurrency"`
	TerminationWords []string        `yaml:"termination_words"`
	Retry            job.RetryPolicy `yaml:"retry"`

	// Seed fixes topic and participant sampling. Zero picks a random seed.
	Seed      uint64 `yaml:"seed"`
	OutputDir string `yaml:"output_dir"`
}

// AnnotationsConfig describes an annotation pass over a discussion directory.
type AnnotationsConfig struct {
	Backend          string          `yaml:"backend"`
	PersonaDir       string          `yaml:"persona_dir"`
	Instructions     string          `yaml:"instructions"`
	ContextLength    int             `yaml:"context_length"`
	IncludeModerator bool            `yaml:"include_moderator"`
	Concurrency      int             `yaml:"concurrency"`
	Retry            job.RetryPolicy `yaml:"retry"`
	// InputDir defaults to discussions.output_dir.
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
}

// ExportConfig holds dataset export settings.
type ExportConfig struct {
	Path              string `yaml:"path"`
	AnnotationsPath   string `yaml:"annotations_path"`
	Dialect           string `yaml:"dialect"`
	IncludeAttributes bool   `yaml:"include_attributes"`
}

// IndexConfig holds the SQLite run index settings.
type IndexConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig holds the live server settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

const defaultUserInstructions = `You are a user in an online discussion forum.
Write a single short comment in the voice of your persona. Do not repeat previous comments.`

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "console",
			OutputPaths: []string{"stderr"},
		},
		Backends: map[string]backend.Config{
			"local": {
				Type:      backend.TypeOpenAI,
				URL:       "http://localhost:8080",
				Model:     "llama-3.1-8b-instruct",
				Timeout:   2 * time.Minute,
				Serialize: true,
			},
			"dry": {
				Type:    backend.TypeScripted,
				Replies: []string{"I see your point.", "I am not convinced.", "That depends on the city."},
			},
		},
		Discussions: DiscussionsConfig{
			Backend:          "local",
			Topics:           []string{"Cities should ban private cars from their centers."},
			PersonaDir:       "data/personas",
			PersonaPolicy:    wool.Strict.String(),
			Context:          "You are taking part in an online discussion forum.",
			UserInstructions: defaultUserInstructions,
			IncludeModerator: true,
			TurnTaking: turn.Config{
				Policy:    turn.KindRoundRobin,
				OnSilence: turn.SilenceEnd,
			},
			ContextLength: wool.DefaultContextLength,
			MaxTurns:      10,
			ActiveUsers:   3,
			Count:         5,
			Concurrency:   1,
			OutputDir:     "output/discussions",
		},
		Annotations: AnnotationsConfig{
			Backend:       "local",
			PersonaDir:    "data/annotators",
			ContextLength: wool.DefaultContextLength,
			Concurrency:   1,
			OutputDir:     "output/annotations",
		},
		Export: ExportConfig{
			Path:            "output/dataset.csv",
			AnnotationsPath: "output/annotations.csv",
			Dialect:         string(export.DialectStandard),
		},
		Index: IndexConfig{
			Enabled: true,
			Path:    "output/runs.db",
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8090",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// Load loads configuration from a file on top of Default. Unknown keys are
// rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, derrors.ConfigWrap(err, derrors.ErrConfigNotFound, "configuration file not found").
				WithContext("path", path)
		}
		return nil, derrors.ConfigWrap(err, derrors.ErrConfigParseFailed, "failed to read config").
			WithContext("path", path)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, derrors.ConfigWrap(err, derrors.ErrConfigParseFailed, "failed to parse config").
			WithContext("path", path)
	}

	if err := cfg.Validate(); err != nil {
		if de, ok := derrors.AsDiscoError(err); ok {
			de.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

func invalid(field, message string) error {
	return derrors.Config(derrors.ErrConfigInvalid, message).WithContext("field", field)
}

// Validate checks the configuration for values that would fail at run time.
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return invalid("logging.level", fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}
	if c.Logging.Encoding != "console" && c.Logging.Encoding != "json" {
		return invalid("logging.encoding", fmt.Sprintf("encoding must be console or json, got %q", c.Logging.Encoding))
	}

	for _, name := range c.BackendNames() {
		cfg := c.Backend(name)
		if err := cfg.Validate(); err != nil {
			return invalid("backends."+name, err.Error())
		}
	}

	d := c.Discussions
	if err := c.checkBackendRef("discussions.backend", d.Backend); err != nil {
		return err
	}
	if d.IncludeModerator && d.ModeratorBackend != "" {
		if err := c.checkBackendRef("discussions.moderator_backend", d.ModeratorBackend); err != nil {
			return err
		}
	}
	if err := d.TurnTaking.Validate(); err != nil {
		return invalid("discussions.turn_taking", err.Error())
	}
	if d.PersonaPolicy != "" && d.PersonaPolicy != wool.Strict.String() && d.PersonaPolicy != wool.Lenient.String() {
		return invalid("discussions.persona_policy", fmt.Sprintf("persona_policy must be strict or lenient, got %q", d.PersonaPolicy))
	}
	switch {
	case d.MaxTurns <= 0:
		return invalid("discussions.max_turns", "max_turns must be positive")
	case d.ActiveUsers <= 0:
		return invalid("discussions.active_users", "active_users must be positive")
	case d.Count < 0:
		return invalid("discussions.count", "count cannot be negative")
	case d.Concurrency <= 0:
		return invalid("discussions.concurrency", "concurrency must be positive")
	case d.ContextLength < 0:
		return invalid("discussions.context_length", "context_length cannot be negative")
	case d.Retry.MaxRetries < 0:
		return invalid("discussions.retry.max_retries", "max_retries cannot be negative")
	}

	a := c.Annotations
	if err := c.checkBackendRef("annotations.backend", a.Backend); err != nil {
		return err
	}
	switch {
	case a.Concurrency <= 0:
		return invalid("annotations.concurrency", "concurrency must be positive")
	case a.ContextLength < 0:
		return invalid("annotations.context_length", "context_length cannot be negative")
	case a.Retry.MaxRetries < 0:
		return invalid("annotations.retry.max_retries", "max_retries cannot be negative")
	}

	if _, err := export.ParseDialect(c.Export.Dialect); err != nil {
		return invalid("export.dialect", err.Error())
	}
	if c.Index.Enabled && c.Index.Path == "" {
		return invalid("index.path", "index.path is required when the index is enabled")
	}
	return nil
}

func (c *Config) checkBackendRef(field, name string) error {
	if _, ok := c.Backends[name]; ok {
		return nil
	}
	return derrors.Config(derrors.ErrBackendNotFound, fmt.Sprintf("backend %q is not declared", name)).
		WithContext("field", field).
		WithContext("available_backends", strings.Join(c.BackendNames(), ", "))
}

// BackendNames returns the declared backend names, sorted.
func (c *Config) BackendNames() []string {
	names := make([]string, 0, len(c.Backends))
	for name := range c.Backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Backend returns the named backend config with its Name filled in.
func (c *Config) Backend(name string) backend.Config {
	cfg := c.Backends[name]
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cfg
}

// NamedBackends returns every backend config keyed by name, with Name filled in.
func (c *Config) NamedBackends() map[string]backend.Config {
	out := make(map[string]backend.Config, len(c.Backends))
	for name := range c.Backends {
		out[name] = c.Backend(name)
	}
	return out
}

// AnnotationInputDir returns the directory annotations read discussions from.
func (c *Config) AnnotationInputDir() string {
	if c.Annotations.InputDir != "" {
		return c.Annotations.InputDir
	}
	return c.Discussions.OutputDir
}

// LoadTopics returns the configured topics plus one topic per regular file
// in TopicsDir, in file name order.
func (d DiscussionsConfig) LoadTopics() ([]string, error) {
	topics := append([]string(nil), d.Topics...)
	if d.TopicsDir == "" {
		return topics, nil
	}
	entries, err := os.ReadDir(d.TopicsDir)
	if err != nil {
		return nil, derrors.IOWrap(err, derrors.ErrIOReadFailed, "failed to read topics directory").
			WithContext("path", d.TopicsDir)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(d.TopicsDir, e.Name()))
		if err != nil {
			return nil, derrors.IOWrap(err, derrors.ErrIOReadFailed, "failed to read topic").
				WithContext("path", filepath.Join(d.TopicsDir, e.Name()))
		}
		if t := strings.TrimSpace(string(data)); t != "" {
			topics = append(topics, t)
		}
	}
	return topics, nil
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return derrors.ConfigWrap(err, derrors.ErrConfigWriteFailed, "failed to create config directory").
			WithContext("path", dir)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return derrors.ConfigWrap(err, derrors.ErrConfigWriteFailed, "failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return derrors.ConfigWrap(err, derrors.ErrConfigWriteFailed, "failed to write config file").
			WithContext("path", path)
	}
	return nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// First check for config in current working directory
	if _, err := os.Stat("syndisco.yaml"); err == nil {
		return "syndisco.yaml"
	}
	// Then check for config/ subdirectory
	if _, err := os.Stat("config/syndisco.yaml"); err == nil {
		return "config/syndisco.yaml"
	}
	return "syndisco.yaml"
}

// InitConfig creates a default config file. An existing file is kept
// unless force is set.
func InitConfig(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	return true, Default().Save(path)
}
