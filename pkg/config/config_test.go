// Package config tests for configuration loading and structured error handling.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/turn"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syndisco.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// -----------------------------------------------------------------------------
// Load Tests with Structured Errors
// -----------------------------------------------------------------------------

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/to/syndisco.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}

	de, ok := derrors.AsDiscoError(err)
	if !ok {
		t.Fatalf("expected *DiscoError, got %T", err)
	}
	if de.Code != derrors.ErrConfigNotFound {
		t.Errorf("expected code %q, got %q", derrors.ErrConfigNotFound, de.Code)
	}
	if de.Category != derrors.CategoryConfig {
		t.Errorf("expected category %v, got %v", derrors.CategoryConfig, de.Category)
	}

	foundInit := false
	for _, s := range de.Suggestions {
		if strings.Contains(s, "syndisco init") {
			foundInit = true
			break
		}
	}
	if !foundInit {
		t.Error("expected suggestion to mention 'syndisco init'")
	}
}

func TestLoad_YAMLParseError(t *testing.T) {
	path := writeConfig(t, `discussions:
  max_turns: 5
    invalid_indent
`)
	_, err := Load(path)
	if !derrors.HasCode(err, derrors.ErrConfigParseFailed) {
		t.Fatalf("expected %s, got %v", derrors.ErrConfigParseFailed, err)
	}
	de, _ := derrors.AsDiscoError(err)
	if de.Context["path"] != path {
		t.Errorf("expected path context, got %v", de.Context)
	}
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	path := writeConfig(t, `discussions:
  max_turn: 5
`)
	_, err := Load(path)
	if !derrors.HasCode(err, derrors.ErrConfigParseFailed) {
		t.Fatalf("expected unknown key to fail parsing, got %v", err)
	}
	if !strings.Contains(err.Error(), "max_turn") {
		t.Errorf("error should name the unknown key: %v", err)
	}
}

func TestLoad_EmptyFileIsDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discussions.MaxTurns != Default().Discussions.MaxTurns {
		t.Error("empty file should yield defaults")
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `logging:
  level: debug
  encoding: json
backends:
  vllm:
    type: openai
    url: http://gpu-box:8000
    model: qwen2.5-7b
    timeout: 45s
    rate_limit: 2
discussions:
  backend: vllm
  max_turns: 8
  active_users: 2
  count: 3
  concurrency: 2
  turn_taking:
    policy: random-weighted
    respond_probability: 0.7
    on_silence: retry
    max_retries: 3
    backoff: 200ms
  retry:
    max_retries: 1
    initial_delay: 1s
annotations:
  backend: vllm
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	vllm := cfg.Backend("vllm")
	if vllm.Name != "vllm" || vllm.Type != backend.TypeOpenAI || vllm.Timeout != 45*time.Second {
		t.Errorf("vllm backend = %+v", vllm)
	}
	if _, ok := cfg.Backends["local"]; !ok {
		t.Error("default backends should be kept when the file adds new ones")
	}

	d := cfg.Discussions
	if d.MaxTurns != 8 || d.ActiveUsers != 2 || d.Count != 3 || d.Concurrency != 2 {
		t.Errorf("discussions = %+v", d)
	}
	if d.TurnTaking.Policy != "random-weighted" || *d.TurnTaking.RespondProbability != 0.7 {
		t.Errorf("turn_taking = %+v", d.TurnTaking)
	}
	if d.TurnTaking.OnSilence != turn.SilenceRetry || d.TurnTaking.Backoff != 200*time.Millisecond {
		t.Errorf("turn_taking = %+v", d.TurnTaking)
	}
	if d.Retry.MaxRetries != 1 || d.Retry.InitialDelay != time.Second {
		t.Errorf("retry = %+v", d.Retry)
	}
	// Untouched sections keep defaults.
	if d.OutputDir != "output/discussions" {
		t.Errorf("output_dir = %q", d.OutputDir)
	}
}

// -----------------------------------------------------------------------------
// Validation
// -----------------------------------------------------------------------------

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		code   string
		field  string
	}{
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, derrors.ErrConfigInvalid, "logging.level"},
		{"bad encoding", func(c *Config) { c.Logging.Encoding = "xml" }, derrors.ErrConfigInvalid, "logging.encoding"},
		{"backend missing model", func(c *Config) {
			c.Backends["broken"] = backend.Config{Type: backend.TypeOpenAI}
		}, derrors.ErrConfigInvalid, "backends.broken"},
		{"unknown discussion backend", func(c *Config) { c.Discussions.Backend = "gpu" }, derrors.ErrBackendNotFound, "discussions.backend"},
		{"unknown annotation backend", func(c *Config) { c.Annotations.Backend = "gpu" }, derrors.ErrBackendNotFound, "annotations.backend"},
		{"bad policy", func(c *Config) { c.Discussions.TurnTaking.Policy = "chaos" }, derrors.ErrConfigInvalid, "discussions.turn_taking"},
		{"bad probability", func(c *Config) {
			p := 1.5
			c.Discussions.TurnTaking.RespondProbability = &p
		}, derrors.ErrConfigInvalid, "discussions.turn_taking"},
		{"zero turns", func(c *Config) { c.Discussions.MaxTurns = 0 }, derrors.ErrConfigInvalid, "discussions.max_turns"},
		{"zero users", func(c *Config) { c.Discussions.ActiveUsers = 0 }, derrors.ErrConfigInvalid, "discussions.active_users"},
		{"zero concurrency", func(c *Config) { c.Annotations.Concurrency = 0 }, derrors.ErrConfigInvalid, "annotations.concurrency"},
		{"bad persona policy", func(c *Config) { c.Discussions.PersonaPolicy = "loose" }, derrors.ErrConfigInvalid, "discussions.persona_policy"},
		{"bad dialect", func(c *Config) { c.Export.Dialect = "xlsx" }, derrors.ErrConfigInvalid, "export.dialect"},
		{"index without path", func(c *Config) { c.Index.Path = "" }, derrors.ErrConfigInvalid, "index.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !derrors.HasCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
			de, _ := derrors.AsDiscoError(err)
			if de.Context["field"] != tt.field {
				t.Errorf("field = %q, want %q", de.Context["field"], tt.field)
			}
		})
	}
}

func TestValidate_AvailableBackends(t *testing.T) {
	cfg := Default()
	cfg.Discussions.Backend = "gpu"
	de, _ := derrors.AsDiscoError(cfg.Validate())
	if de == nil || de.Context["available_backends"] != "dry, local" {
		t.Errorf("expected available backends in context, got %v", de)
	}
}

// -----------------------------------------------------------------------------
// Defaults, topics and persistence
// -----------------------------------------------------------------------------

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.Discussions.TurnTaking.Policy != turn.KindRoundRobin {
		t.Errorf("default policy = %q", cfg.Discussions.TurnTaking.Policy)
	}
	if cfg.Discussions.TurnTaking.OnSilence != turn.SilenceEnd {
		t.Errorf("default on_silence = %q", cfg.Discussions.TurnTaking.OnSilence)
	}
	if cfg.AnnotationInputDir() != cfg.Discussions.OutputDir {
		t.Error("annotation input should default to the discussion output")
	}
}

func TestNamedBackends(t *testing.T) {
	named := Default().NamedBackends()
	for name, b := range named {
		if b.Name != name {
			t.Errorf("backend %q has Name %q", name, b.Name)
		}
	}
}

func TestLoadTopics(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":   "Remote work is here to stay.\n",
		"b.txt":   "   ",
		".hidden": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	d := DiscussionsConfig{Topics: []string{"inline"}, TopicsDir: dir}
	topics, err := d.LoadTopics()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(topics) != 2 || topics[0] != "inline" || topics[1] != "Remote work is here to stay." {
		t.Errorf("topics = %q", topics)
	}

	d.TopicsDir = filepath.Join(dir, "missing")
	if _, err := d.LoadTopics(); !derrors.HasCode(err, derrors.ErrIOReadFailed) {
		t.Errorf("expected %s, got %v", derrors.ErrIOReadFailed, err)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil || cfg == nil {
		t.Fatalf("empty path: cfg=%v err=%v", cfg, err)
	}
	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || cfg == nil {
		t.Fatalf("missing file: cfg=%v err=%v", cfg, err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "syndisco.yaml")
	orig := Default()
	orig.Discussions.MaxTurns = 42
	if err := orig.Save(path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.Discussions.MaxTurns != 42 {
		t.Errorf("max_turns = %d", loaded.Discussions.MaxTurns)
	}
	if loaded.Backend("local").Timeout != 2*time.Minute {
		t.Errorf("timeout did not round-trip: %v", loaded.Backend("local").Timeout)
	}
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syndisco.yaml")

	created, err := InitConfig(path, false)
	if err != nil || !created {
		t.Fatalf("InitConfig() = %v, %v", created, err)
	}

	if err := os.WriteFile(path, []byte("discussions:\n  max_turns: 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	created, err = InitConfig(path, false)
	if err != nil || created {
		t.Fatalf("existing file should be kept: %v, %v", created, err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "max_turns: 3") {
		t.Error("existing file was overwritten")
	}

	created, err = InitConfig(path, true)
	if err != nil || !created {
		t.Fatalf("force should overwrite: %v, %v", created, err)
	}
}
