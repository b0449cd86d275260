package wool

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

// FieldPolicy decides what happens to fields a persona file declares but
// Persona does not know.
type FieldPolicy int

const (
	// Strict rejects unknown fields.
	Strict FieldPolicy = iota
	// Lenient ignores unknown fields.
	Lenient
)

// String returns the policy name.
func (p FieldPolicy) String() string {
	if p == Lenient {
		return "lenient"
	}
	return "strict"
}

// ParseFieldPolicy maps "strict"/"lenient" to a policy. Anything else is Strict.
func ParseFieldPolicy(s string) FieldPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "lenient") {
		return Lenient
	}
	return Strict
}

// IsPersonaFile reports whether path has a supported persona extension.
func IsPersonaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml", ".toml":
		return true
	}
	return false
}

// DecodePersona decodes a persona in the given format ("json", "yaml", "toml").
func DecodePersona(r io.Reader, format string, policy FieldPolicy) (Persona, error) {
	var p Persona
	var err error

	switch format {
	case "json":
		dec := json.NewDecoder(r)
		if policy == Strict {
			dec.DisallowUnknownFields()
		}
		err = dec.Decode(&p)
	case "yaml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(policy == Strict)
		err = dec.Decode(&p)
	case "toml":
		dec := toml.NewDecoder(r)
		if policy == Strict {
			dec.DisallowUnknownFields()
		}
		err = dec.Decode(&p)
	default:
		return Persona{}, derrors.Persona(derrors.ErrPersonaUnsupportedFormat, "unsupported persona format").
			WithContext("format", format)
	}
	if err != nil {
		return Persona{}, derrors.PersonaWrap(err, derrors.ErrPersonaParseFailed, "failed to decode persona").
			WithContext("format", format).
			WithContext("policy", policy.String())
	}
	if err := p.Validate(); err != nil {
		return Persona{}, derrors.PersonaWrap(err, derrors.ErrPersonaInvalid, "invalid persona")
	}
	return p, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	}
	return strings.TrimPrefix(filepath.Ext(path), ".")
}

// LoadPersona reads a single persona file. The format follows the extension.
func LoadPersona(path string, policy FieldPolicy) (Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := derrors.ErrIOReadFailed
		if errors.Is(err, os.ErrNotExist) {
			code = derrors.ErrIOFileNotFound
		}
		return Persona{}, derrors.IOWrap(err, code, "failed to read persona file").
			WithContext("path", path)
	}
	p, err := DecodePersona(bytes.NewReader(data), formatFromExt(path), policy)
	if err != nil {
		if de, ok := derrors.AsDiscoError(err); ok {
			de.WithContext("path", path)
		}
		return Persona{}, err
	}
	return p, nil
}

// SavePersona writes p to path in the format given by its extension.
func SavePersona(path string, p Persona) error {
	var data []byte
	var err error

	switch formatFromExt(path) {
	case "json":
		data, err = json.MarshalIndent(p, "", "    ")
	case "yaml":
		data, err = yaml.Marshal(&p)
	case "toml":
		data, err = toml.Marshal(p)
	default:
		return derrors.Persona(derrors.ErrPersonaUnsupportedFormat, "unsupported persona format").
			WithContext("path", path)
	}
	if err != nil {
		return derrors.PersonaWrap(err, derrors.ErrPersonaParseFailed, "failed to encode persona")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return derrors.IOWrap(err, derrors.ErrIOWriteFailed, "failed to create persona directory").
			WithContext("path", path)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return derrors.IOWrap(err, derrors.ErrIOWriteFailed, "failed to write persona file").
			WithContext("path", path)
	}
	return nil
}

// PersonaDir is a lazily read directory of one-persona-per-file inputs.
// Every call to All lists the directory again, so the sequence is restartable.
type PersonaDir struct {
	Path   string
	Policy FieldPolicy
}

// All yields personas in file name order. Files with unsupported extensions
// are skipped. A decode error is yielded with an empty Persona and iteration
// continues unless the consumer stops.
func (d PersonaDir) All() iter.Seq2[Persona, error] {
	return func(yield func(Persona, error) bool) {
		entries, err := os.ReadDir(d.Path)
		if err != nil {
			yield(Persona{}, derrors.IOWrap(err, derrors.ErrIOReadFailed, "failed to list persona directory").
				WithContext("path", d.Path))
			return
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !IsPersonaFile(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			p, err := LoadPersona(filepath.Join(d.Path, name), d.Policy)
			if !yield(p, err) {
				return
			}
		}
	}
}

// Load reads every persona, stopping at the first error. Usernames must be unique.
func (d PersonaDir) Load() ([]Persona, error) {
	var out []Persona
	seen := make(map[string]bool)
	for p, err := range d.All() {
		if err != nil {
			return nil, err
		}
		if seen[p.Username] {
			return nil, derrors.Persona(derrors.ErrPersonaInvalid, "duplicate persona username").
				WithContext("username", p.Username).
				WithContext("path", d.Path)
		}
		seen[p.Username] = true
		out = append(out, p)
	}
	return out, nil
}
