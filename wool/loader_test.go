package wool

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const personaJSON = `{
  "username": "Emma35",
  "age": 38,
  "sex": "female",
  "sexual_orientation": "Heterosexual",
  "demographic_group": "Latino",
  "current_employment": "Registered Nurse",
  "education_level": "Bachelor's",
  "personality_characteristics": ["compassionate", "patient"]
}`

const personaYAML = `username: Giannis
age: 21
sex: male
education_level: High school
personality_characteristics:
  - impulsive
`

const personaTOML = `username = "Sara"
age = 54
sex = "female"
personality_characteristics = ["calm"]
`

func TestLoadPersona_Formats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		file     string
		content  string
		username string
	}{
		{"emma.json", personaJSON, "Emma35"},
		{"giannis.yaml", personaYAML, "Giannis"},
		{"giannis.yml", personaYAML, "Giannis"},
		{"sara.toml", personaTOML, "Sara"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			path := writeFile(t, dir, tt.file, tt.content)
			p, err := LoadPersona(path, Strict)
			require.NoError(t, err)
			assert.Equal(t, tt.username, p.Username)
		})
	}
}

func TestLoadPersona_FieldPolicy(t *testing.T) {
	dir := t.TempDir()
	withExtra := strings.Replace(personaJSON, `"age": 38,`, `"age": 38, "intent": "troll",`, 1)
	path := writeFile(t, dir, "extra.json", withExtra)

	_, err := LoadPersona(path, Strict)
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.ErrPersonaParseFailed))

	p, err := LoadPersona(path, Lenient)
	require.NoError(t, err)
	assert.Equal(t, 38, p.Age)

	yamlPath := writeFile(t, dir, "extra.yaml", personaYAML+"intent: troll\n")
	_, err = LoadPersona(yamlPath, Strict)
	assert.True(t, derrors.HasCode(err, derrors.ErrPersonaParseFailed))
	_, err = LoadPersona(yamlPath, Lenient)
	assert.NoError(t, err)

	tomlPath := writeFile(t, dir, "extra.toml", personaTOML+"intent = \"troll\"\n")
	_, err = LoadPersona(tomlPath, Strict)
	assert.True(t, derrors.HasCode(err, derrors.ErrPersonaParseFailed))
	_, err = LoadPersona(tomlPath, Lenient)
	assert.NoError(t, err)
}

func TestLoadPersona_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadPersona(filepath.Join(dir, "missing.json"), Strict)
	assert.True(t, derrors.HasCode(err, derrors.ErrIOFileNotFound))

	path := writeFile(t, dir, "p.txt", "username: x")
	_, err = LoadPersona(path, Strict)
	assert.True(t, derrors.HasCode(err, derrors.ErrPersonaUnsupportedFormat))

	path = writeFile(t, dir, "nameless.json", `{"age": 3}`)
	_, err = LoadPersona(path, Strict)
	assert.True(t, derrors.HasCode(err, derrors.ErrPersonaInvalid))
}

func TestSavePersona_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := samplePersona()
	p.SpecialInstructions = "Never use emojis"

	for _, ext := range []string{"json", "yaml", "toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "nested", "emma."+ext)
			require.NoError(t, SavePersona(path, p))
			got, err := LoadPersona(path, Strict)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestPersonaDir_AllIsLazyAndRestartable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", personaJSON)
	writeFile(t, dir, "a.yaml", personaYAML)
	writeFile(t, dir, "README.md", "not a persona")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0755))

	d := PersonaDir{Path: dir, Policy: Strict}

	var first []string
	for p, err := range d.All() {
		require.NoError(t, err)
		first = append(first, p.Username)
	}
	assert.Equal(t, []string{"Giannis", "Emma35"}, first)

	// Early stop does not break a later full pass.
	for range d.All() {
		break
	}
	all, err := d.Load()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Files added between passes are picked up.
	writeFile(t, dir, "c.toml", personaTOML)
	all, err = d.Load()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPersonaDir_LoadDuplicate(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", personaJSON)
	writeFile(t, dir, "b.json", personaJSON)

	_, err := PersonaDir{Path: dir}.Load()
	assert.True(t, derrors.HasCode(err, derrors.ErrPersonaInvalid))
}

func TestPersonaDir_MissingDirectory(t *testing.T) {
	_, err := PersonaDir{Path: filepath.Join(t.TempDir(), "nope")}.Load()
	assert.True(t, derrors.HasCode(err, derrors.ErrIOReadFailed))
}

func TestParseFieldPolicy(t *testing.T) {
	assert.Equal(t, Lenient, ParseFieldPolicy("Lenient"))
	assert.Equal(t, Strict, ParseFieldPolicy("strict"))
	assert.Equal(t, Strict, ParseFieldPolicy("whatever"))
}
