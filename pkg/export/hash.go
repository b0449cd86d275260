// Package export turns persisted discussion and annotation records into
// tabular datasets, and computes the configuration hash stamped into every
// discussion.
package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dimits-ts/syndisco/yarn"
)

// HashAlgorithm identifies the hashing algorithm used for configuration hashes.
const HashAlgorithm = "SHA-256"

// HashBuilder collects configuration parameters into a canonical form.
type HashBuilder struct {
	params map[string]string
}

// NewHashBuilder creates an empty HashBuilder.
func NewHashBuilder() *HashBuilder {
	return &HashBuilder{params: make(map[string]string)}
}

// WithParameter adds a configuration parameter.
// Parameters are sorted by key during hashing for determinism.
func (hb *HashBuilder) WithParameter(key, value string) *HashBuilder {
	hb.params[key] = value
	return hb
}

// WithParameters adds multiple configuration parameters.
func (hb *HashBuilder) WithParameters(params map[string]string) *HashBuilder {
	for k, v := range params {
		hb.params[k] = v
	}
	return hb
}

// Build returns the hex-encoded SHA-256 of the sorted parameters.
func (hb *HashBuilder) Build() string {
	keys := make([]string, 0, len(hb.params))
	for k := range hb.params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(strconv.Quote(hb.params[k]))
		sb.WriteString("|")
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// ConfigHash returns the reproducibility signature of a discussion
// configuration. The hash covers everything that shapes generation (actor
// profiles, turn policy and its parameters, limits, topic and seed) and
// ignores the ConfigHash field itself. User order matters; the key order of
// TurnParams does not.
func ConfigHash(cfg yarn.DiscussionConfig) string {
	hb := NewHashBuilder().
		WithParameter("turn_policy", cfg.TurnPolicy).
		WithParameter("context_length", strconv.Itoa(cfg.ContextLength)).
		WithParameter("max_turns", strconv.Itoa(cfg.MaxTurns)).
		WithParameter("topic", cfg.Topic).
		WithParameter("seed_opinion", cfg.SeedOpinion).
		WithParameter("seed_opinion_user", cfg.SeedOpinionUser)

	for k, v := range cfg.TurnParams {
		hb.WithParameter("turn_params."+k, strconv.FormatFloat(v, 'g', -1, 64))
	}
	for i, u := range cfg.Users {
		addProfile(hb, fmt.Sprintf("users[%d]", i), u)
	}
	if cfg.Moderator != nil {
		addProfile(hb, "moderator", *cfg.Moderator)
	}
	return hb.Build()
}

func addProfile(hb *HashBuilder, prefix string, p yarn.ActorProfile) {
	hb.WithParameter(prefix+".name", p.Name).
		WithParameter(prefix+".role", p.Role).
		WithParameter(prefix+".model", p.Model).
		WithParameter(prefix+".context", p.Context).
		WithParameter(prefix+".instructions", p.Instructions).
		WithParameter(prefix+".attributes", strings.Join(p.Attributes, "\x1f"))
}

// ShortHash returns the first 8 characters of hash.
func ShortHash(hash string) string {
	if len(hash) >= 8 {
		return hash[:8]
	}
	return hash
}
