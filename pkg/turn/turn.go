// Package turn selects who speaks next in a discussion.
//
// A Manager only knows participant names. Moderator interjections are
// scheduled by the discussion job, so the moderator is normally passed to
// Exclude and never chosen here.
package turn

import (
	"context"
	"fmt"
	"strings"
	"time"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/yarn"
)

// End is returned by Next when the discussion should stop.
const End = ""

// Kind identifies a turn policy.
type Kind string

const (
	KindRoundRobin     Kind = "round_robin"
	KindRandomWeighted Kind = "random_weighted"
)

// ParseKind parses a policy name. Hyphens and case are ignored.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	switch k {
	case KindRoundRobin, KindRandomWeighted:
		return k, nil
	}
	return "", derrors.Scheduler(derrors.ErrSchedulerUnknownPolicy, fmt.Sprintf("unknown turn policy %q", s)).
		WithContext(derrors.ContextPolicy, s)
}

// Manager is the scheduler capability shared by all policies.
type Manager interface {
	Kind() Kind
	// SetNames registers participants in rotation order.
	SetNames(names []string)
	// Exclude keeps names out of normal rotation.
	Exclude(names ...string)
	// Next returns the next speaker among active, or End.
	Next(ctx context.Context, history []*yarn.Message, active []string) (string, error)
	// Params reports the policy parameters for the discussion record.
	Params() map[string]float64
}

// OnSilence decides what RandomWeighted does when nobody is willing to speak.
type OnSilence string

const (
	SilenceEnd   OnSilence = "end"
	SilenceRetry OnSilence = "retry"
)

// Config is the declarative form of a turn policy.
type Config struct {
	Policy Kind `yaml:"policy" json:"policy"`

	// RespondProbability overrides DefaultRespondProbability when set.
	RespondProbability *float64           `yaml:"respond_probability,omitempty" json:"respond_probability,omitempty"`
	Probabilities      map[string]float64 `yaml:"probabilities,omitempty" json:"probabilities,omitempty"`
	OnSilence          OnSilence          `yaml:"on_silence,omitempty" json:"on_silence,omitempty"`
	MaxRetries         int                `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	Backoff            time.Duration      `yaml:"backoff,omitempty" json:"backoff,omitempty"`
	MaxBackoff         time.Duration      `yaml:"max_backoff,omitempty" json:"max_backoff,omitempty"`
	// Seed fixes the random source. Zero seeds from the runtime.
	Seed uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Validate checks the policy name and probabilities.
func (c Config) Validate() error {
	if _, err := ParseKind(string(c.Policy)); err != nil {
		return err
	}
	if c.RespondProbability != nil {
		if err := checkProbability("default", *c.RespondProbability); err != nil {
			return err
		}
	}
	for name, p := range c.Probabilities {
		if err := checkProbability(name, p); err != nil {
			return err
		}
	}
	switch c.OnSilence {
	case "", SilenceEnd, SilenceRetry:
	default:
		return derrors.Validation(derrors.ErrValidationInvalidValue, fmt.Sprintf("on_silence must be %q or %q", SilenceEnd, SilenceRetry)).
			WithContext("on_silence", string(c.OnSilence))
	}
	if c.MaxRetries < 0 {
		return derrors.Validation(derrors.ErrValidationInvalidValue, "max_retries cannot be negative")
	}
	return nil
}

func checkProbability(name string, p float64) error {
	if p < 0 || p > 1 || p != p {
		return derrors.Scheduler(derrors.ErrSchedulerInvalidProbability, "respond probability must be within [0, 1]").
			WithContext("participant", name).
			WithContext("value", fmt.Sprint(p))
	}
	return nil
}

// New builds the manager described by cfg.
func New(cfg Config) (Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	kind, _ := ParseKind(string(cfg.Policy))
	switch kind {
	case KindRoundRobin:
		return NewRoundRobin(), nil
	default:
		return NewRandomWeighted(cfg), nil
	}
}

// candidates returns registered names that are active and not excluded, in
// registration order.
func candidates(names []string, excluded map[string]bool, active []string) []string {
	allowed := make(map[string]bool, len(active))
	for _, n := range active {
		allowed[n] = true
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if allowed[n] && !excluded[n] {
			out = append(out, n)
		}
	}
	return out
}
