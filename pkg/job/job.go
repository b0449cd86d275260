// Package job runs discussions and annotations.
//
// A job owns its record for the duration of Begin. The discussion loop is
// the only place where a turn manager and actors interact: it asks the
// manager for a speaker, lets that actor speak over a truncated history,
// appends the message and decides whether to stop. Every failure inside a
// job ends up in the record's status and termination reason; Begin never
// panics on a misbehaving participant.
package job

import (
	"context"
	"time"

	"github.com/dimits-ts/syndisco/yarn"
)

// State is the lifecycle state of a job.
type State = yarn.Status

const (
	StateNotStarted = yarn.StatusNotStarted
	StateRunning    = yarn.StatusRunning
	StateCompleted  = yarn.StatusCompleted
	StateFailed     = yarn.StatusFailed
)

// Termination reasons recorded on finished records.
const (
	ReasonMaxTurns              = "max_turns"
	ReasonTurnManagerEnd        = "turn_manager_end"
	ReasonNoWillingSpeaker      = "no_willing_speaker"
	ReasonEarlyStop             = "early_stop"
	ReasonTerminationWord       = "termination_word"
	ReasonAllParticipantsFailed = "all_participants_failed"
	ReasonNotConfigured         = "not_configured"
	ReasonSchedulerError        = "scheduler_error"
	ReasonPersistenceFailed     = "persistence_failed"
	ReasonCanceled              = "canceled"
	ReasonInternalError         = "internal_error"
	ReasonAllItemsAnnotated     = "all_items_annotated"
	ReasonAllItemsFailed        = "all_items_failed"
)

// RetryPolicy bounds how often a job re-asks a failing actor before giving
// up on it. Delays grow by Multiplier up to MaxDelay.
type RetryPolicy struct {
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"max_delay"`
	Multiplier   float64       `yaml:"multiplier" json:"multiplier"`
}

// NoRetry gives up after the first failure.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// delay returns the wait before retry attempt (1-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	if p.InitialDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	return time.Duration(d)
}

// do runs fn until it succeeds, ctx ends or retries are exhausted. It
// returns the last error.
func (p RetryPolicy) do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil || attempt >= p.MaxRetries {
			return err
		}
		if d := p.delay(attempt + 1); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
	}
}
