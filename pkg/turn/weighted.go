package turn

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/yarn"
)

// DefaultRespondProbability is the chance a participant is willing to speak
// on a given turn when no override is configured.
const DefaultRespondProbability = 0.5

// RandomWeighted flips an independent weighted coin per participant each
// turn and picks uniformly among the willing. The previous speaker is only
// picked again when nobody else volunteered.
type RandomWeighted struct {
	names      []string
	excluded   map[string]bool
	defaultP   float64
	overrides  map[string]float64
	onSilence  OnSilence
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
	rng        *rand.Rand
	last       string
}

// NewRandomWeighted creates a random-weighted manager from cfg. The policy
// field of cfg is ignored.
func NewRandomWeighted(cfg Config) *RandomWeighted {
	p := DefaultRespondProbability
	if cfg.RespondProbability != nil {
		p = *cfg.RespondProbability
	}
	onSilence := cfg.OnSilence
	if onSilence == "" {
		onSilence = SilenceEnd
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	overrides := make(map[string]float64, len(cfg.Probabilities))
	for k, v := range cfg.Probabilities {
		overrides[k] = v
	}
	return &RandomWeighted{
		excluded:   make(map[string]bool),
		defaultP:   p,
		overrides:  overrides,
		onSilence:  onSilence,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (w *RandomWeighted) Kind() Kind { return KindRandomWeighted }

func (w *RandomWeighted) SetNames(names []string) {
	w.names = append([]string(nil), names...)
	w.last = ""
}

func (w *RandomWeighted) Exclude(names ...string) {
	for _, n := range names {
		w.excluded[n] = true
	}
}

// Probability returns the respond probability of name.
func (w *RandomWeighted) Probability(name string) float64 {
	if p, ok := w.overrides[name]; ok {
		return p
	}
	return w.defaultP
}

func (w *RandomWeighted) Params() map[string]float64 {
	params := map[string]float64{
		"respond_probability": w.defaultP,
		"max_retries":         float64(w.maxRetries),
	}
	for name, p := range w.overrides {
		params["respond_probability."+name] = p
	}
	return params
}

// Next draws a speaker. Without registered names the active set is the
// roster. When nobody is willing it either ends or redraws up to maxRetries
// times with exponential backoff; exhausted retries return End together
// with a SCHEDULER_NO_WILLING_SPEAKER error.
func (w *RandomWeighted) Next(ctx context.Context, history []*yarn.Message, active []string) (string, error) {
	roster := w.names
	if len(roster) == 0 {
		roster = active
	}
	pool := candidates(roster, w.excluded, active)
	if len(pool) == 0 {
		return End, nil
	}

	delay := w.backoff
	for attempt := 0; ; attempt++ {
		if name, ok := w.draw(pool); ok {
			w.last = name
			return name, nil
		}
		if w.onSilence != SilenceRetry {
			return End, nil
		}
		if attempt >= w.maxRetries {
			return End, derrors.AttachSuggestions(
				derrors.New(derrors.ErrSchedulerNoWillingSpeaker, derrors.CategoryScheduler, "no participant was willing to speak").
					WithContext(derrors.ContextPolicy, string(KindRandomWeighted)).
					WithContext("attempts", strconv.Itoa(attempt+1)))
		}
		if err := sleep(ctx, delay); err != nil {
			return End, err
		}
		delay *= 2
		if w.maxBackoff > 0 && delay > w.maxBackoff {
			delay = w.maxBackoff
		}
	}
}

func (w *RandomWeighted) draw(pool []string) (string, bool) {
	var willing []string
	lastWilling := false
	for _, name := range pool {
		if w.rng.Float64() >= w.Probability(name) {
			continue
		}
		if name == w.last {
			lastWilling = true
			continue
		}
		willing = append(willing, name)
	}
	if len(willing) > 0 {
		return willing[w.rng.IntN(len(willing))], true
	}
	if lastWilling {
		return w.last, true
	}
	return "", false
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
