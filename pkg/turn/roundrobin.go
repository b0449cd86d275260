package turn

import (
	"context"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/yarn"
)

// RoundRobin cycles through the registered names in order. Its only state
// is the index of the next candidate.
type RoundRobin struct {
	names    []string
	excluded map[string]bool
	next     int
}

// NewRoundRobin creates an unconfigured round-robin manager.
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{excluded: make(map[string]bool)}
}

func (r *RoundRobin) Kind() Kind { return KindRoundRobin }

func (r *RoundRobin) SetNames(names []string) {
	r.names = append([]string(nil), names...)
	r.next = 0
}

func (r *RoundRobin) Exclude(names ...string) {
	for _, n := range names {
		r.excluded[n] = true
	}
}

func (r *RoundRobin) Params() map[string]float64 { return nil }

// Next returns the first name at or after the cursor that is active and not
// excluded, wrapping around. Inactive names are skipped without being
// removed from the order.
func (r *RoundRobin) Next(ctx context.Context, history []*yarn.Message, active []string) (string, error) {
	if len(r.names) == 0 {
		return End, derrors.NotConfigured(string(KindRoundRobin))
	}
	allowed := make(map[string]bool, len(active))
	for _, n := range active {
		allowed[n] = true
	}
	for i := 0; i < len(r.names); i++ {
		idx := (r.next + i) % len(r.names)
		name := r.names[idx]
		if r.excluded[name] || !allowed[name] {
			continue
		}
		r.next = (idx + 1) % len(r.names)
		return name, nil
	}
	return End, nil
}
