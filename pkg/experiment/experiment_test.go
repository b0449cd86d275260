package experiment

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/pkg/turn"
	"github.com/dimits-ts/syndisco/wool"
	"github.com/dimits-ts/syndisco/yarn"
)

func testActors() Actors {
	return Actors{
		Cache: backend.NewCache(nil, nil),
		Backends: map[string]backend.Config{
			"dry":    {Name: "dry", Type: backend.TypeScripted, Replies: []string{"Fine by me.", "Not so sure."}},
			"broken": {Name: "broken", Type: backend.TypeFailing},
		},
	}
}

func user(name, backendName string) wool.ActorSpec {
	return wool.ActorSpec{
		Role:    wool.RoleUser,
		Backend: backendName,
		Persona: &wool.Persona{Username: name, Age: 30},
		Context: "An online forum.",
	}
}

func users(backendName string, names ...string) []wool.ActorSpec {
	var specs []wool.ActorSpec
	for _, n := range names {
		specs = append(specs, user(n, backendName))
	}
	return specs
}

type countingProgress struct{ n, failed atomic.Int64 }

func (c *countingProgress) Increment() { c.n.Add(1) }

func (c *countingProgress) IncrementFailed() {
	c.n.Add(1)
	c.failed.Add(1)
}

func discussionExperiment(store yarn.Store) *DiscussionExperiment {
	return &DiscussionExperiment{
		Actors:      testActors(),
		Users:       users("dry", "alice", "bob", "carol"),
		Topics:      []string{"Ban cars downtown.", "Tax sugary drinks."},
		TurnTaking:  turn.Config{Policy: turn.KindRoundRobin},
		MaxTurns:    4,
		ActiveUsers: 2,
		Count:       4,
		Concurrency: 2,
		Seed:        7,
		Store:       store,
	}
}

// =============================================================================
// DiscussionExperiment
// =============================================================================

func TestDiscussionExperiment_Run(t *testing.T) {
	store := yarn.NewMemoryStore()
	progress := &countingProgress{}
	e := discussionExperiment(store)
	mod := wool.DefaultModerator("dry")
	e.Moderator = &mod
	e.Progress = progress

	results, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, int64(4), progress.n.Load())
	assert.Zero(t, progress.failed.Load())

	completed, failed := Tally(results)
	assert.Equal(t, 4, completed)
	assert.Equal(t, 0, failed)

	for _, d := range store.Discussions() {
		assert.Equal(t, yarn.StatusCompleted, d.CurrentStatus())
		assert.Contains(t, e.Topics, d.Config.Topic)
		assert.Equal(t, d.Config.Topic, d.Config.SeedOpinion)
		assert.Len(t, d.Config.Users, 2)
		assert.Equal(t, "moderator", d.Moderator)

		first := d.Messages[0]
		assert.Equal(t, d.Config.SeedOpinionUser, first.Speaker)
		assert.Equal(t, d.Config.Topic, first.Text)
		assert.Equal(t, job.SeedModel, first.Model)
	}
}

func TestDiscussionExperiment_SeedReproducesPlans(t *testing.T) {
	describe := func(ps []plan) []string {
		var out []string
		for _, p := range ps {
			s := p.topic + "|" + p.seedUser
			for _, u := range p.users {
				s += "|" + u.DisplayName()
			}
			out = append(out, s)
		}
		return out
	}

	a := discussionExperiment(nil)
	b := discussionExperiment(nil)
	assert.Equal(t, describe(a.plans()), describe(b.plans()))

	for _, p := range a.plans() {
		assert.Len(t, p.users, 2)
		names := []string{p.users[0].DisplayName(), p.users[1].DisplayName()}
		assert.NotEqual(t, names[0], names[1], "users are sampled without replacement")
		assert.True(t, slices.Contains(names, p.seedUser), "seed user must be a participant")
	}
}

func TestDiscussionExperiment_FailuresDoNotAbort(t *testing.T) {
	store := yarn.NewMemoryStore()
	e := discussionExperiment(store)
	e.Users = users("broken", "alice", "bob")

	results, err := e.Run(context.Background())
	require.NoError(t, err)

	completed, failed := Tally(results)
	assert.Equal(t, 0, completed)
	assert.Equal(t, 4, failed)
	for _, r := range results {
		assert.Equal(t, job.ReasonAllParticipantsFailed, r.Reason)
		assert.True(t, derrors.HasCode(r.Err, derrors.ErrJobAllParticipantsFailed))
	}
	// Failed discussions are still persisted.
	assert.Equal(t, 4, store.Count())
}

func TestDiscussionExperiment_SetupFailure(t *testing.T) {
	e := discussionExperiment(yarn.NewMemoryStore())
	e.Users = users("missing", "alice", "bob")

	results, err := e.Run(context.Background())
	require.NoError(t, err)
	for _, r := range results {
		assert.True(t, r.Failed())
		assert.Empty(t, r.ID)
		assert.Error(t, r.Err)
	}
}

func TestDiscussionExperiment_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(e *DiscussionExperiment)
	}{
		{"no topics", func(e *DiscussionExperiment) { e.Topics = nil }},
		{"zero active users", func(e *DiscussionExperiment) { e.ActiveUsers = 0 }},
		{"too few users", func(e *DiscussionExperiment) { e.ActiveUsers = 5 }},
		{"zero count", func(e *DiscussionExperiment) { e.Count = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := discussionExperiment(nil)
			tt.mutate(e)
			_, err := e.Run(context.Background())
			assert.True(t, derrors.HasCode(err, derrors.ErrJobInvalid), "got %v", err)
		})
	}
}

func TestDiscussionExperiment_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	progress := &countingProgress{}
	e := discussionExperiment(yarn.NewMemoryStore())
	e.Progress = progress
	results, err := e.Run(ctx)
	assert.True(t, derrors.HasCode(err, derrors.ErrJobCanceled), "got %v", err)
	assert.True(t, errors.Is(err, context.Canceled))

	require.Len(t, results, e.Count)
	completed, failed := Tally(results)
	assert.Zero(t, completed, "discussions that never ran are not completions")
	assert.Equal(t, e.Count, failed)
	for _, r := range results {
		assert.Equal(t, job.ReasonCanceled, r.Reason)
		assert.True(t, derrors.HasCode(r.Err, derrors.ErrJobCanceled))
	}
	assert.Equal(t, int64(e.Count), progress.failed.Load())
}

func TestDiscussionExperiment_TurnSeedPerDiscussion(t *testing.T) {
	e := discussionExperiment(nil)
	e.TurnTaking = turn.Config{Policy: turn.KindRandomWeighted, Seed: 42}
	again := discussionExperiment(nil)
	again.TurnTaking = e.TurnTaking

	seen := map[uint64]bool{}
	for _, p := range e.plans() {
		s := e.turnSeed(p)
		assert.NotZero(t, s)
		assert.False(t, seen[s], "discussion %d reuses a scheduler seed", p.index)
		seen[s] = true
		assert.Equal(t, s, again.turnSeed(p), "seeds must be reproducible")
	}

	// Without a turn seed the batch seed drives the scheduler.
	e.TurnTaking.Seed = 0
	p := e.plans()[1]
	assert.Equal(t, p.seed, e.turnSeed(p))

	e.Seed = 0
	assert.Zero(t, e.turnSeed(p))
}

// =============================================================================
// AnnotationExperiment
// =============================================================================

func sourcesOf(ds ...*yarn.Discussion) iter.Seq2[*yarn.Discussion, error] {
	return func(yield func(*yarn.Discussion, error) bool) {
		for _, d := range ds {
			if !yield(d, nil) {
				return
			}
		}
	}
}

func finishedDiscussion(t *testing.T) *yarn.Discussion {
	t.Helper()
	d := yarn.NewDiscussion([]string{"alice", "bob"}, "moderator")
	for i, sp := range []string{"alice", "moderator", "bob"} {
		require.NoError(t, d.Append(yarn.NewMessage(i, sp, "message from "+sp)))
	}
	d.Finish(yarn.StatusCompleted, job.ReasonMaxTurns)
	return d
}

func annotator(name, backendName string) wool.ActorSpec {
	spec := wool.DefaultAnnotator(backendName)
	spec.Name = name
	spec.Persona = &wool.Persona{Username: name}
	return spec
}

func TestAnnotationExperiment_Run(t *testing.T) {
	store := yarn.NewMemoryStore()
	progress := &countingProgress{}
	d1, d2 := finishedDiscussion(t), finishedDiscussion(t)

	e := &AnnotationExperiment{
		Actors:      testActors(),
		Annotators:  []wool.ActorSpec{annotator("ann-1", "dry"), annotator("ann-2", "dry")},
		Sources:     sourcesOf(d1, d2),
		Concurrency: 3,
		Store:       store,
		Progress:    progress,
	}
	results, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)
	assert.Equal(t, int64(4), progress.n.Load())

	perSource := map[string]int{}
	for _, r := range results {
		assert.Equal(t, job.KindAnnotation, r.Kind)
		assert.Equal(t, job.StateCompleted, r.Status)
		perSource[r.Source]++

		a, ok := store.Annotation(r.ID)
		require.True(t, ok)
		// The moderator message is skipped.
		assert.Len(t, a.Items, 2)
	}
	assert.Equal(t, map[string]int{d1.ID: 2, d2.ID: 2}, perSource)
}

func TestAnnotationExperiment_SkipsUnreadableSources(t *testing.T) {
	d := finishedDiscussion(t)
	sources := func(yield func(*yarn.Discussion, error) bool) {
		if !yield(nil, errors.New("corrupt file")) {
			return
		}
		yield(d, nil)
	}

	e := &AnnotationExperiment{
		Actors:     testActors(),
		Annotators: []wool.ActorSpec{annotator("ann", "dry")},
		Sources:    sources,
		Store:      yarn.NewMemoryStore(),
	}
	results, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, d.ID, results[0].Source)
}

func TestAnnotationExperiment_FailingAnnotator(t *testing.T) {
	e := &AnnotationExperiment{
		Actors:     testActors(),
		Annotators: []wool.ActorSpec{annotator("ok", "dry"), annotator("bad", "broken")},
		Sources:    sourcesOf(finishedDiscussion(t)),
		Store:      yarn.NewMemoryStore(),
	}
	results, err := e.Run(context.Background())
	require.NoError(t, err)

	completed, failed := Tally(results)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, failed)
}

func TestAnnotationExperiment_Invalid(t *testing.T) {
	_, err := (&AnnotationExperiment{Sources: sourcesOf()}).Run(context.Background())
	assert.True(t, derrors.HasCode(err, derrors.ErrJobInvalid))

	_, err = (&AnnotationExperiment{Annotators: []wool.ActorSpec{annotator("a", "dry")}}).Run(context.Background())
	assert.True(t, derrors.HasCode(err, derrors.ErrJobInvalid))
}
