// Package experiment runs batches of discussion and annotation jobs.
//
// A batch never aborts because one job failed: failures are logged, counted
// in the returned results and left for the run index. Only cancellation or
// an invalid batch definition stop it.
package experiment

import (
	"context"
	"fmt"
	"iter"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/job"
	"github.com/dimits-ts/syndisco/pkg/runtime"
	"github.com/dimits-ts/syndisco/pkg/turn"
	"github.com/dimits-ts/syndisco/wool"
	"github.com/dimits-ts/syndisco/yarn"
)

// Progress is notified once per finished job.
type Progress interface {
	Increment()
	IncrementFailed()
}

type nopProgress struct{}

func (nopProgress) Increment()       {}
func (nopProgress) IncrementFailed() {}

func report(p Progress, r Result) {
	if r.Failed() {
		p.IncrementFailed()
		return
	}
	p.Increment()
}

// Result is the outcome of one job in a batch.
type Result struct {
	Kind   job.Kind
	ID     string
	Source string
	Status job.State
	Reason string
	Err    error
}

// Failed reports whether the job ended FAILED or could not be built.
func (r Result) Failed() bool { return r.Err != nil || r.Status == job.StateFailed }

// Tally counts completed and failed results.
func Tally(results []Result) (completed, failed int) {
	for _, r := range results {
		if r.Failed() {
			failed++
		} else {
			completed++
		}
	}
	return completed, failed
}

// Actors resolves actor specs into runtime actors through the backend cache.
type Actors struct {
	Cache    *backend.Cache
	Backends map[string]backend.Config
}

// manager returns a fresh actor manager; names are unique per job only.
func (a Actors) manager() *runtime.Manager {
	return runtime.NewManager(a.Cache, a.Backends)
}

// DiscussionExperiment generates Count discussions. Each one samples a topic,
// ActiveUsers participants from Users and a seed user among them who posts
// the topic as the opening opinion.
type DiscussionExperiment struct {
	Actors    Actors
	Users     []wool.ActorSpec
	Moderator *wool.ActorSpec
	Topics    []string

	TurnTaking       turn.Config
	ContextLength    int
	MaxTurns         int
	ActiveUsers      int
	Count            int
	Concurrency      int
	TerminationWords []string
	Retry            job.RetryPolicy
	// Seed fixes sampling. Zero picks a random seed.
	Seed uint64

	Store    yarn.Store
	Observer job.Observer
	Progress Progress
	Logger   *zap.Logger
}

// plan is one sampled discussion.
type plan struct {
	index    int
	topic    string
	users    []wool.ActorSpec
	seedUser string
	seed     uint64
}

func (e *DiscussionExperiment) validate() error {
	switch {
	case len(e.Topics) == 0:
		return derrors.Job(derrors.ErrJobInvalid, "experiment needs at least one topic")
	case e.ActiveUsers <= 0:
		return derrors.Job(derrors.ErrJobInvalid, "active users must be positive")
	case len(e.Users) < e.ActiveUsers:
		return derrors.Job(derrors.ErrJobInvalid, "not enough users for the requested sample").
			WithContext("users", fmt.Sprint(len(e.Users))).
			WithContext("active_users", fmt.Sprint(e.ActiveUsers)).
			WithSuggestion("Add personas or lower discussions.active_users")
	case e.Count <= 0:
		return derrors.Job(derrors.ErrJobInvalid, "discussion count must be positive")
	}
	return nil
}

// plans samples every discussion up front so a fixed seed reproduces the
// whole batch regardless of scheduling.
func (e *DiscussionExperiment) plans() []plan {
	seed := e.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	plans := make([]plan, e.Count)
	for i := range plans {
		perm := rng.Perm(len(e.Users))[:e.ActiveUsers]
		users := make([]wool.ActorSpec, len(perm))
		for j, k := range perm {
			users[j] = e.Users[k]
		}
		plans[i] = plan{
			index:    i,
			topic:    e.Topics[rng.IntN(len(e.Topics))],
			users:    users,
			seedUser: users[rng.IntN(len(users))].DisplayName(),
			seed:     rng.Uint64(),
		}
	}
	return plans
}

// Run executes the batch. The error is non-nil only when the batch is
// invalid or ctx is canceled.
func (e *DiscussionExperiment) Run(ctx context.Context) ([]Result, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	logger := orNop(e.Logger).With(zap.String("component", "experiment"), zap.String("kind", string(job.KindDiscussion)))
	progress := orNopProgress(e.Progress)
	plans := e.plans()

	results := make([]Result, len(plans))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.Concurrency, 1))

	start := time.Now()
	logger.Info("experiment started",
		zap.Int("discussions", len(plans)),
		zap.Int("concurrency", max(e.Concurrency, 1)))

	submitted := 0
	for _, p := range plans {
		if gctx.Err() != nil {
			break
		}
		submitted++
		g.Go(func() error {
			r := e.runOne(gctx, p, logger)
			results[p.index] = r
			report(progress, r)
			return nil
		})
	}
	_ = g.Wait()

	// Plans never started count as canceled, not as empty successes.
	for i := submitted; i < len(results); i++ {
		results[i] = Result{
			Kind:   job.KindDiscussion,
			Status: job.StateFailed,
			Reason: job.ReasonCanceled,
			Err:    derrors.JobWrap(gctx.Err(), derrors.ErrJobCanceled, "discussion not started"),
		}
		report(progress, results[i])
	}

	completed, failed := Tally(results)
	logger.Info("experiment finished",
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))

	if err := ctx.Err(); err != nil {
		return results, derrors.JobWrap(err, derrors.ErrJobCanceled, "experiment canceled")
	}
	return results, nil
}

func (e *DiscussionExperiment) runOne(ctx context.Context, p plan, logger *zap.Logger) Result {
	res := Result{Kind: job.KindDiscussion}
	d, err := e.build(ctx, p, logger)
	if err != nil {
		logger.Error("failed to set up discussion", zap.Int("index", p.index), zap.Error(err))
		res.Status, res.Err = job.StateFailed, err
		return res
	}

	record, err := d.Begin(ctx)
	res.ID = record.ID
	res.Status = record.CurrentStatus()
	res.Reason = record.TerminationReason
	res.Err = err
	return res
}

func (e *DiscussionExperiment) build(ctx context.Context, p plan, logger *zap.Logger) (*job.Discussion, error) {
	mgr := e.Actors.manager()
	users, err := mgr.CreateAll(ctx, p.users)
	if err != nil {
		return nil, err
	}
	var moderator *runtime.Actor
	if e.Moderator != nil {
		if moderator, err = mgr.Create(ctx, *e.Moderator); err != nil {
			return nil, err
		}
	}

	tc := e.TurnTaking
	tc.Seed = e.turnSeed(p)
	tm, err := turn.New(tc)
	if err != nil {
		return nil, err
	}

	return job.NewDiscussion(job.DiscussionOptions{
		Users:            users,
		Moderator:        moderator,
		TurnManager:      tm,
		MaxTurns:         e.MaxTurns,
		ContextLength:    e.ContextLength,
		Topic:            p.topic,
		SeedOpinion:      p.topic,
		SeedOpinionUser:  p.seedUser,
		TerminationWords: e.TerminationWords,
		Retry:            e.Retry,
		Store:            e.Store,
		Logger:           logger,
		Observer:         e.Observer,
	})
}

// turnSeed returns the scheduler seed for p. A fixed turn-taking seed is
// mixed with the plan index so every discussion draws its own reproducible
// sequence. Zero leaves the scheduler randomly seeded.
func (e *DiscussionExperiment) turnSeed(p plan) uint64 {
	switch {
	case e.TurnTaking.Seed != 0:
		return mixSeed(e.TurnTaking.Seed + uint64(p.index+1)*0x9e3779b97f4a7c15)
	case e.Seed != 0:
		return p.seed
	}
	return 0
}

// mixSeed is the splitmix64 finalizer. It never returns zero.
func mixSeed(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	if z == 0 {
		return 1
	}
	return z
}

// AnnotationExperiment runs every annotator over every source discussion.
type AnnotationExperiment struct {
	Actors     Actors
	Annotators []wool.ActorSpec
	// Sources is read once. Undecodable records are logged and skipped.
	Sources          iter.Seq2[*yarn.Discussion, error]
	ContextLength    int
	IncludeModerator bool
	Concurrency      int
	Retry            job.RetryPolicy

	Store    yarn.Store
	Observer job.Observer
	Progress Progress
	Logger   *zap.Logger
}

// Run annotates every source with every annotator. Results are in
// submission order.
func (e *AnnotationExperiment) Run(ctx context.Context) ([]Result, error) {
	if len(e.Annotators) == 0 {
		return nil, derrors.Job(derrors.ErrJobInvalid, "experiment needs at least one annotator")
	}
	if e.Sources == nil {
		return nil, derrors.Job(derrors.ErrJobInvalid, "experiment needs source discussions")
	}
	logger := orNop(e.Logger).With(zap.String("component", "experiment"), zap.String("kind", string(job.KindAnnotation)))
	progress := orNopProgress(e.Progress)

	var (
		mu      sync.Mutex
		results []Result
	)
	record := func(i int, r Result) {
		mu.Lock()
		defer mu.Unlock()
		results[i] = r
	}
	reserve := func() int {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, Result{})
		return len(results) - 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.Concurrency, 1))
	start := time.Now()
	sources := 0

	for src, err := range e.Sources {
		if gctx.Err() != nil {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable discussion", zap.Error(err))
			continue
		}
		sources++
		for _, spec := range e.Annotators {
			i := reserve()
			g.Go(func() error {
				r := e.runOne(gctx, spec, src, logger)
				record(i, r)
				report(progress, r)
				return nil
			})
		}
	}
	_ = g.Wait()

	completed, failed := Tally(results)
	logger.Info("experiment finished",
		zap.Int("discussions", sources),
		zap.Int("annotators", len(e.Annotators)),
		zap.Int("completed", completed),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))

	if err := ctx.Err(); err != nil {
		return results, derrors.JobWrap(err, derrors.ErrJobCanceled, "experiment canceled")
	}
	return results, nil
}

func (e *AnnotationExperiment) runOne(ctx context.Context, spec wool.ActorSpec, src *yarn.Discussion, logger *zap.Logger) Result {
	res := Result{Kind: job.KindAnnotation, Source: src.ID}
	annotator, err := e.Actors.manager().Create(ctx, spec)
	if err != nil {
		logger.Error("failed to set up annotator", zap.String("annotator", spec.DisplayName()), zap.Error(err))
		res.Status, res.Err = job.StateFailed, err
		return res
	}
	a, err := job.NewAnnotation(job.AnnotationOptions{
		Annotator:        annotator,
		Source:           src,
		ContextLength:    e.ContextLength,
		IncludeModerator: e.IncludeModerator,
		Retry:            e.Retry,
		Store:            e.Store,
		Logger:           logger,
		Observer:         e.Observer,
	})
	if err != nil {
		res.Status, res.Err = job.StateFailed, err
		return res
	}

	rec, err := a.Begin(ctx)
	res.ID = rec.ID
	res.Status = rec.Status
	res.Reason = rec.TerminationReason
	res.Err = err
	return res
}

func orNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func orNopProgress(p Progress) Progress {
	if p == nil {
		return nopProgress{}
	}
	return p
}
