package job

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dimits-ts/syndisco/pkg/export"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/runtime"
	"github.com/dimits-ts/syndisco/pkg/turn"
	"github.com/dimits-ts/syndisco/yarn"
)

// SeedModel is the model recorded on seed opinion messages.
const SeedModel = "hardcoded"

// DiscussionOptions configures a discussion job.
type DiscussionOptions struct {
	// Users take part in the turn rotation, in registration order.
	Users []*runtime.Actor
	// Moderator, when set, speaks after every non-empty user message.
	Moderator   *runtime.Actor
	TurnManager turn.Manager
	// MaxTurns bounds the number of scheduled turns. Empty replies and
	// failed generations count as turns; moderator interjections do not.
	MaxTurns int
	// ContextLength is recorded in the discussion config. Defaults to the
	// first user's context length.
	ContextLength int
	Topic         string

	// SeedOpinion is posted as the first message by SeedOpinionUser. A seed
	// user who is not one of Users speaks only that once.
	SeedOpinion     string
	SeedOpinionUser string

	// TerminationWords end the discussion when a message contains one of
	// them (case-insensitive).
	TerminationWords []string
	// StopWhen is checked after every appended message.
	StopWhen func(*yarn.Discussion) bool

	// Retry applies to each generation before a participant is removed.
	Retry RetryPolicy

	Store    yarn.Store
	Logger   *zap.Logger
	Observer Observer
}

// Discussion drives one discussion from its first turn to a persisted
// record.
type Discussion struct {
	opts    DiscussionOptions
	record  *yarn.Discussion
	users   map[string]*runtime.Actor
	active  []string
	logger  *zap.Logger
	started atomic.Bool
}

// NewDiscussion validates opts and creates a job with an empty record.
func NewDiscussion(opts DiscussionOptions) (*Discussion, error) {
	if len(opts.Users) == 0 {
		return nil, derrors.Job(derrors.ErrJobInvalid, "discussion needs at least one user")
	}
	if opts.TurnManager == nil {
		return nil, derrors.Job(derrors.ErrJobInvalid, "discussion needs a turn manager")
	}
	if opts.MaxTurns <= 0 {
		return nil, derrors.Job(derrors.ErrJobInvalid, "max turns must be positive").
			WithContext("max_turns", fmt.Sprint(opts.MaxTurns))
	}

	users := make(map[string]*runtime.Actor, len(opts.Users))
	names := make([]string, 0, len(opts.Users))
	for _, a := range opts.Users {
		if a == nil {
			return nil, derrors.Job(derrors.ErrJobInvalid, "nil user actor")
		}
		if _, dup := users[a.Name()]; dup {
			return nil, derrors.Job(derrors.ErrJobInvalid, "duplicate participant name").
				WithContext("participant", a.Name())
		}
		users[a.Name()] = a
		names = append(names, a.Name())
	}
	moderator := ""
	if opts.Moderator != nil {
		moderator = opts.Moderator.Name()
		if _, dup := users[moderator]; dup {
			return nil, derrors.Job(derrors.ErrJobInvalid, "moderator shares a name with a user").
				WithContext("participant", moderator)
		}
	}
	if opts.SeedOpinion != "" && opts.SeedOpinionUser == "" {
		opts.SeedOpinionUser = names[0]
	}
	if opts.ContextLength <= 0 {
		opts.ContextLength = opts.Users[0].ContextLength()
	}
	if opts.Store == nil {
		opts.Store = yarn.NewMemoryStore()
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	record := yarn.NewDiscussion(names, moderator)
	record.Config = discussionConfig(opts)

	return &Discussion{
		opts:   opts,
		record: record,
		users:  users,
		active: names,
		logger: logger.With(zap.String("component", "discussion"), zap.String("discussion_id", record.ID)),
	}, nil
}

func discussionConfig(opts DiscussionOptions) yarn.DiscussionConfig {
	cfg := yarn.DiscussionConfig{
		TurnPolicy:      string(opts.TurnManager.Kind()),
		TurnParams:      opts.TurnManager.Params(),
		ContextLength:   opts.ContextLength,
		MaxTurns:        opts.MaxTurns,
		Topic:           opts.Topic,
		SeedOpinion:     opts.SeedOpinion,
		SeedOpinionUser: opts.SeedOpinionUser,
	}
	for _, u := range opts.Users {
		cfg.Users = append(cfg.Users, u.Describe())
	}
	if opts.Moderator != nil {
		p := opts.Moderator.Describe()
		cfg.Moderator = &p
	}
	cfg.ConfigHash = export.ConfigHash(cfg)
	return cfg
}

// ID returns the id of the discussion record.
func (j *Discussion) ID() string { return j.record.ID }

// Record returns the discussion record. It is safe to read while the job
// runs.
func (j *Discussion) Record() *yarn.Discussion { return j.record }

// Begin runs the discussion until a stopping condition, persists the record
// and returns it. The returned error is non-nil iff the discussion ended
// FAILED; the record is returned either way. Begin may be called once.
func (j *Discussion) Begin(ctx context.Context) (*yarn.Discussion, error) {
	if !j.started.CompareAndSwap(false, true) {
		return j.record, derrors.AlreadyStarted(j.record.ID)
	}
	start := time.Now()
	j.record.SetStatus(StateRunning)
	j.opts.Observer.OnStart(KindDiscussion, j.record.ID)
	j.logger.Info("discussion started",
		zap.Strings("participants", j.active),
		zap.String("turn_policy", string(j.opts.TurnManager.Kind())),
		zap.Int("max_turns", j.opts.MaxTurns))

	status, reason, runErr := j.run(ctx)
	j.record.Finish(status, reason)

	path, err := j.opts.Store.SaveDiscussion(context.WithoutCancel(ctx), j.record)
	if err != nil {
		j.record.Finish(StateFailed, ReasonPersistenceFailed)
		runErr = derrors.PersistenceFailure(j.record.ID, path, err)
		status, reason = StateFailed, ReasonPersistenceFailed
	}

	fields := []zap.Field{
		zap.String("status", string(status)),
		zap.String("reason", reason),
		zap.Int("messages", j.record.Length()),
		zap.String("path", path),
		zap.Duration("duration", time.Since(start)),
	}
	if runErr != nil {
		j.logger.Error("discussion failed", append(fields, zap.Error(runErr))...)
	} else {
		j.logger.Info("discussion finished", fields...)
	}

	j.opts.Observer.OnFinish(Summary{
		Kind:     KindDiscussion,
		ID:       j.record.ID,
		Status:   status,
		Reason:   reason,
		Messages: j.record.Length(),
		Failures: len(j.record.Failures),
		Path:     path,
		Duration: time.Since(start),
	})
	return j.record, runErr
}

// run executes the turn loop and returns the terminal state.
func (j *Discussion) run(ctx context.Context) (State, string, error) {
	tm := j.opts.TurnManager
	tm.SetNames(slices.Clone(j.active))
	moderator := j.opts.Moderator
	if moderator != nil {
		tm.Exclude(moderator.Name())
	}

	if j.opts.SeedOpinion != "" {
		if stop, reason, err := j.seed(); stop {
			return stopState(err), reason, err
		}
	}

	for t := 0; t < j.opts.MaxTurns; t++ {
		if err := ctx.Err(); err != nil {
			return j.canceled(err)
		}
		if len(j.active) == 0 {
			return j.allFailed(t)
		}

		name, err := tm.Next(ctx, j.record.History(0), slices.Clone(j.active))
		switch {
		case err != nil && derrors.HasCode(err, derrors.ErrSchedulerNotConfigured):
			return StateFailed, ReasonNotConfigured, err
		case err != nil && derrors.HasCode(err, derrors.ErrSchedulerNoWillingSpeaker):
			j.logger.Warn("no willing speaker", zap.Int("turn", t), zap.Error(err))
			return StateCompleted, ReasonNoWillingSpeaker, nil
		case err != nil && ctx.Err() != nil:
			return j.canceled(ctx.Err())
		case err != nil:
			return StateFailed, ReasonSchedulerError, err
		case name == turn.End:
			return StateCompleted, ReasonTurnManagerEnd, nil
		}

		actor, ok := j.users[name]
		if !ok || !slices.Contains(j.active, name) {
			return StateFailed, ReasonSchedulerError,
				derrors.Internal(derrors.ErrInternalError, "turn manager picked an inactive participant").
					WithContext("participant", name)
		}

		msg, err := j.speak(ctx, actor, t)
		if err != nil {
			if ctx.Err() != nil {
				return j.canceled(ctx.Err())
			}
			j.remove(name, t, err)
			if len(j.active) == 0 {
				return j.allFailed(t)
			}
			continue
		}
		if msg.IsEmpty() {
			j.logger.Debug("empty reply discarded", zap.Int("turn", t), zap.String("participant", name))
			continue
		}
		if stop, reason, err := j.appendMessage(msg, t); stop {
			return stopState(err), reason, err
		}

		if moderator != nil {
			modMsg, err := j.speak(ctx, moderator, t)
			switch {
			case err != nil && ctx.Err() != nil:
				return j.canceled(ctx.Err())
			case err != nil:
				j.logger.Warn("moderator disabled after failure", zap.Int("turn", t), zap.Error(err))
				j.record.RecordFailure(yarn.Failure{Participant: moderator.Name(), Turn: t, Error: err.Error(), Removed: true})
				j.opts.Observer.OnParticipantRemoved(j.record.ID, moderator.Name(), err)
				moderator = nil
			case !modMsg.IsEmpty():
				if stop, reason, err := j.appendMessage(modMsg, t); stop {
					return stopState(err), reason, err
				}
			}
		}
	}
	return StateCompleted, ReasonMaxTurns, nil
}

// seed posts the seed opinion as the first message.
func (j *Discussion) seed() (bool, string, error) {
	user := j.opts.SeedOpinionUser
	if _, ok := j.users[user]; !ok {
		j.record.AddParticipant(user)
	}
	msg := yarn.NewMessage(j.record.NextOrdinal(), user, j.opts.SeedOpinion).WithModel(SeedModel)
	return j.appendMessage(msg, -1)
}

// speak asks actor for the next message, retrying per the retry policy.
// Panics inside the backend are returned as errors.
func (j *Discussion) speak(ctx context.Context, actor *runtime.Actor, t int) (*yarn.Message, error) {
	j.opts.Observer.OnTurn(KindDiscussion, j.record.ID, t, actor.Name())
	var msg *yarn.Message
	attempt := 0
	err := j.opts.Retry.do(ctx, func() (err error) {
		attempt++
		defer func() {
			if r := recover(); r != nil {
				err = derrors.InternalPanic(r)
			}
		}()
		msg, err = actor.Speak(ctx, j.record.History(0), j.record.NextOrdinal())
		if err != nil && ctx.Err() == nil {
			j.logger.Warn("generation failed",
				zap.Int("turn", t),
				zap.String("participant", actor.Name()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	})
	return msg, err
}

// appendMessage records msg and reports whether the discussion should stop.
func (j *Discussion) appendMessage(msg *yarn.Message, t int) (bool, string, error) {
	if err := j.record.Append(msg); err != nil {
		return true, ReasonInternalError, derrors.Internal(derrors.ErrInternalError, "message rejected by record: "+err.Error()).
			WithContext("participant", msg.Speaker)
	}
	j.logger.Debug("message appended",
		zap.Int("turn", t),
		zap.String("participant", msg.Speaker),
		zap.Int("ordinal", msg.Ordinal))
	j.opts.Observer.OnMessage(j.record.ID, msg)

	if word := containsAny(msg.Text, j.opts.TerminationWords); word != "" {
		j.logger.Info("termination word", zap.String("word", word), zap.String("participant", msg.Speaker))
		return true, ReasonTerminationWord, nil
	}
	if j.opts.StopWhen != nil && j.opts.StopWhen(j.record) {
		return true, ReasonEarlyStop, nil
	}
	return false, "", nil
}

// remove takes a failing participant out of the active set.
func (j *Discussion) remove(name string, t int, cause error) {
	j.active = slices.DeleteFunc(j.active, func(n string) bool { return n == name })
	j.opts.TurnManager.Exclude(name)
	j.record.RecordFailure(yarn.Failure{Participant: name, Turn: t, Error: cause.Error(), Removed: true})
	j.logger.Warn("participant removed",
		zap.Int("turn", t),
		zap.String("participant", name),
		zap.Int("remaining", len(j.active)),
		zap.Error(cause))
	j.opts.Observer.OnParticipantRemoved(j.record.ID, name, cause)
}

func (j *Discussion) allFailed(t int) (State, string, error) {
	return StateFailed, ReasonAllParticipantsFailed,
		derrors.Job(derrors.ErrJobAllParticipantsFailed, "every participant failed").
			WithContext("discussion_id", j.record.ID).
			WithContext("turn", fmt.Sprint(t))
}

func stopState(err error) State {
	if err != nil {
		return StateFailed
	}
	return StateCompleted
}

func (j *Discussion) canceled(cause error) (State, string, error) {
	return StateFailed, ReasonCanceled,
		derrors.JobWrap(cause, derrors.ErrJobCanceled, "discussion canceled").
			WithContext("discussion_id", j.record.ID)
}

func containsAny(text string, words []string) string {
	lower := strings.ToLower(text)
	for _, w := range words {
		if w != "" && strings.Contains(lower, strings.ToLower(w)) {
			return w
		}
	}
	return ""
}

// IsCanceled reports whether err ended a job through cancellation.
func IsCanceled(err error) bool {
	return derrors.HasCode(err, derrors.ErrJobCanceled) || errors.Is(err, context.Canceled)
}
