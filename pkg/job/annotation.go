package job

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dimits-ts/syndisco/pkg/export"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/runtime"
	"github.com/dimits-ts/syndisco/yarn"
)

// AnnotationOptions configures an annotation job.
type AnnotationOptions struct {
	Annotator *runtime.Actor
	Source    *yarn.Discussion
	// ContextLength is the number of messages the annotator sees, ending
	// with the judged message. Defaults to the annotator's context length.
	ContextLength int
	// IncludeModerator judges moderator messages and keeps them in the
	// context. Otherwise they are skipped entirely.
	IncludeModerator bool
	Retry            RetryPolicy

	Store    yarn.Store
	Logger   *zap.Logger
	Observer Observer
}

// Annotation judges every message of a finished discussion in order.
type Annotation struct {
	opts    AnnotationOptions
	record  *yarn.Annotation
	logger  *zap.Logger
	started atomic.Bool
}

// NewAnnotation creates an annotation job over opts.Source.
func NewAnnotation(opts AnnotationOptions) (*Annotation, error) {
	if opts.Annotator == nil {
		return nil, derrors.Job(derrors.ErrJobInvalid, "annotation needs an annotator")
	}
	if opts.Source == nil {
		return nil, derrors.Job(derrors.ErrJobInvalid, "annotation needs a source discussion")
	}
	if opts.ContextLength <= 0 {
		opts.ContextLength = opts.Annotator.ContextLength()
	}
	opts.Annotator = opts.Annotator.WithContextLength(opts.ContextLength)
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

	record := yarn.NewAnnotation(opts.Source.ID, opts.Annotator.Describe())
	record.ContextLength = opts.ContextLength
	record.IncludeModerator = opts.IncludeModerator

	return &Annotation{
		opts:   opts,
		record: record,
		logger: logger.With(
			zap.String("component", "annotation"),
			zap.String("annotation_id", record.ID),
			zap.String("discussion_id", opts.Source.ID)),
	}, nil
}

// ID returns the id of the annotation record.
func (j *Annotation) ID() string { return j.record.ID }

// Record returns the annotation record.
func (j *Annotation) Record() *yarn.Annotation { return j.record }

// Begin judges each message, persists the record and returns it. The error
// is non-nil iff the annotation ended FAILED.
func (j *Annotation) Begin(ctx context.Context) (*yarn.Annotation, error) {
	if !j.started.CompareAndSwap(false, true) {
		return j.record, derrors.AlreadyStarted(j.record.ID)
	}
	start := time.Now()
	j.record.SetStatus(StateRunning)
	j.opts.Observer.OnStart(KindAnnotation, j.record.ID)
	j.logger.Info("annotation started", zap.String("annotator", j.opts.Annotator.Name()))

	status, reason, runErr := j.run(ctx)
	j.record.Finish(status, reason)

	path, err := j.opts.Store.SaveAnnotation(context.WithoutCancel(ctx), j.record)
	if err != nil {
		j.record.Finish(StateFailed, ReasonPersistenceFailed)
		runErr = derrors.PersistenceFailure(j.record.ID, path, err)
		status, reason = StateFailed, ReasonPersistenceFailed
	}

	ok, failed := j.record.Counts()
	if runErr != nil {
		j.logger.Error("annotation failed", zap.String("reason", reason), zap.Int("failed", failed), zap.Error(runErr))
	} else {
		j.logger.Info("annotation finished",
			zap.String("reason", reason),
			zap.Int("annotated", ok),
			zap.Int("failed", failed),
			zap.String("path", path))
	}

	j.opts.Observer.OnFinish(Summary{
		Kind:     KindAnnotation,
		ID:       j.record.ID,
		Source:   j.opts.Source.ID,
		Status:   status,
		Reason:   reason,
		Messages: ok + failed,
		Failures: failed,
		Path:     path,
		Duration: time.Since(start),
	})
	return j.record, runErr
}

func (j *Annotation) run(ctx context.Context) (State, string, error) {
	var seen []*yarn.Message
	for _, msg := range j.opts.Source.History(0) {
		if !j.opts.IncludeModerator && export.IsModerator(j.opts.Source, msg.Speaker) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return StateFailed, ReasonCanceled,
				derrors.JobWrap(err, derrors.ErrJobCanceled, "annotation canceled").
					WithContext("annotation_id", j.record.ID)
		}
		seen = append(seen, msg)
		j.record.AddItem(j.judge(ctx, msg, yarn.Window(seen, j.opts.ContextLength)))
	}

	ok, failed := j.record.Counts()
	if ok == 0 && failed > 0 {
		return StateFailed, ReasonAllItemsFailed,
			derrors.Job(derrors.ErrJobAllItemsFailed, "every message failed to annotate").
				WithContext("annotation_id", j.record.ID)
	}
	return StateCompleted, ReasonAllItemsAnnotated, nil
}

// judge annotates msg given the context window ending with it.
func (j *Annotation) judge(ctx context.Context, msg *yarn.Message, window []*yarn.Message) yarn.AnnotationItem {
	j.opts.Observer.OnTurn(KindAnnotation, j.record.ID, msg.Ordinal, msg.Speaker)
	item := yarn.AnnotationItem{Ordinal: msg.Ordinal, Speaker: msg.Speaker, Message: msg.Text}

	var out *yarn.Message
	err := j.opts.Retry.do(ctx, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = derrors.InternalPanic(r)
			}
		}()
		out, err = j.opts.Annotator.Speak(ctx, window, msg.Ordinal)
		return err
	})
	if err != nil {
		j.logger.Warn("annotation item failed",
			zap.Int("ordinal", msg.Ordinal),
			zap.String("participant", msg.Speaker),
			zap.Error(err))
		item.Error = err.Error()
		return item
	}
	item.Judgment = out.Text
	return item
}
