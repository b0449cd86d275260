package job

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dimits-ts/syndisco/pkg/backend"
	derrors "github.com/dimits-ts/syndisco/pkg/errors"
	"github.com/dimits-ts/syndisco/pkg/runtime"
	"github.com/dimits-ts/syndisco/wool"
	"github.com/dimits-ts/syndisco/yarn"
)

func sourceDiscussion(t *testing.T) *yarn.Discussion {
	t.Helper()
	d := yarn.NewDiscussion([]string{"alice", "bob"}, wool.ModeratorName)
	for i, m := range []struct{ speaker, text string }{
		{"alice", "Bikes beat cars."},
		{wool.ModeratorName, "Please keep it civil."},
		{"bob", "Cars are faster."},
		{"alice", "Not in traffic."},
	} {
		require.NoError(t, d.Append(yarn.NewMessage(i, m.speaker, m.text)))
	}
	d.Finish(yarn.StatusCompleted, ReasonMaxTurns)
	return d
}

func annotator(t *testing.T, b backend.Backend) *runtime.Actor {
	t.Helper()
	a, err := runtime.NewActor(wool.DefaultAnnotator(b.Name()), b)
	require.NoError(t, err)
	return a
}

func TestAnnotation_SkipsModerator(t *testing.T) {
	var prompts []string
	b := backend.Func(func(ctx context.Context, req backend.ChatRequest) (string, error) {
		prompts = append(prompts, req.Messages[1].Content)
		return "2", nil
	})
	store := yarn.NewMemoryStore()
	src := sourceDiscussion(t)
	obs := &recordingObserver{}

	job, err := NewAnnotation(AnnotationOptions{Annotator: annotator(t, b), Source: src, Store: store, Observer: obs})
	require.NoError(t, err)

	a, err := job.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, a.Status)
	assert.Equal(t, ReasonAllItemsAnnotated, a.TerminationReason)
	assert.Equal(t, src.ID, a.DiscussionID)
	require.Len(t, a.Items, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{a.Items[0].Ordinal, a.Items[1].Ordinal, a.Items[2].Ordinal})
	assert.Equal(t, "2", a.Items[0].Judgment)
	assert.Nil(t, a.Validate())

	for _, p := range prompts {
		assert.NotContains(t, p, "keep it civil")
	}
	assert.True(t, strings.HasSuffix(prompts[1], "Cars are faster.\nOutput:"), prompts[1])

	_, saved := store.Annotation(a.ID)
	assert.True(t, saved)
	require.Len(t, obs.finished, 1)
	assert.Equal(t, KindAnnotation, obs.finished[0].Kind)
	assert.Equal(t, src.ID, obs.finished[0].Source)
}

func TestAnnotation_IncludeModerator(t *testing.T) {
	job, err := NewAnnotation(AnnotationOptions{
		Annotator:        annotator(t, backend.NewScripted("dry", "1")),
		Source:           sourceDiscussion(t),
		IncludeModerator: true,
	})
	require.NoError(t, err)

	a, err := job.Begin(context.Background())
	require.NoError(t, err)
	assert.Len(t, a.Items, 4)
	assert.True(t, a.IncludeModerator)
}

func TestAnnotation_ContextWindow(t *testing.T) {
	var last string
	b := backend.Func(func(ctx context.Context, req backend.ChatRequest) (string, error) {
		last = req.Messages[1].Content
		return "3", nil
	})
	job, err := NewAnnotation(AnnotationOptions{
		Annotator:     annotator(t, b),
		Source:        sourceDiscussion(t),
		ContextLength: 1,
	})
	require.NoError(t, err)

	_, err = job.Begin(context.Background())
	require.NoError(t, err)
	assert.Contains(t, last, "Not in traffic.")
	assert.NotContains(t, last, "Cars are faster.")
}

func TestAnnotation_ContextLengthOverridesAnnotator(t *testing.T) {
	var last string
	b := backend.Func(func(ctx context.Context, req backend.ChatRequest) (string, error) {
		last = req.Messages[1].Content
		return "3", nil
	})
	spec := wool.DefaultAnnotator(b.Name())
	spec.ContextLength = 1
	narrow, err := runtime.NewActor(spec, b)
	require.NoError(t, err)

	job, err := NewAnnotation(AnnotationOptions{
		Annotator:        narrow,
		Source:           sourceDiscussion(t),
		ContextLength:    4,
		IncludeModerator: true,
	})
	require.NoError(t, err)

	a, err := job.Begin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, a.ContextLength)
	assert.Contains(t, last, "Bikes beat cars.", "the job window applies, not the annotator's")
	assert.Contains(t, last, "Not in traffic.")
	assert.Equal(t, 1, narrow.ContextLength(), "the caller's actor is not modified")
}

func TestAnnotation_PerItemFailures(t *testing.T) {
	var calls int
	b := backend.Func(func(ctx context.Context, req backend.ChatRequest) (string, error) {
		calls++
		if calls == 2 {
			return "", assert.AnError
		}
		return "4", nil
	})
	job, err := NewAnnotation(AnnotationOptions{Annotator: annotator(t, b), Source: sourceDiscussion(t)})
	require.NoError(t, err)

	a, err := job.Begin(context.Background())
	require.NoError(t, err)
	ok, failed := a.Counts()
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
	assert.True(t, a.Items[1].Failed())
	assert.Empty(t, a.Items[1].Judgment)
	assert.Equal(t, StateCompleted, a.Status)
}

func TestAnnotation_AllItemsFailed(t *testing.T) {
	job, err := NewAnnotation(AnnotationOptions{
		Annotator: annotator(t, backend.NewFailing("broken", nil)),
		Source:    sourceDiscussion(t),
	})
	require.NoError(t, err)

	a, err := job.Begin(context.Background())
	require.Error(t, err)
	assert.True(t, derrors.HasCode(err, derrors.ErrJobAllItemsFailed))
	assert.Equal(t, StateFailed, a.Status)
	assert.Equal(t, ReasonAllItemsFailed, a.TerminationReason)
}

func TestAnnotation_EmptySource(t *testing.T) {
	src := yarn.NewDiscussion([]string{"alice"}, "")
	job, err := NewAnnotation(AnnotationOptions{Annotator: annotator(t, backend.NewScripted("dry", "1")), Source: src})
	require.NoError(t, err)

	a, err := job.Begin(context.Background())
	require.NoError(t, err)
	assert.Empty(t, a.Items)
	assert.Equal(t, StateCompleted, a.Status)
}

func TestAnnotation_BeginTwice(t *testing.T) {
	job, err := NewAnnotation(AnnotationOptions{Annotator: annotator(t, backend.NewScripted("dry", "1")), Source: sourceDiscussion(t)})
	require.NoError(t, err)
	_, err = job.Begin(context.Background())
	require.NoError(t, err)
	_, err = job.Begin(context.Background())
	assert.True(t, derrors.HasCode(err, derrors.ErrJobAlreadyStarted))
}

func TestNewAnnotation_Invalid(t *testing.T) {
	_, err := NewAnnotation(AnnotationOptions{Source: sourceDiscussion(t)})
	assert.True(t, derrors.HasCode(err, derrors.ErrJobInvalid))
	_, err = NewAnnotation(AnnotationOptions{Annotator: annotator(t, backend.NewScripted("dry"))})
	assert.True(t, derrors.HasCode(err, derrors.ErrJobInvalid))
}
