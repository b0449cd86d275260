package turn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "github.com/dimits-ts/syndisco/pkg/errors"
)

func ptr(f float64) *float64 { return &f }

// -----------------------------------------------------------------------------
// Factory
// -----------------------------------------------------------------------------

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"round_robin", KindRoundRobin, false},
		{"Round-Robin", KindRoundRobin, false},
		{"random_weighted", KindRandomWeighted, false},
		{" RANDOM_WEIGHTED ", KindRandomWeighted, false},
		{"lottery", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.True(t, derrors.HasCode(err, derrors.ErrSchedulerUnknownPolicy))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	m, err := New(Config{Policy: KindRoundRobin})
	require.NoError(t, err)
	assert.Equal(t, KindRoundRobin, m.Kind())

	m, err = New(Config{Policy: KindRandomWeighted, RespondProbability: ptr(0.8)})
	require.NoError(t, err)
	assert.Equal(t, KindRandomWeighted, m.Kind())
	assert.Equal(t, 0.8, m.Params()["respond_probability"])

	_, err = New(Config{Policy: KindRandomWeighted, RespondProbability: ptr(1.5)})
	assert.True(t, derrors.HasCode(err, derrors.ErrSchedulerInvalidProbability))

	_, err = New(Config{Policy: KindRandomWeighted, Probabilities: map[string]float64{"bob": -0.1}})
	assert.True(t, derrors.HasCode(err, derrors.ErrSchedulerInvalidProbability))

	_, err = New(Config{Policy: KindRandomWeighted, OnSilence: "shrug"})
	assert.True(t, derrors.HasCode(err, derrors.ErrValidationInvalidValue))

	_, err = New(Config{Policy: "lottery"})
	de, ok := derrors.AsDiscoError(err)
	require.True(t, ok)
	assert.Equal(t, derrors.ErrSchedulerUnknownPolicy, de.Code)
	assert.NotEmpty(t, de.Suggestions)
}

// -----------------------------------------------------------------------------
// RoundRobin
// -----------------------------------------------------------------------------

func TestRoundRobin_SkipsInactiveAndExcluded(t *testing.T) {
	rr := NewRoundRobin()
	rr.SetNames([]string{"a", "b", "c", "moderator"})
	rr.Exclude("moderator")
	ctx := context.Background()

	var got []string
	active := []string{"a", "c", "moderator"}
	for i := 0; i < 4; i++ {
		name, err := rr.Next(ctx, nil, active)
		require.NoError(t, err)
		got = append(got, name)
	}
	assert.Equal(t, []string{"a", "c", "a", "c"}, got)
}

func TestRoundRobin_RemovalKeepsOrder(t *testing.T) {
	rr := NewRoundRobin()
	rr.SetNames([]string{"a", "b", "c"})
	ctx := context.Background()

	first, _ := rr.Next(ctx, nil, []string{"a", "b", "c"})
	second, _ := rr.Next(ctx, nil, []string{"a", "c"})
	third, _ := rr.Next(ctx, nil, []string{"a", "c"})
	assert.Equal(t, []string{"a", "c", "a"}, []string{first, second, third})
}

func TestRoundRobin_EndWhenNobodyActive(t *testing.T) {
	rr := NewRoundRobin()
	rr.SetNames([]string{"a"})
	name, err := rr.Next(context.Background(), nil, []string{})
	require.NoError(t, err)
	assert.Equal(t, End, name)
}

func TestRoundRobin_SetNamesResetsCursor(t *testing.T) {
	rr := NewRoundRobin()
	rr.SetNames([]string{"a", "b"})
	_, _ = rr.Next(context.Background(), nil, []string{"a", "b"})
	rr.SetNames([]string{"x", "y"})
	name, err := rr.Next(context.Background(), nil, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, "x", name)
}

// -----------------------------------------------------------------------------
// RandomWeighted
// -----------------------------------------------------------------------------

func TestRandomWeighted_SeedIsDeterministic(t *testing.T) {
	names := []string{"a", "b", "c", "d"}
	run := func() []string {
		w := NewRandomWeighted(Config{Seed: 42})
		w.SetNames(names)
		var out []string
		for i := 0; i < 20; i++ {
			n, _ := w.Next(context.Background(), nil, names)
			out = append(out, n)
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestRandomWeighted_Overrides(t *testing.T) {
	w := NewRandomWeighted(Config{
		RespondProbability: ptr(0),
		Probabilities:      map[string]float64{"talker": 1},
		Seed:               7,
	})
	w.SetNames([]string{"quiet", "talker", "shy"})

	for i := 0; i < 10; i++ {
		name, err := w.Next(context.Background(), nil, []string{"quiet", "talker", "shy"})
		require.NoError(t, err)
		assert.Equal(t, "talker", name)
	}
	assert.Equal(t, 1.0, w.Probability("talker"))
	assert.Equal(t, 0.0, w.Probability("quiet"))
}

func TestRandomWeighted_AvoidsLastSpeaker(t *testing.T) {
	w := NewRandomWeighted(Config{RespondProbability: ptr(1), Seed: 3})
	names := []string{"a", "b"}
	w.SetNames(names)

	prev, err := w.Next(context.Background(), nil, names)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		name, err := w.Next(context.Background(), nil, names)
		require.NoError(t, err)
		assert.NotEqual(t, prev, name)
		prev = name
	}
}

func TestRandomWeighted_UsesActiveWithoutNames(t *testing.T) {
	w := NewRandomWeighted(Config{RespondProbability: ptr(1), Seed: 5})
	w.Exclude("moderator")
	for i := 0; i < 10; i++ {
		name, err := w.Next(context.Background(), nil, []string{"x", "moderator"})
		require.NoError(t, err)
		assert.Equal(t, "x", name)
	}
}

func TestRandomWeighted_RetryHonorsContext(t *testing.T) {
	w := NewRandomWeighted(Config{
		RespondProbability: ptr(0),
		OnSilence:          SilenceRetry,
		MaxRetries:         100,
		Backoff:            time.Second,
		Seed:               1,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	name, err := w.Next(ctx, nil, []string{"a"})
	assert.Equal(t, End, name)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRandomWeighted_RetryExhausted(t *testing.T) {
	w := NewRandomWeighted(Config{
		RespondProbability: ptr(0),
		OnSilence:          SilenceRetry,
		MaxRetries:         3,
		Seed:               1,
	})
	name, err := w.Next(context.Background(), nil, []string{"a", "b"})
	assert.Equal(t, End, name)
	de, ok := derrors.AsDiscoError(err)
	require.True(t, ok)
	assert.Equal(t, derrors.ErrSchedulerNoWillingSpeaker, de.Code)
	assert.Equal(t, "4", de.Context["attempts"])
}
