package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(v string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return v, nil }
}

func failing(err error) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return "", err }
}

func TestRun_FirstSuccessWins(t *testing.T) {
	calls := 0
	res := Run(context.Background(), []Attempt[string]{
		{Name: "skip", Run: failing(ErrSkip)},
		{Name: "broken", Run: failing(errors.New("boom"))},
		{Name: "good", Run: constant("ok")},
		{Name: "never", Run: func(context.Context) (string, error) { calls++; return "x", nil }},
	}, nil)

	assert.Equal(t, "ok", res.Value)
	assert.Equal(t, "good", res.Name)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, 0, calls)

	require.Len(t, res.Trail, 3)
	assert.Equal(t, StatusSkipped, res.Trail[0].Status)
	assert.Equal(t, StatusFailed, res.Trail[1].Status)
	assert.EqualError(t, res.LastErr(), "boom")
}

func TestRun_ExhaustedUsesDefault(t *testing.T) {
	res := Run(context.Background(), []Attempt[string]{
		{Name: "a", Run: failing(errors.New("first"))},
		{Name: "b", Run: failing(errors.New("second"))},
	}, func(trail []Outcome[string]) string {
		return "default after " + trail[len(trail)-1].Name
	})

	assert.Equal(t, StatusDefault, res.Status)
	assert.Equal(t, "default after b", res.Value)
	assert.True(t, res.OK())
	assert.EqualError(t, res.LastErr(), "second")
}

func TestRun_EmptyListNilDefault(t *testing.T) {
	res := Run[int](context.Background(), nil, nil)
	assert.Equal(t, StatusDefault, res.Status)
	assert.Equal(t, 0, res.Value)
	assert.Empty(t, res.Trail)
	assert.NoError(t, res.LastErr())
}

func TestRun_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	res := Run(ctx, []Attempt[string]{
		{Name: "a", Run: func(context.Context) (string, error) { ran = true; return "x", nil }},
	}, func([]Outcome[string]) string { return "fallback" })

	assert.False(t, ran)
	assert.Equal(t, "fallback", res.Value)
	assert.ErrorIs(t, res.LastErr(), context.Canceled)
}
