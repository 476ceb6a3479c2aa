package in_mem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProDevCodePoland/ringrtc/internal/sim/spec"
)

func TestInMemStorer_SaveAndList(t *testing.T) {
	s := NewInMemStorer()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, []spec.RunResult{
		{ID: "2", TestSet: "example", TestCase: "default", Profile: "none", StartedAt: base.Add(time.Minute)},
		{ID: "1", TestSet: "example", TestCase: "default", Profile: "simple_loss_10", StartedAt: base},
		{ID: "3", TestSet: "dtx_tests_with_loss", TestCase: "no_dtx", Profile: "none", StartedAt: base},
	}))

	got, err := s.List(ctx, "example")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "2", got[1].ID)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestInMemStorer_SaveReplacesByID(t *testing.T) {
	s := NewInMemStorer()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []spec.RunResult{{ID: "a", TestSet: "x"}}))
	require.NoError(t, s.Save(ctx, []spec.RunResult{{ID: "a", TestSet: "x", Succeeded: true}}))

	got, err := s.List(ctx, "x")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Succeeded)
}

func TestInMemStorer_AssignsMissingID(t *testing.T) {
	s := NewInMemStorer()
	require.NoError(t, s.Save(context.Background(), []spec.RunResult{{TestSet: "x"}, {TestSet: "x"}}))

	got, err := s.List(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}
