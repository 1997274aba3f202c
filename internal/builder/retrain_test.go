package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNeedsRebuild_TrueWhenNoVersionPublished(t *testing.T) {
	b, _ := newTestBuilder(t, testConfig())

	due, reason, err := b.NeedsRebuild(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, due)
	assert.Contains(t, reason, "no previous model version")
}

func TestNeedsRebuild_FalseRightAfterBuild(t *testing.T) {
	b, _ := newTestBuilder(t, testConfig())
	ctx := context.Background()

	_, err := b.Run(ctx)
	require.NoError(t, err)

	due, reason, err := b.NeedsRebuild(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, due)
	assert.Equal(t, "model is fresh", reason)
}

func TestNeedsRebuild_TrueAfterRetrainInterval(t *testing.T) {
	cfg := testConfig()
	b, _ := newTestBuilder(t, cfg)
	ctx := context.Background()

	_, err := b.Run(ctx)
	require.NoError(t, err)

	later := time.Now().UTC().Add(time.Duration(cfg.RetrainIntervalDays)*24*time.Hour + time.Hour)
	due, _, err := b.NeedsRebuild(ctx, later)
	require.NoError(t, err)
	assert.True(t, due)
}
