package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_LenientWithoutAPIKeyUsesDeterministic(t *testing.T) {
	gen, err := New(Config{Dim: 8, Mode: Lenient})
	require.NoError(t, err)
	assert.Equal(t, 8, gen.Dim())
}

func TestNew_StrictWithoutAPIKeyFails(t *testing.T) {
	_, err := New(Config{Dim: 8, Mode: Strict})
	assert.Error(t, err)
}

func TestNew_RejectsNonPositiveDim(t *testing.T) {
	_, err := New(Config{Dim: 0, Mode: Lenient})
	assert.Error(t, err)
}

func TestDeterministicGenerator_Deterministic(t *testing.T) {
	gen, err := New(Config{Dim: 16, Mode: Lenient})
	require.NoError(t, err)

	v1, err := gen.Embed(context.Background(), "jazz night")
	require.NoError(t, err)
	v2, err := gen.Embed(context.Background(), "jazz night")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestDeterministicGenerator_DifferentTextsDiffer(t *testing.T) {
	gen, err := New(Config{Dim: 16, Mode: Lenient})
	require.NoError(t, err)

	v1, err := gen.Embed(context.Background(), "jazz night")
	require.NoError(t, err)
	v2, err := gen.Embed(context.Background(), "food festival")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

func TestDeterministicGenerator_L2Normalized(t *testing.T) {
	gen, err := New(Config{Dim: 32, Mode: Lenient})
	require.NoError(t, err)

	v, err := gen.Embed(context.Background(), "some text")
	require.NoError(t, err)

	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-4)
}

func TestEmbedBatch_MatchesPerTextEmbed(t *testing.T) {
	gen, err := New(Config{Dim: 8, Mode: Lenient})
	require.NoError(t, err)

	texts := []string{"alpha", "beta", "gamma"}
	batch, err := gen.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, len(texts))

	for i, text := range texts {
		single, err := gen.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestNormalize_ZeroVectorUnchanged(t *testing.T) {
	v := []float32{0, 0, 0}
	assert.Equal(t, v, Normalize(v))
}
