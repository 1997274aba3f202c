package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently-labs/recoengine/internal/apperrors"
	"github.com/evently-labs/recoengine/internal/config"
)

func TestResolve_KnownStrategies(t *testing.T) {
	sel := New(config.Default())

	hybrid, err := sel.Resolve(Hybrid)
	require.NoError(t, err)
	assert.Equal(t, 1.0, hybrid.BaseSimWeight)
	assert.Equal(t, 0.10, hybrid.FriendStep)
	assert.False(t, hybrid.DropNoFriends)

	friendsOnly, err := sel.Resolve(FriendsOnly)
	require.NoError(t, err)
	assert.Equal(t, 0.0, friendsOnly.BaseSimWeight)
	assert.True(t, friendsOnly.DropNoFriends)

	friendsBoosted, err := sel.Resolve(FriendsBoosted)
	require.NoError(t, err)
	assert.Equal(t, 0.30, friendsBoosted.FriendStep)
}

func TestResolve_UnknownStrategyIsInvalidArgument(t *testing.T) {
	sel := New(config.Default())
	_, err := sel.Resolve("nonexistent")
	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.InvalidArgument))
}

func TestNames_ListsAllConfiguredStrategies(t *testing.T) {
	sel := New(config.Default())
	assert.ElementsMatch(t, []string{Hybrid, FriendsOnly, FriendsBoosted}, sel.Names())
}
