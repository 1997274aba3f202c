// Package strategy maps a closed set of strategy names to the weight table the engine
// scores candidates with.
package strategy

import (
	"errors"
	"fmt"

	"github.com/evently-labs/recoengine/internal/apperrors"
	"github.com/evently-labs/recoengine/internal/config"
)

const (
	Hybrid         = "hybrid"
	FriendsOnly    = "friends_only"
	FriendsBoosted = "friends_boosted"
)

// Weights is the resolved scoring regime for one request.
type Weights struct {
	Name          string
	BaseSimWeight float64
	FriendStep    float64
	FriendCap     int
	DropNoFriends bool
}

var errUnknownStrategy = errors.New("unknown strategy")

// Selector resolves a strategy name against the configured weight tables. It holds no
// state beyond the config it was built from, so one Selector is shared by every request.
type Selector struct {
	weights map[string]Weights
}

// New builds a Selector from the configured strategies (config.Config.Strategies).
func New(cfg *config.Config) *Selector {
	s := &Selector{weights: make(map[string]Weights, len(cfg.Strategies))}
	for name, w := range cfg.Strategies {
		s.weights[name] = Weights{
			Name:          name,
			BaseSimWeight: w.BaseSimWeight,
			FriendStep:    w.FriendStep,
			FriendCap:     w.FriendCap,
			DropNoFriends: w.DropNoFriends,
		}
	}
	return s
}

// Resolve returns the weight table for name, or apperrors.InvalidArgument if name is not
// one of the closed set of configured strategies.
func (s *Selector) Resolve(name string) (Weights, error) {
	w, ok := s.weights[name]
	if !ok {
		return Weights{}, apperrors.New(apperrors.InvalidArgument, "strategy.Resolve",
			fmt.Errorf("%w: %q", errUnknownStrategy, name))
	}
	return w, nil
}

// Names lists the closed enumeration of strategy names this Selector recognizes.
func (s *Selector) Names() []string {
	out := make([]string, 0, len(s.weights))
	for name := range s.weights {
		out = append(out, name)
	}
	return out
}
