// Package connector provides a read-only view of the domain schema: events, users,
// interactions, and the follow graph. All methods are idempotent reads; the connector
// never mutates domain state.
package connector

import (
	"context"
	"time"

	"github.com/evently-labs/recoengine/internal/domain"
)

// FollowStatus reports that a followee is going to or interested in an event.
type FollowStatus struct {
	UserID string
	Status domain.InteractionKind // InteractionGoing or InteractionInterested
}

// Connector is the contract the core depends on. Every method is read-only.
type Connector interface {
	// FutureEvents returns all non-archived events with StartTime in the future.
	FutureEvents(ctx context.Context) ([]domain.Event, error)
	// ActiveUsers returns every user known to the system.
	ActiveUsers(ctx context.Context) ([]domain.User, error)
	// UserByID resolves a single user, or apperrors NotFound if absent.
	UserByID(ctx context.Context, userID string) (domain.User, error)
	// RecentInteractions returns userID's interactions within horizon of now.
	RecentInteractions(ctx context.Context, userID string, now time.Time, horizon time.Duration) ([]domain.Interaction, error)
	// Followees returns the set of users userID follows.
	Followees(ctx context.Context, userID string) ([]string, error)
	// Categories and Tags return the dictionaries referenced by event metadata.
	Categories(ctx context.Context) ([]domain.Category, error)
	Tags(ctx context.Context) ([]domain.Tag, error)
	// FriendStatusesForEvent returns, for eventID, which of followeeIDs are going or
	// interested.
	FriendStatusesForEvent(ctx context.Context, eventID int64, followeeIDs []string) ([]FollowStatus, error)
}
