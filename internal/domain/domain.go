// Package domain holds the data model shared by the connector, builder, and engine.
// Types here cross subsystem boundaries only as ids and plain structs; nothing in this
// package performs I/O.
package domain

import "time"

// AccountKind distinguishes individual viewers from organizational accounts. Recommendation
// behavior does not depend on this value; it exists purely for profile display.
type AccountKind string

const (
	AccountIndividual   AccountKind = "individual"
	AccountOrganization AccountKind = "organization"
)

// Event is a candidate for recommendation once it is non-archived and in the future.
type Event struct {
	ID             int64
	Title          string
	Description    string
	Category       string
	Tags           []string
	Location       string
	StartTime      time.Time
	EndTime        time.Time
	MaxAttendees   *int
	OrganizerID    string
	OrganizationID *string
	Archived       bool
	ArchivedAt     *time.Time
	CreatedAt      time.Time
}

// IsCandidate reports whether the event may ever be recommended: not archived and still
// in the future relative to now.
func (e Event) IsCandidate(now time.Time) bool {
	return !e.Archived && e.StartTime.After(now)
}

// Lifecycle windows: events auto-archive one day after they end and are permanently
// removed five days after archiving. Both transitions are driven by the owning store;
// these helpers only decide when they are due.
const (
	archiveDelay = 24 * time.Hour
	purgeDelay   = 5 * 24 * time.Hour
)

// ArchiveDue reports whether a non-archived event should now be archived.
func (e Event) ArchiveDue(now time.Time) bool {
	return !e.Archived && now.Sub(e.EndTime) >= archiveDelay
}

// PurgeDue reports whether an archived event should now be permanently removed.
func (e Event) PurgeDue(now time.Time) bool {
	return e.Archived && e.ArchivedAt != nil && now.Sub(*e.ArchivedAt) >= purgeDelay
}

// User is a viewer, creator, or subject of social signals. Organizations are users too.
type User struct {
	ID        string
	Username  string
	Bio       string
	Location  string
	Interests []string
	Kind      AccountKind
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InteractionKind enumerates the fixed set of interaction types the engine understands.
// Weights are table-driven (see InteractionWeight) rather than keyed by string at score time.
type InteractionKind string

const (
	InteractionGoing       InteractionKind = "going"
	InteractionInterested  InteractionKind = "interested"
	InteractionOrganized   InteractionKind = "organized"
	InteractionViewed      InteractionKind = "viewed"
	InteractionFriendGoing InteractionKind = "friend_going"
)

// defaultInteractionWeights are the base per-kind weights used for user-vector
// synthesis. Configuration may override individual weights (see internal/config).
var defaultInteractionWeights = map[InteractionKind]float64{
	InteractionGoing:       1.5,
	InteractionInterested:  1.0,
	InteractionOrganized:   2.0,
	InteractionViewed:      0.3,
	InteractionFriendGoing: 0.5,
}

// InteractionWeight returns the base weight for kind, or 0 for an unrecognized kind.
func InteractionWeight(kind InteractionKind) float64 {
	return defaultInteractionWeights[kind]
}

// DefaultInteractionWeights returns a copy of the base weight table, keyed by the kind's
// string form, for configuration layers that expose per-kind overrides.
func DefaultInteractionWeights() map[string]float64 {
	out := make(map[string]float64, len(defaultInteractionWeights))
	for k, w := range defaultInteractionWeights {
		out[string(k)] = w
	}
	return out
}

// Interaction is identified by (UserID, EventID, Kind); CreatedAt is required.
type Interaction struct {
	UserID    string
	EventID   int64
	Kind      InteractionKind
	CreatedAt time.Time
}

// SocialEdge is a directed follow relationship; self-loops are forbidden by the connector.
type SocialEdge struct {
	Follower  string
	Followee  string
	CreatedAt time.Time
}

// Category and Tag are the small dictionaries referenced by event metadata.
type Category struct {
	ID   int64
	Name string
}

type Tag struct {
	ID   int64
	Name string
}
