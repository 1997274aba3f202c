package connector

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/evently-labs/recoengine/internal/apperrors"
	"github.com/evently-labs/recoengine/internal/domain"
)

// Fixture is the on-disk JSON shape consumed by FixtureConnector, matching the domain
// record schema one-to-one.
type Fixture struct {
	Events       []FixtureEvent       `json:"events"`
	Users        []FixtureUser        `json:"users"`
	Interactions []FixtureInteraction `json:"interactions"`
	Follows      []FixtureFollow      `json:"follows"`
	Categories   []string             `json:"categories"`
	Tags         []string             `json:"tags"`
}

type FixtureEvent struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	Tags           []string   `json:"tags"`
	Location       string     `json:"location"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        time.Time  `json:"end_time"`
	MaxAttendees   *int       `json:"max_attendees,omitempty"`
	OrganizerID    string     `json:"organizer_id"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	Archived       bool       `json:"archived"`
	ArchivedAt     *time.Time `json:"archived_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type FixtureUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Bio       string    `json:"bio"`
	Location  string    `json:"location"`
	Interests []string  `json:"interests"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type FixtureInteraction struct {
	UserID    string    `json:"user_id"`
	EventID   int64     `json:"event_id"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

type FixtureFollow struct {
	Follower  string    `json:"follower"`
	Followee  string    `json:"followee"`
	CreatedAt time.Time `json:"created_at"`
}

// FixtureConnector is the test mode: a Connector backed entirely by an in-memory
// Fixture loaded once from a JSON file, for deterministic tests.
type FixtureConnector struct {
	fixture Fixture
}

// LoadFixture reads and parses a fixture file from path.
func LoadFixture(path string) (*FixtureConnector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.New(apperrors.Internal, "connector.LoadFixture", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, apperrors.New(apperrors.Internal, "connector.LoadFixture", err)
	}
	return NewFixtureConnector(f), nil
}

// NewFixtureConnector builds a FixtureConnector directly from an in-memory Fixture,
// useful for unit tests that construct their fixture data in Go rather than JSON.
func NewFixtureConnector(f Fixture) *FixtureConnector {
	return &FixtureConnector{fixture: f}
}

func (c *FixtureConnector) FutureEvents(_ context.Context) ([]domain.Event, error) {
	now := time.Now().UTC()
	var out []domain.Event
	for _, fe := range c.fixture.Events {
		e := fixtureToEvent(fe)
		if e.IsCandidate(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func fixtureToEvent(fe FixtureEvent) domain.Event {
	return domain.Event{
		ID: fe.ID, Title: fe.Title, Description: fe.Description, Category: fe.Category,
		Tags: fe.Tags, Location: fe.Location, StartTime: fe.StartTime, EndTime: fe.EndTime,
		MaxAttendees: fe.MaxAttendees, OrganizerID: fe.OrganizerID, OrganizationID: fe.OrganizationID,
		Archived: fe.Archived, ArchivedAt: fe.ArchivedAt, CreatedAt: fe.CreatedAt,
	}
}

// AllEvents returns every event in the fixture regardless of archival/future status.
func (c *FixtureConnector) AllEvents() []domain.Event {
	out := make([]domain.Event, 0, len(c.fixture.Events))
	for _, fe := range c.fixture.Events {
		out = append(out, fixtureToEvent(fe))
	}
	return out
}

func (c *FixtureConnector) ActiveUsers(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(c.fixture.Users))
	for _, fu := range c.fixture.Users {
		out = append(out, fixtureToUser(fu))
	}
	return out, nil
}

func fixtureToUser(fu FixtureUser) domain.User {
	return domain.User{
		ID: fu.ID, Username: fu.Username, Bio: fu.Bio, Location: fu.Location,
		Interests: fu.Interests, Kind: domain.AccountKind(fu.Kind),
		CreatedAt: fu.CreatedAt, UpdatedAt: fu.UpdatedAt,
	}
}

func (c *FixtureConnector) UserByID(_ context.Context, userID string) (domain.User, error) {
	for _, fu := range c.fixture.Users {
		if fu.ID == userID {
			return fixtureToUser(fu), nil
		}
	}
	return domain.User{}, apperrors.New(apperrors.NotFound, "connector.UserByID", errUserNotFound(userID))
}

func (c *FixtureConnector) RecentInteractions(_ context.Context, userID string, now time.Time, horizon time.Duration) ([]domain.Interaction, error) {
	since := now.Add(-horizon)
	var out []domain.Interaction
	for _, fi := range c.fixture.Interactions {
		if fi.UserID != userID {
			continue
		}
		if fi.CreatedAt.Before(since) || fi.CreatedAt.After(now) {
			continue
		}
		out = append(out, domain.Interaction{
			UserID: fi.UserID, EventID: fi.EventID, Kind: domain.InteractionKind(fi.Kind), CreatedAt: fi.CreatedAt,
		})
	}
	return out, nil
}

func (c *FixtureConnector) Followees(_ context.Context, userID string) ([]string, error) {
	var out []string
	for _, f := range c.fixture.Follows {
		if f.Follower == userID {
			out = append(out, f.Followee)
		}
	}
	return out, nil
}

func (c *FixtureConnector) Categories(_ context.Context) ([]domain.Category, error) {
	out := make([]domain.Category, len(c.fixture.Categories))
	for i, name := range c.fixture.Categories {
		out[i] = domain.Category{ID: int64(i + 1), Name: name}
	}
	return out, nil
}

func (c *FixtureConnector) Tags(_ context.Context) ([]domain.Tag, error) {
	out := make([]domain.Tag, len(c.fixture.Tags))
	for i, name := range c.fixture.Tags {
		out[i] = domain.Tag{ID: int64(i + 1), Name: name}
	}
	return out, nil
}

func (c *FixtureConnector) FriendStatusesForEvent(_ context.Context, eventID int64, followeeIDs []string) ([]FollowStatus, error) {
	wanted := make(map[string]bool, len(followeeIDs))
	for _, id := range followeeIDs {
		wanted[id] = true
	}
	var out []FollowStatus
	for _, fi := range c.fixture.Interactions {
		if fi.EventID != eventID {
			continue
		}
		if fi.Kind != string(domain.InteractionGoing) && fi.Kind != string(domain.InteractionInterested) {
			continue
		}
		if !wanted[fi.UserID] {
			continue
		}
		out = append(out, FollowStatus{UserID: fi.UserID, Status: domain.InteractionKind(fi.Kind)})
	}
	return out, nil
}

type errUserNotFoundType string

func (e errUserNotFoundType) Error() string { return "user not found: " + string(e) }

func errUserNotFound(userID string) error { return errUserNotFoundType(userID) }
