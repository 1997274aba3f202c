package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently-labs/recoengine/internal/domain"
)

func sampleFixture(now time.Time) Fixture {
	return Fixture{
		Events: []FixtureEvent{
			{ID: 1, Title: "Future Concert", OrganizerID: "u1", StartTime: now.Add(48 * time.Hour), CreatedAt: now},
			{ID: 2, Title: "Past Concert", OrganizerID: "u1", StartTime: now.Add(-48 * time.Hour), CreatedAt: now},
			{ID: 3, Title: "Archived", OrganizerID: "u1", StartTime: now.Add(48 * time.Hour), Archived: true, CreatedAt: now},
		},
		Users: []FixtureUser{
			{ID: "u1", Username: "alice", Kind: "individual"},
			{ID: "u2", Username: "bob", Kind: "individual"},
		},
		Interactions: []FixtureInteraction{
			{UserID: "u2", EventID: 1, Kind: "going", CreatedAt: now.Add(-1 * time.Hour)},
		},
		Follows: []FixtureFollow{
			{Follower: "u2", Followee: "u1", CreatedAt: now},
		},
		Categories: []string{"music"},
		Tags:       []string{"live"},
	}
}

func TestFixtureConnector_FutureEvents_ExcludesPastAndArchived(t *testing.T) {
	now := time.Now().UTC()
	c := NewFixtureConnector(sampleFixture(now))

	events, err := c.FutureEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].ID)
}

func TestFixtureConnector_UserByID(t *testing.T) {
	now := time.Now().UTC()
	c := NewFixtureConnector(sampleFixture(now))

	u, err := c.UserByID(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Username)

	_, err = c.UserByID(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestFixtureConnector_RecentInteractions_RespectsHorizon(t *testing.T) {
	now := time.Now().UTC()
	c := NewFixtureConnector(sampleFixture(now))

	in, err := c.RecentInteractions(context.Background(), "u2", now, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, in, 1)
	assert.Equal(t, domain.InteractionGoing, in[0].Kind)

	in, err = c.RecentInteractions(context.Background(), "u2", now.Add(-2*time.Hour), 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestFixtureConnector_Followees(t *testing.T) {
	now := time.Now().UTC()
	c := NewFixtureConnector(sampleFixture(now))

	followees, err := c.Followees(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, followees)
}

func TestFixtureConnector_FriendStatusesForEvent(t *testing.T) {
	now := time.Now().UTC()
	c := NewFixtureConnector(sampleFixture(now))

	statuses, err := c.FriendStatusesForEvent(context.Background(), 1, []string{"u2", "u1"})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, "u2", statuses[0].UserID)
}

func TestFixtureConnector_CategoriesAndTags(t *testing.T) {
	now := time.Now().UTC()
	c := NewFixtureConnector(sampleFixture(now))

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "music", cats[0].Name)

	tags, err := c.Tags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "live", tags[0].Name)
}
