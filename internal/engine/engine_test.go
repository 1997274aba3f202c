package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evently-labs/recoengine/internal/builder"
	"github.com/evently-labs/recoengine/internal/config"
	"github.com/evently-labs/recoengine/internal/connector"
	"github.com/evently-labs/recoengine/internal/domain"
	"github.com/evently-labs/recoengine/internal/embedding"
	"github.com/evently-labs/recoengine/internal/logging"
	"github.com/evently-labs/recoengine/internal/strategy"
	"github.com/evently-labs/recoengine/internal/vectorstore"
)

// scenarioFixture builds a small but realistic corpus:
// U1 is a cold-start viewer with interests music/food and no interactions.
// U2 has a "going" interaction on E10, follows U3 and U4, both of whom are "going" on E42.
// U5 organizes E7 and is "going" on E8; neither should ever be recommended to U5.
func scenarioFixture(now time.Time) connector.Fixture {
	event := func(id int64, title, category, organizer string, daysOut int) connector.FixtureEvent {
		return connector.FixtureEvent{
			ID: id, Title: title, Category: category, Description: title,
			OrganizerID: organizer, StartTime: now.Add(time.Duration(daysOut) * 24 * time.Hour), CreatedAt: now,
		}
	}
	events := []connector.FixtureEvent{
		event(10, "Jazz Night", "music", "organizer", 3),
		event(20, "Food Fair", "food", "organizer", 5),
		event(30, "Art Walk", "art", "organizer", 20),
		event(42, "Rock Show", "music", "organizer", 6),
		event(7, "U5 Own Event", "music", "u5", 4),
		event(8, "U5 Going Event", "food", "organizer", 9),
	}
	for i := int64(100); i < 106; i++ {
		events = append(events, event(i, "Filler Event", "misc", "organizer", int(i-95)))
	}

	return connector.Fixture{
		Events: events,
		Users: []connector.FixtureUser{
			{ID: "u1", Username: "alice", Interests: []string{"music", "food"}, Kind: "individual", CreatedAt: now, UpdatedAt: now},
			{ID: "u2", Username: "bob", Interests: []string{"music"}, Kind: "individual", CreatedAt: now, UpdatedAt: now},
			{ID: "u3", Username: "carl", Kind: "individual", CreatedAt: now, UpdatedAt: now},
			{ID: "u4", Username: "dana", Kind: "individual", CreatedAt: now, UpdatedAt: now},
			{ID: "u5", Username: "erin", Interests: []string{"music"}, Kind: "individual", CreatedAt: now, UpdatedAt: now},
		},
		Interactions: []connector.FixtureInteraction{
			{UserID: "u2", EventID: 10, Kind: "going", CreatedAt: now.Add(-7 * 24 * time.Hour)},
			{UserID: "u3", EventID: 42, Kind: "going", CreatedAt: now},
			{UserID: "u4", EventID: 42, Kind: "going", CreatedAt: now},
			{UserID: "u5", EventID: 7, Kind: "organized", CreatedAt: now},
			{UserID: "u5", EventID: 8, Kind: "going", CreatedAt: now},
		},
		Follows: []connector.FixtureFollow{
			{Follower: "u2", Followee: "u3", CreatedAt: now},
			{Follower: "u2", Followee: "u4", CreatedAt: now},
		},
		Categories: []string{"music", "food", "art", "misc"},
		Tags:       []string{},
	}
}

func buildTestEngine(t *testing.T, fixture connector.Fixture) (*Engine, connector.Connector) {
	t.Helper()
	cfg := config.Default()
	cfg.MinEvents = 3
	cfg.MinUsers = 1
	cfg.EmbeddingDim = 16
	cfg.UserSimTopK = 2

	conn := connector.NewFixtureConnector(fixture)
	gen, err := embedding.New(embedding.Config{Dim: cfg.EmbeddingDim, Mode: embedding.Lenient, BatchMax: cfg.EmbeddingBatchMax})
	require.NoError(t, err)
	store, err := vectorstore.Open(t.TempDir())
	require.NoError(t, err)

	b := builder.New(conn, gen, store, cfg, logging.Noop())
	_, err = b.Run(context.Background())
	require.NoError(t, err)

	sel := strategy.New(cfg)
	eng := New(store, conn, gen, sel, cfg, logging.Noop())
	return eng, conn
}

func TestRecommend_ColdStartReturnsRankedContentResults(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	result, err := eng.Recommend(context.Background(), "u1", 5, strategy.Hybrid)
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 5)

	for _, r := range result.Recommendations {
		assert.NotEqual(t, Source(""), r.Source)
		assert.NotEqual(t, SourceFallback, r.Source)
	}
}

func TestRecommend_ExcludesOrganizedAndGoingEvents(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	result, err := eng.Recommend(context.Background(), "u5", 50, strategy.Hybrid)
	require.NoError(t, err)

	for _, r := range result.Recommendations {
		assert.NotEqual(t, int64(7), r.EventID)
		assert.NotEqual(t, int64(8), r.EventID)
	}
}

func TestRecommend_FriendsOnlyDropsZeroFriendCandidates(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	result, err := eng.Recommend(context.Background(), "u2", 10, strategy.FriendsOnly)
	require.NoError(t, err)

	for _, r := range result.Recommendations {
		assert.GreaterOrEqual(t, r.FriendCount, 1)
		assert.Equal(t, SourceSocial, r.Source)
	}
}

func TestRecommend_SocialLiftBoostsSharedFriendEvent(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	hybrid, err := eng.Recommend(context.Background(), "u2", 20, strategy.Hybrid)
	require.NoError(t, err)

	var e42Rec *Recommendation
	for i := range hybrid.Recommendations {
		if hybrid.Recommendations[i].EventID == 42 {
			e42Rec = &hybrid.Recommendations[i]
		}
	}
	require.NotNil(t, e42Rec, "event 42 should be a candidate for u2")
	assert.Equal(t, 2, e42Rec.FriendCount)
	assert.Contains(t, []Source{SourceContentSocial, SourceSocial}, e42Rec.Source)
}

func TestRecommend_FriendCountIsDistinctFollowees(t *testing.T) {
	now := time.Now().UTC()
	fixture := scenarioFixture(now)
	// u3 holds both a going and an interested row on event 42; they are still one
	// friend, so u2's friend count on 42 stays at 2 (u3 and u4).
	fixture.Interactions = append(fixture.Interactions, connector.FixtureInteraction{
		UserID: "u3", EventID: 42, Kind: "interested", CreatedAt: now,
	})
	eng, _ := buildTestEngine(t, fixture)

	result, err := eng.Recommend(context.Background(), "u2", 20, strategy.Hybrid)
	require.NoError(t, err)

	for _, r := range result.Recommendations {
		if r.EventID == 42 {
			assert.Equal(t, 2, r.FriendCount)
		}
	}
}

func TestRecommend_InvalidKRejected(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	_, err := eng.Recommend(context.Background(), "u1", 0, strategy.Hybrid)
	assert.Error(t, err)

	_, err = eng.Recommend(context.Background(), "u1", 51, strategy.Hybrid)
	assert.Error(t, err)
}

func TestRecommend_UnknownStrategyRejected(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	_, err := eng.Recommend(context.Background(), "u1", 5, "nonexistent")
	assert.Error(t, err)
}

func TestRecommend_SmallerKIsPrefixOfLargerK(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	small, err := eng.Recommend(context.Background(), "u1", 3, strategy.Hybrid)
	require.NoError(t, err)
	large, err := eng.Recommend(context.Background(), "u1", 10, strategy.Hybrid)
	require.NoError(t, err)

	require.GreaterOrEqual(t, len(large.Recommendations), len(small.Recommendations))
	for i, r := range small.Recommendations {
		assert.Equal(t, large.Recommendations[i].EventID, r.EventID)
	}
}

func TestRecommend_DeterministicForFixedState(t *testing.T) {
	now := time.Now().UTC()
	eng, _ := buildTestEngine(t, scenarioFixture(now))

	first, err := eng.Recommend(context.Background(), "u2", 10, strategy.Hybrid)
	require.NoError(t, err)
	second, err := eng.Recommend(context.Background(), "u2", 10, strategy.Hybrid)
	require.NoError(t, err)

	require.Len(t, second.Recommendations, len(first.Recommendations))
	for i := range first.Recommendations {
		assert.Equal(t, first.Recommendations[i].EventID, second.Recommendations[i].EventID)
		assert.InDelta(t, first.Recommendations[i].Score, second.Recommendations[i].Score, 1e-6)
	}
	assert.Equal(t, first.ModelVersion, second.ModelVersion)
}

func TestSynthesizeUserVector_SingleGoingEqualsEventVector(t *testing.T) {
	now := time.Now().UTC()
	fixture := scenarioFixture(now)
	// A viewer with no profile text and exactly one "going" interaction: the
	// synthesized vector must equal the event's own vector after renormalization.
	fixture.Users = append(fixture.Users, connector.FixtureUser{
		ID: "solo", Username: "solo", Kind: "individual", CreatedAt: now, UpdatedAt: now,
	})
	fixture.Interactions = append(fixture.Interactions, connector.FixtureInteraction{
		UserID: "solo", EventID: 30, Kind: "going", CreatedAt: now.Add(-2 * 24 * time.Hour),
	})
	eng, _ := buildTestEngine(t, fixture)

	snap, err := eng.store.Read(context.Background(), vectorstore.CollectionEvents)
	require.NoError(t, err)
	idx := snap.IndexOf("30")
	require.GreaterOrEqual(t, idx, 0)

	vec, err := eng.synthesizeUserVector(context.Background(), "solo", snap, now)
	require.NoError(t, err)
	require.Len(t, vec, len(snap.Matrix[idx]))
	for d := range vec {
		assert.InDelta(t, snap.Matrix[idx][d], vec[d], 1e-4)
	}
}

func TestViewerInteractions_AddsSyntheticFriendGoing(t *testing.T) {
	now := time.Now().UTC()
	fixture := scenarioFixture(now)
	// u6 has no interactions of their own but follows u3, who is going to event 42.
	fixture.Users = append(fixture.Users, connector.FixtureUser{
		ID: "u6", Username: "fred", Kind: "individual", CreatedAt: now, UpdatedAt: now,
	})
	fixture.Follows = append(fixture.Follows, connector.FixtureFollow{
		Follower: "u6", Followee: "u3", CreatedAt: now,
	})
	eng, _ := buildTestEngine(t, fixture)

	interactions, err := eng.viewerInteractions(context.Background(), "u6", now)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, int64(42), interactions[0].EventID)
	assert.Equal(t, "u6", interactions[0].UserID)
	assert.Equal(t, domain.InteractionFriendGoing, interactions[0].Kind)
}

func TestViewerInteractions_DirectInteractionSuppressesFriendGoing(t *testing.T) {
	now := time.Now().UTC()
	fixture := scenarioFixture(now)
	// u2 follows u3/u4 who are going to 42; give u2 a direct interaction on 42 too.
	fixture.Interactions = append(fixture.Interactions, connector.FixtureInteraction{
		UserID: "u2", EventID: 42, Kind: "interested", CreatedAt: now,
	})
	eng, _ := buildTestEngine(t, fixture)

	interactions, err := eng.viewerInteractions(context.Background(), "u2", now)
	require.NoError(t, err)

	friendGoingOn42 := 0
	for _, in := range interactions {
		if in.EventID == 42 && in.Kind == domain.InteractionFriendGoing {
			friendGoingOn42++
		}
	}
	assert.Zero(t, friendGoingOn42)
}

func TestRecommend_UnpublishedStoreFallsBackToPopularity(t *testing.T) {
	now := time.Now().UTC()
	cfg := config.Default()
	cfg.MinEvents = 3
	cfg.MinUsers = 1
	cfg.EmbeddingDim = 16
	cfg.UserSimTopK = 2

	fixture := scenarioFixture(now)
	conn := connector.NewFixtureConnector(fixture)
	gen, err := embedding.New(embedding.Config{Dim: cfg.EmbeddingDim, Mode: embedding.Lenient, BatchMax: cfg.EmbeddingBatchMax})
	require.NoError(t, err)
	emptyStoreDir := t.TempDir()
	store, err := vectorstore.Open(emptyStoreDir)
	require.NoError(t, err)
	// Deliberately never publish a collection: Read will fail, which the engine
	// must translate into the fallback path.

	sel := strategy.New(cfg)
	eng := New(store, conn, gen, sel, cfg, logging.Noop())

	result, err := eng.Recommend(context.Background(), "u1", 3, strategy.Hybrid)
	require.NoError(t, err)
	require.Len(t, result.Recommendations, 3)
	for _, r := range result.Recommendations {
		assert.Equal(t, SourceFallback, r.Source)
		assert.Equal(t, float64(0), r.Score)
	}
	for i := 1; i < len(result.Recommendations); i++ {
		assert.LessOrEqual(t, result.Recommendations[i-1].Rank, result.Recommendations[i].Rank)
	}
}
