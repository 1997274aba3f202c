// Package engine implements the online recommendation pipeline: the per-request,
// read-only path from a viewer id to a ranked list of candidate events.
package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/evently-labs/recoengine/internal/apperrors"
	"github.com/evently-labs/recoengine/internal/config"
	"github.com/evently-labs/recoengine/internal/connector"
	"github.com/evently-labs/recoengine/internal/domain"
	"github.com/evently-labs/recoengine/internal/embedding"
	"github.com/evently-labs/recoengine/internal/logging"
	"github.com/evently-labs/recoengine/internal/strategy"
	"github.com/evently-labs/recoengine/internal/textproc"
	"github.com/evently-labs/recoengine/internal/vectorstore"
)

// Source is the provenance tag attached to every returned recommendation.
type Source string

const (
	SourceContent       Source = "content"
	SourceContentSocial Source = "content+social"
	SourceSocial        Source = "social"
	SourceFallback      Source = "fallback"
)

// sourceThreshold is the cutoff below which a scoring component is considered to have
// contributed nothing to a result's provenance tag.
const sourceThreshold = 1e-4

const (
	minK = 1
	maxK = 50
)

// Recommendation is one ranked result.
type Recommendation struct {
	EventID     int64
	Score       float64
	FriendCount int
	Source      Source
	Rank        int
}

// Result is the full response envelope for one Recommend call.
type Result struct {
	Recommendations []Recommendation
	ModelVersion    string
	Strategy        string
	GeneratedAt     time.Time
}

// Engine ties the vector store, connector, embedding generator, and strategy selector
// together into the recommend(viewer_id, k, strategy) contract.
type Engine struct {
	store      *vectorstore.Store
	conn       connector.Connector
	gen        embedding.Generator
	strategies *strategy.Selector
	cfg        *config.Config
	log        logging.Logger
}

func New(store *vectorstore.Store, conn connector.Connector, gen embedding.Generator, strategies *strategy.Selector, cfg *config.Config, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Noop()
	}
	return &Engine{store: store, conn: conn, gen: gen, strategies: strategies, cfg: cfg, log: log}
}

// Recommend runs the full per-request pipeline: Init → Synthesize → Retrieve → Boost →
// Rank → Emit, or → Fallback from any step. It never returns an empty success: either a
// ranked list or a fallback list tagged source="fallback".
func (e *Engine) Recommend(ctx context.Context, viewerID string, k int, strategyName string) (Result, error) {
	if k < minK || k > maxK {
		return Result{}, apperrors.New(apperrors.InvalidArgument, "engine.Recommend",
			fmt.Errorf("k must be in [%d, %d], got %d", minK, maxK, k))
	}
	w, err := e.strategies.Resolve(strategyName)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ConnectorTimeout+e.cfg.SearchTimeout)
	defer cancel()

	eventsSnap, err := e.store.Read(ctx, vectorstore.CollectionEvents)
	if err != nil {
		e.log.Warn("engine: events snapshot unavailable, falling back", "error", err)
		return e.fallback(ctx, k, w.Name, "")
	}

	userVec, err := e.synthesizeUserVector(ctx, viewerID, eventsSnap, now)
	if err != nil {
		if apperrors.Is(err, apperrors.Degraded) || apperrors.Is(err, apperrors.IntegrityError) {
			e.log.Warn("engine: synthesis degraded, falling back", "viewer", viewerID, "error", err)
			return e.fallback(ctx, k, w.Name, eventsSnap.Manifest.SHA256Hex)
		}
		if apperrors.Is(err, apperrors.NotFound) {
			return e.fallback(ctx, k, w.Name, eventsSnap.Manifest.SHA256Hex)
		}
		return Result{}, err
	}

	candidates, err := e.retrieve(ctx, viewerID, userVec, eventsSnap, k, w, now)
	if err != nil {
		e.log.Warn("engine: retrieval degraded, falling back", "viewer", viewerID, "error", err)
		return e.fallback(ctx, k, w.Name, eventsSnap.Manifest.SHA256Hex)
	}

	ranked, err := e.boostAndRank(ctx, viewerID, candidates, w, now)
	if err != nil {
		e.log.Warn("engine: boost degraded, falling back", "viewer", viewerID, "error", err)
		return e.fallback(ctx, k, w.Name, eventsSnap.Manifest.SHA256Hex)
	}
	if len(ranked) == 0 {
		e.log.Info("engine: no ranked candidates, falling back", "viewer", viewerID)
		return e.fallback(ctx, k, w.Name, eventsSnap.Manifest.SHA256Hex)
	}

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	return Result{
		Recommendations: ranked,
		ModelVersion:    eventsSnap.Manifest.SHA256Hex,
		Strategy:        w.Name,
		GeneratedAt:     now,
	}, nil
}

// synthesizeUserVector derives the viewer's query vector: a recency-decayed weighted
// average of the event vectors they interacted with, blended with the stored profile
// vector, or the stored vector alone when there are no usable interactions.
func (e *Engine) synthesizeUserVector(ctx context.Context, viewerID string, eventsSnap *vectorstore.Snapshot, now time.Time) ([]float32, error) {
	interactions, err := e.viewerInteractions(ctx, viewerID, now)
	if err != nil {
		return nil, err
	}

	storedVec, storedErr := e.storedUserVector(ctx, viewerID)

	if len(interactions) == 0 {
		if storedErr != nil {
			return nil, storedErr
		}
		return storedVec, nil
	}

	dim := eventsSnap.Manifest.Dim
	acc := make([]float64, dim)
	var totalWeight float64
	for _, in := range interactions {
		idx := eventsSnap.IndexOf(strconv.FormatInt(in.EventID, 10))
		if idx < 0 {
			continue
		}
		ageDays := now.Sub(in.CreatedAt).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		weight := e.cfg.InteractionWeight(in.Kind) * math.Exp(-ageDays/14)
		if weight <= 0 {
			continue
		}
		vec := eventsSnap.Matrix[idx]
		for d := 0; d < dim && d < len(vec); d++ {
			acc[d] += weight * float64(vec[d])
		}
		totalWeight += weight
	}

	if totalWeight == 0 {
		if storedErr != nil {
			return nil, storedErr
		}
		return storedVec, nil
	}

	interactionVec := make([]float32, dim)
	for d := 0; d < dim; d++ {
		interactionVec[d] = float32(acc[d] / totalWeight)
	}

	blend := e.cfg.ColdStartBlend
	final := make([]float32, dim)
	if storedErr == nil {
		for d := 0; d < dim; d++ {
			final[d] = float32((1-blend)*float64(interactionVec[d]) + blend*float64(storedVec[d]))
		}
	} else {
		final = interactionVec
	}

	return embedding.Normalize(final), nil
}

// viewerInteractions pulls the viewer's direct interactions within the recency horizon
// and adds the synthetic friend_going entries for events the viewer's followees are
// going to. friend_going entries are computed here per-request, never stored. A followee
// going to an event the viewer already interacted with directly adds nothing; the
// direct signal dominates it anyway.
func (e *Engine) viewerInteractions(ctx context.Context, viewerID string, now time.Time) ([]domain.Interaction, error) {
	horizon := time.Duration(e.cfg.RecencyHorizonDays) * 24 * time.Hour
	direct, err := e.conn.RecentInteractions(ctx, viewerID, now, horizon)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "engine.viewerInteractions", err)
	}

	seen := make(map[int64]bool, len(direct))
	for _, in := range direct {
		seen[in.EventID] = true
	}

	followees, err := e.conn.Followees(ctx, viewerID)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "engine.viewerInteractions", err)
	}

	out := direct
	for _, followee := range followees {
		theirs, err := e.conn.RecentInteractions(ctx, followee, now, horizon)
		if err != nil {
			return nil, apperrors.New(apperrors.Degraded, "engine.viewerInteractions", err)
		}
		for _, in := range theirs {
			if in.Kind != domain.InteractionGoing || seen[in.EventID] {
				continue
			}
			out = append(out, domain.Interaction{
				UserID:    viewerID,
				EventID:   in.EventID,
				Kind:      domain.InteractionFriendGoing,
				CreatedAt: in.CreatedAt,
			})
		}
	}
	return out, nil
}

// storedUserVector resolves the viewer's row in the users collection, embedding the
// viewer's profile text on demand if the viewer exists in the connector but not yet in
// the published users collection (a newly created account ahead of the next build). A
// viewer whose profile carried no text at build time has no usable stored vector and is
// reported NotFound, so a viewer with neither interactions nor profile routes to the
// fallback path.
func (e *Engine) storedUserVector(ctx context.Context, viewerID string) ([]float32, error) {
	usersSnap, err := e.store.Read(ctx, vectorstore.CollectionUsers)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "engine.storedUserVector", err)
	}
	if idx := usersSnap.IndexOf(viewerID); idx >= 0 {
		if idx < len(usersSnap.Metadata) && usersSnap.Metadata[idx]["has_profile"] == "false" {
			return nil, apperrors.New(apperrors.NotFound, "engine.storedUserVector",
				fmt.Errorf("viewer %s has no usable profile vector", viewerID))
		}
		return usersSnap.Matrix[idx], nil
	}

	user, err := e.conn.UserByID(ctx, viewerID)
	if err != nil {
		return nil, apperrors.New(apperrors.NotFound, "engine.storedUserVector", err)
	}
	text := textproc.UserText(user.Bio, user.Interests, user.Location)
	if text == "" {
		return nil, apperrors.New(apperrors.NotFound, "engine.storedUserVector",
			fmt.Errorf("viewer %s has no usable profile text", viewerID))
	}
	vec, err := e.gen.Embed(ctx, text)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "engine.storedUserVector", err)
	}
	return embedding.Normalize(vec), nil
}

type candidate struct {
	eventID     int64
	baseSim     float64
	startTime   time.Time
	organizerID string
}

// retrieve runs the candidate vector search with k_search = max(100, 4k) and the
// exclusion filter: not authored by the viewer, not already going/organized, and
// starting after now. The filter does not check archival: the events collection holds
// the events that were non-archived at build time, and one archived since that build
// still passes.
func (e *Engine) retrieve(ctx context.Context, viewerID string, userVec []float32, eventsSnap *vectorstore.Snapshot, k int, w strategy.Weights, now time.Time) ([]candidate, error) {
	excluded, err := e.excludedEventIDs(ctx, viewerID, now)
	if err != nil {
		return nil, err
	}

	kSearch := 4 * k
	if kSearch < 100 {
		kSearch = 100
	}

	filter := func(id string, meta vectorstore.Metadata) bool {
		if meta["organizer_id"] == viewerID {
			return false
		}
		eventID, err := strconv.ParseInt(id, 10, 64)
		if err != nil || excluded[eventID] {
			return false
		}
		if st, err := time.Parse(time.RFC3339, meta["start_time"]); err == nil {
			if !st.After(now) {
				return false
			}
		}
		return true
	}

	results, err := eventsSnap.Search(userVec, kSearch, filter)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "engine.retrieve", err)
	}

	out := make([]candidate, 0, len(results))
	for _, r := range results {
		idx := eventsSnap.IndexOf(r.ID)
		if idx < 0 {
			continue
		}
		eventID, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			continue
		}
		meta := eventsSnap.Metadata[idx]
		startTime, _ := time.Parse(time.RFC3339, meta["start_time"])
		out = append(out, candidate{
			eventID:     eventID,
			baseSim:     r.Score,
			startTime:   startTime,
			organizerID: meta["organizer_id"],
		})
	}
	return out, nil
}

// excludedEventIDs is the set of events the viewer organized or is already going to;
// those never surface in their own recommendations.
func (e *Engine) excludedEventIDs(ctx context.Context, viewerID string, now time.Time) (map[int64]bool, error) {
	horizon := 365 * 10 * 24 * time.Hour // effectively unbounded: exclusions never expire
	interactions, err := e.conn.RecentInteractions(ctx, viewerID, now, horizon)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "engine.excludedEventIDs", err)
	}
	out := make(map[int64]bool)
	for _, in := range interactions {
		if in.Kind == domain.InteractionGoing || in.Kind == domain.InteractionOrganized {
			out[in.EventID] = true
		}
	}
	return out, nil
}

// boostAndRank applies the social boost, recency weighting, final scoring, and
// provenance tagging, then sorts by score with start-time and id tie-breaks.
func (e *Engine) boostAndRank(ctx context.Context, viewerID string, candidates []candidate, w strategy.Weights, now time.Time) ([]Recommendation, error) {
	followees, err := e.conn.Followees(ctx, viewerID)
	if err != nil {
		return nil, apperrors.New(apperrors.Degraded, "engine.boostAndRank", err)
	}

	out := make([]Recommendation, 0, len(candidates))
	for _, c := range candidates {
		statuses, err := e.conn.FriendStatusesForEvent(ctx, c.eventID, followees)
		if err != nil {
			return nil, apperrors.New(apperrors.Degraded, "engine.boostAndRank", err)
		}
		// A followee may hold both a going and an interested row on the same event;
		// the boost counts distinct friends, not interaction rows.
		distinct := make(map[string]bool, len(statuses))
		for _, s := range statuses {
			distinct[s.UserID] = true
		}
		friendCount := len(distinct)

		cappedFriends := friendCount
		if cappedFriends > w.FriendCap {
			cappedFriends = w.FriendCap
		}

		recency := recencyMultiplier(c.startTime, now)

		var score float64
		var source Source
		if w.DropNoFriends {
			if friendCount == 0 {
				continue
			}
			score = w.FriendStep * float64(cappedFriends)
			source = SourceSocial
		} else {
			friendBoost := 1 + w.FriendStep*float64(cappedFriends)
			score = w.BaseSimWeight * c.baseSim * friendBoost * recency
			contentSignificant := w.BaseSimWeight*c.baseSim > sourceThreshold
			socialSignificant := friendBoost-1 > sourceThreshold
			switch {
			case contentSignificant && socialSignificant:
				source = SourceContentSocial
			case socialSignificant:
				source = SourceSocial
			default:
				source = SourceContent
			}
		}

		out = append(out, Recommendation{
			EventID:     c.eventID,
			Score:       score,
			FriendCount: friendCount,
			Source:      source,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		ci, cj := findCandidate(candidates, out[i].EventID), findCandidate(candidates, out[j].EventID)
		if !ci.startTime.Equal(cj.startTime) {
			return ci.startTime.Before(cj.startTime)
		}
		return out[i].EventID < out[j].EventID
	})

	return out, nil
}

func findCandidate(candidates []candidate, eventID int64) candidate {
	for _, c := range candidates {
		if c.eventID == eventID {
			return c
		}
	}
	return candidate{}
}

// recencyMultiplier weights events by temporal proximity: 1.25 within a week, 1.10
// within two, flat beyond that.
func recencyMultiplier(startTime, now time.Time) float64 {
	daysUntilStart := int(startTime.Sub(now).Hours() / 24)
	switch {
	case daysUntilStart <= 7:
		return 1.25
	case daysUntilStart <= 14:
		return 1.10
	default:
		return 1.00
	}
}

// fallback returns the top-K upcoming events by start_time ascending with
// source="fallback" and score=0, so the engine never returns an empty success.
func (e *Engine) fallback(ctx context.Context, k int, strategyName, modelVersion string) (Result, error) {
	now := time.Now().UTC()
	events, err := e.conn.FutureEvents(ctx)
	if err != nil {
		return Result{}, apperrors.New(apperrors.Internal, "engine.fallback", err)
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].StartTime.Before(events[j].StartTime)
		}
		return events[i].ID < events[j].ID
	})

	if len(events) > k {
		events = events[:k]
	}

	recs := make([]Recommendation, len(events))
	for i, ev := range events {
		recs[i] = Recommendation{EventID: ev.ID, Score: 0, FriendCount: 0, Source: SourceFallback, Rank: i + 1}
	}

	if modelVersion == "" {
		modelVersion = "unavailable-" + uuid.NewString()
	}

	return Result{
		Recommendations: recs,
		ModelVersion:    modelVersion,
		Strategy:        strategyName,
		GeneratedAt:     now,
	}, nil
}
