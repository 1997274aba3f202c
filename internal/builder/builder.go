// Package builder implements the offline model build: the batch job that turns the
// current connector state into the three published vector-store collections (events,
// users, user_sim) the engine reads at request time.
package builder

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/evently-labs/recoengine/internal/apperrors"
	"github.com/evently-labs/recoengine/internal/config"
	"github.com/evently-labs/recoengine/internal/connector"
	"github.com/evently-labs/recoengine/internal/domain"
	"github.com/evently-labs/recoengine/internal/embedding"
	"github.com/evently-labs/recoengine/internal/logging"
	"github.com/evently-labs/recoengine/internal/textproc"
	"github.com/evently-labs/recoengine/internal/vectorstore"
)

// Report summarizes one build run: counts, manifests, quality metrics, and the
// published version record.
type Report struct {
	BuiltAt         time.Time
	EventCount      int
	UserCount       int
	CategoryCount   int
	TagCount        int
	EventsManifest  vectorstore.Manifest
	UsersManifest   vectorstore.Manifest
	UserSimManifest vectorstore.Manifest
	Metrics         QualityMetrics
	Version         VersionRecord
}

// Builder runs the offline Model Builder job against a Connector, producing embeddings
// through a Generator and publishing to a vectorstore.Store.
type Builder struct {
	conn  connector.Connector
	gen   embedding.Generator
	store *vectorstore.Store
	cfg   *config.Config
	log   logging.Logger
}

func New(conn connector.Connector, gen embedding.Generator, store *vectorstore.Store, cfg *config.Config, log logging.Logger) *Builder {
	if log == nil {
		log = logging.Noop()
	}
	return &Builder{conn: conn, gen: gen, store: store, cfg: cfg, log: log}
}

// Run loads the corpus, embeds events and users, computes the user-similarity table,
// and publishes all three collections. It aborts with InvalidArgument before touching
// the store if the corpus is too small to produce a meaningful model
// (min_events/min_users).
func (b *Builder) Run(ctx context.Context) (Report, error) {
	report := Report{}

	categories, err := b.conn.Categories(ctx)
	if err != nil {
		return report, err
	}
	tags, err := b.conn.Tags(ctx)
	if err != nil {
		return report, err
	}
	report.CategoryCount = len(categories)
	report.TagCount = len(tags)

	events, err := b.conn.FutureEvents(ctx)
	if err != nil {
		return report, err
	}
	if len(events) < b.cfg.MinEvents {
		return report, apperrors.New(apperrors.InvalidArgument, "builder.Run",
			fmt.Errorf("only %d future events, need at least %d", len(events), b.cfg.MinEvents))
	}
	report.EventCount = len(events)

	users, err := b.conn.ActiveUsers(ctx)
	if err != nil {
		return report, err
	}
	if len(users) < b.cfg.MinUsers {
		return report, apperrors.New(apperrors.InvalidArgument, "builder.Run",
			fmt.Errorf("only %d active users, need at least %d", len(users), b.cfg.MinUsers))
	}
	report.UserCount = len(users)

	b.log.Info("builder: corpus loaded", "events", len(events), "users", len(users))

	eventIDs, eventVecs, eventMeta, err := b.embedEvents(ctx, events)
	if err != nil {
		return report, err
	}
	userIDs, userVecs, userMeta, err := b.embedUsers(ctx, users)
	if err != nil {
		return report, err
	}

	simIDs, simVecs, simMeta := buildUserSimilarity(userIDs, userVecs, b.cfg.UserSimTopK)

	eventsManifest, err := b.store.Write(ctx, vectorstore.CollectionEvents, eventIDs, eventVecs, eventMeta, b.gen.Dim(), "cosine")
	if err != nil {
		return report, err
	}
	usersManifest, err := b.store.Write(ctx, vectorstore.CollectionUsers, userIDs, userVecs, userMeta, b.gen.Dim(), "cosine")
	if err != nil {
		return report, err
	}
	userSimManifest, err := b.store.Write(ctx, vectorstore.CollectionUserSim, simIDs, simVecs, simMeta, len(userIDs), "cosine-topk")
	if err != nil {
		return report, err
	}

	report.BuiltAt = eventsManifest.CreatedAt
	report.EventsManifest = eventsManifest
	report.UsersManifest = usersManifest
	report.UserSimManifest = userSimManifest

	b.log.Info("builder: published",
		"events_rows", eventsManifest.Rows, "users_rows", usersManifest.Rows, "user_sim_rows", userSimManifest.Rows)

	var sampleText string
	if len(events) > 0 {
		sampleText = textproc.EventText(events[0].Title, events[0].Category, events[0].Tags, events[0].Description, events[0].Location)
	}
	deterministic, err := b.determinismSpotCheck(ctx, sampleText)
	if err != nil {
		return report, err
	}

	report.Metrics = QualityMetrics{
		BuiltAt:                report.BuiltAt,
		EventCoverage:          eventCoverage(events),
		UserCoverage:           userCoverage(users),
		EmbeddingDeterministic: deterministic,
		EventDiversity:         meanPairwiseCosineDiversity(eventVecs),
	}
	report.Version = VersionRecord{
		CreatedAt:       report.BuiltAt,
		EventCount:      report.EventCount,
		UserCount:       report.UserCount,
		EventsChecksum:  eventsManifest.SHA256Hex,
		UsersChecksum:   usersManifest.SHA256Hex,
		UserSimChecksum: userSimManifest.SHA256Hex,
	}
	if err := writeModelArtifacts(b.store.BasePath(), report.Metrics, report.Version); err != nil {
		return report, err
	}

	b.log.Info("builder: quality metrics",
		"event_coverage", report.Metrics.EventCoverage, "user_coverage", report.Metrics.UserCoverage,
		"deterministic", report.Metrics.EmbeddingDeterministic, "diversity", report.Metrics.EventDiversity)

	return report, nil
}

// embedEvents composes canonical text per event and embeds in bounded batches.
func (b *Builder) embedEvents(ctx context.Context, events []domain.Event) ([]string, [][]float32, []vectorstore.Metadata, error) {
	texts := make([]string, len(events))
	for i, e := range events {
		texts[i] = textproc.EventText(e.Title, e.Category, e.Tags, e.Description, e.Location)
	}
	vecs, err := b.embedBatched(ctx, texts)
	if err != nil {
		return nil, nil, nil, err
	}

	ids := make([]string, len(events))
	meta := make([]vectorstore.Metadata, len(events))
	for i, e := range events {
		ids[i] = fmt.Sprintf("%d", e.ID)
		m := vectorstore.Metadata{
			"category":     e.Category,
			"organizer_id": e.OrganizerID,
			"start_time":   e.StartTime.UTC().Format(time.RFC3339),
		}
		if e.OrganizationID != nil {
			m["organization_id"] = *e.OrganizationID
		}
		meta[i] = m
	}
	return ids, vecs, meta, nil
}

// embedUsers composes canonical text per user (bio/interests/location) and embeds in
// bounded batches. The metadata sidecar records whether the profile carried any text,
// so serving can tell an empty-profile vector from a real one.
func (b *Builder) embedUsers(ctx context.Context, users []domain.User) ([]string, [][]float32, []vectorstore.Metadata, error) {
	texts := make([]string, len(users))
	for i, u := range users {
		texts[i] = textproc.UserText(u.Bio, u.Interests, u.Location)
	}
	vecs, err := b.embedBatched(ctx, texts)
	if err != nil {
		return nil, nil, nil, err
	}

	ids := make([]string, len(users))
	meta := make([]vectorstore.Metadata, len(users))
	for i, u := range users {
		ids[i] = u.ID
		hasProfile := "false"
		if texts[i] != "" {
			hasProfile = "true"
		}
		meta[i] = vectorstore.Metadata{"kind": string(u.Kind), "has_profile": hasProfile}
	}
	return ids, vecs, meta, nil
}

func (b *Builder) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	batchMax := b.cfg.EmbeddingBatchMax
	if batchMax <= 0 {
		batchMax = 64
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchMax {
		end := start + batchMax
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := b.gen.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, apperrors.New(apperrors.Internal, "builder.embedBatched", err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// buildUserSimilarity computes dense user-user cosine similarity and keeps, for every
// user, their top-K most similar other users. The user_sim
// collection reuses the vectorstore codec by storing, per user row, a sparse
// similarity vector over the full user id space: column j holds the similarity to
// userIDs[j], 0 where not in that user's top-K.
func buildUserSimilarity(userIDs []string, userVecs [][]float32, topK int) ([]string, [][]float32, []vectorstore.Metadata) {
	n := len(userIDs)
	simRows := make([][]float32, n)
	meta := make([]vectorstore.Metadata, n)

	for i := 0; i < n; i++ {
		type scored struct {
			j     int
			score float64
		}
		scores := make([]scored, 0, n-1)
		for j := 0; j < n; j++ {
			if j == i {
				continue
			}
			scores = append(scores, scored{j: j, score: cosine(userVecs[i], userVecs[j])})
		}
		sort.Slice(scores, func(a, c int) bool {
			if scores[a].score != scores[c].score {
				return scores[a].score > scores[c].score
			}
			return userIDs[scores[a].j] < userIDs[scores[c].j]
		})
		if len(scores) > topK {
			scores = scores[:topK]
		}

		row := make([]float32, n)
		for _, s := range scores {
			row[s.j] = float32(s.score)
		}
		simRows[i] = row
		meta[i] = vectorstore.Metadata{"top_k": fmt.Sprintf("%d", len(scores))}
	}

	return append([]string(nil), userIDs...), simRows, meta
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
