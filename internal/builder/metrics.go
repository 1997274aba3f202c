package builder

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/evently-labs/recoengine/internal/apperrors"
	"github.com/evently-labs/recoengine/internal/domain"
)

// QualityMetrics is the per-build quality report: event/user text coverage, a
// determinism spot-check on the embedding path, and mean pairwise cosine diversity of
// a random event sample. Written to model_artifacts/metrics.json alongside the three
// vector collections.
type QualityMetrics struct {
	BuiltAt                time.Time `json:"built_at"`
	EventCoverage          float64   `json:"event_coverage"`
	UserCoverage           float64   `json:"user_coverage"`
	EmbeddingDeterministic bool      `json:"embedding_deterministic"`
	EventDiversity         float64   `json:"event_diversity"`
}

// VersionRecord is the top-level record of one published model version, written to
// model_artifacts/versions.json.
type VersionRecord struct {
	CreatedAt       time.Time `json:"created_at"`
	EventCount      int       `json:"event_count"`
	UserCount       int       `json:"user_count"`
	EventsChecksum  string    `json:"events_sha256_hex"`
	UsersChecksum   string    `json:"users_sha256_hex"`
	UserSimChecksum string    `json:"user_sim_sha256_hex"`
}

// eventCoverage is the fraction of events with at least one non-empty field used in
// the canonical text (title, category, tags, description, location).
func eventCoverage(events []domain.Event) float64 {
	if len(events) == 0 {
		return 0
	}
	covered := 0
	for _, e := range events {
		if e.Title != "" || e.Category != "" || len(e.Tags) > 0 || e.Description != "" || e.Location != "" {
			covered++
		}
	}
	return float64(covered) / float64(len(events))
}

// userCoverage is the fraction of users with at least one interest or a non-empty bio.
func userCoverage(users []domain.User) float64 {
	if len(users) == 0 {
		return 0
	}
	covered := 0
	for _, u := range users {
		if u.Bio != "" || len(u.Interests) > 0 {
			covered++
		}
	}
	return float64(covered) / float64(len(users))
}

// determinismSpotCheck re-embeds a single sample text and confirms the generator
// returns a bit-identical vector within the same run.
func (b *Builder) determinismSpotCheck(ctx context.Context, sample string) (bool, error) {
	if sample == "" {
		return true, nil
	}
	first, err := b.gen.Embed(ctx, sample)
	if err != nil {
		return false, apperrors.New(apperrors.Internal, "builder.determinismSpotCheck", err)
	}
	second, err := b.gen.Embed(ctx, sample)
	if err != nil {
		return false, apperrors.New(apperrors.Internal, "builder.determinismSpotCheck", err)
	}
	if len(first) != len(second) {
		return false, nil
	}
	for i := range first {
		if first[i] != second[i] {
			return false, nil
		}
	}
	return true, nil
}

// eventDiversitySampleSize caps how many events are drawn for the pairwise diversity
// metric, so the O(n^2) cosine comparisons stay cheap even for large corpora.
const eventDiversitySampleSize = 50

// meanPairwiseCosineDiversity draws up to eventDiversitySampleSize vectors (uniformly,
// seeded by row count so the sample is reproducible for a fixed corpus size) and
// returns the mean of 1-cosine over all pairs: higher means the sample covers more
// distinct directions in embedding space.
func meanPairwiseCosineDiversity(vecs [][]float32) float64 {
	n := len(vecs)
	if n < 2 {
		return 0
	}
	sample := vecs
	if n > eventDiversitySampleSize {
		r := rand.New(rand.NewSource(int64(n)))
		idx := r.Perm(n)[:eventDiversitySampleSize]
		sample = make([][]float32, len(idx))
		for i, j := range idx {
			sample[i] = vecs[j]
		}
	}

	var sum float64
	var pairs int
	for i := 0; i < len(sample); i++ {
		for j := i + 1; j < len(sample); j++ {
			sum += 1 - cosine(sample[i], sample[j])
			pairs++
		}
	}
	if pairs == 0 {
		return 0
	}
	return sum / float64(pairs)
}

// writeModelArtifacts publishes metrics.json and versions.json under
// <vectorStorePath>/model_artifacts/, overwriting any prior run's files — these are
// reporting sidecars, not versioned collections, so they do not need the vector
// store's atomic-rename publication.
func writeModelArtifacts(basePath string, metrics QualityMetrics, version VersionRecord) error {
	dir := filepath.Join(basePath, "model_artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.New(apperrors.Internal, "builder.writeModelArtifacts", err)
	}

	metricsJSON, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.Internal, "builder.writeModelArtifacts", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metrics.json"), metricsJSON, 0o644); err != nil {
		return apperrors.New(apperrors.Internal, "builder.writeModelArtifacts", err)
	}

	versionJSON, err := json.MarshalIndent(version, "", "  ")
	if err != nil {
		return apperrors.New(apperrors.Internal, "builder.writeModelArtifacts", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "versions.json"), versionJSON, 0o644); err != nil {
		return apperrors.New(apperrors.Internal, "builder.writeModelArtifacts", err)
	}
	return nil
}
