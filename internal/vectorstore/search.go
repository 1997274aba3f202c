package vectorstore

import (
	"errors"
	"math"
	"sort"

	"github.com/evently-labs/recoengine/internal/apperrors"
)

var (
	errInvalidK    = errors.New("k must be positive")
	errDimMismatch = errors.New("query dimension does not match collection dimension")
)

// ScoredID is one result row from Search.
type ScoredID struct {
	ID    string
	Score float64
}

// FilterFunc decides whether an id's metadata passes a search filter.
type FilterFunc func(id string, meta Metadata) bool

// cosineSimilarity returns 0 for zero vectors and mismatched lengths rather than NaN.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Search computes cosine similarity of query against every row in the snapshot,
// applies filter (if non-nil) to each candidate's metadata, and returns the top-k
// ordered by score descending, ties broken by ascending id. Fewer than k results are
// returned only when fewer candidates pass the filter.
func (s *Snapshot) Search(query []float32, k int, filter FilterFunc) ([]ScoredID, error) {
	if k <= 0 {
		return nil, apperrors.New(apperrors.InvalidArgument, "vectorstore.Search", errInvalidK)
	}
	if len(query) != s.Manifest.Dim {
		return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Search", errDimMismatch)
	}

	normalized := normalizeQuery(query)

	candidates := make([]ScoredID, 0, len(s.IDs))
	for i, id := range s.IDs {
		var meta Metadata
		if i < len(s.Metadata) {
			meta = s.Metadata[i]
		}
		if filter != nil && !filter(id, meta) {
			continue
		}
		score := cosineSimilarity(normalized, s.Matrix[i])
		candidates = append(candidates, ScoredID{ID: id, Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func normalizeQuery(query []float32) []float32 {
	var sumSq float64
	for _, x := range query {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return query
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(query))
	for i, x := range query {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
