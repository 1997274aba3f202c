package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *Snapshot {
	return &Snapshot{
		Manifest: Manifest{Dim: 2},
		IDs:      []string{"3", "1", "2"},
		Matrix: [][]float32{
			{1, 0},    // id 3: identical to query
			{0, 1},    // id 1: orthogonal
			{0.9, 0.1}, // id 2: close to query, unnormalized
		},
		Metadata: []Metadata{
			{"category": "music"},
			{"category": "food"},
			{"category": "music"},
		},
	}
}

func TestSearch_OrdersByScoreDescending(t *testing.T) {
	snap := testSnapshot()
	results, err := snap.Search([]float32{1, 0}, 3, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "3", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "1", results[2].ID)
}

func TestSearch_AppliesFilter(t *testing.T) {
	snap := testSnapshot()
	filter := func(id string, meta Metadata) bool { return meta["category"] == "music" }
	results, err := snap.Search([]float32{1, 0}, 3, filter)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Contains(t, []string{"2", "3"}, r.ID)
	}
}

func TestSearch_TruncatesToK(t *testing.T) {
	snap := testSnapshot()
	results, err := snap.Search([]float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "3", results[0].ID)
}

func TestSearch_RejectsNonPositiveK(t *testing.T) {
	snap := testSnapshot()
	_, err := snap.Search([]float32{1, 0}, 0, nil)
	assert.Error(t, err)
}

func TestSearch_RejectsDimensionMismatch(t *testing.T) {
	snap := testSnapshot()
	_, err := snap.Search([]float32{1, 0, 0}, 1, nil)
	assert.Error(t, err)
}

func TestSearch_TieBreaksByAscendingID(t *testing.T) {
	snap := &Snapshot{
		Manifest: Manifest{Dim: 1},
		IDs:      []string{"9", "2"},
		Matrix:   [][]float32{{1}, {1}},
		Metadata: []Metadata{nil, nil},
	}
	results, err := snap.Search([]float32{1}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "2", results[0].ID)
	assert.Equal(t, "9", results[1].ID)
}
