package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_WriteThenRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	ctx := context.Background()
	ids := []string{"1", "2", "3"}
	matrix := [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}
	metadata := []Metadata{{"a": "1"}, {"a": "2"}, nil}

	manifest, err := store.Write(ctx, CollectionEvents, ids, matrix, metadata, 2, "cosine")
	require.NoError(t, err)
	assert.Equal(t, 3, manifest.Rows)
	assert.Equal(t, 2, manifest.Dim)

	snap, err := store.Read(ctx, CollectionEvents)
	require.NoError(t, err)
	assert.Equal(t, ids, snap.IDs)
	assert.Equal(t, matrix, snap.Matrix)
	assert.Equal(t, "1", metadataOrEmpty(snap.Metadata[0])["a"])
}

func metadataOrEmpty(m Metadata) Metadata {
	if m == nil {
		return Metadata{}
	}
	return m
}

func TestStore_Read_MissingCollection(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	_, err = store.Read(context.Background(), CollectionUsers)
	assert.Error(t, err)
}

func TestStore_Read_CorruptedMatrixDetectsChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.Write(ctx, CollectionEvents, []string{"1"}, [][]float32{{1, 2}}, []Metadata{nil}, 2, "cosine")
	require.NoError(t, err)

	current, err := os.ReadFile(filepath.Join(dir, CollectionEvents, "CURRENT"))
	require.NoError(t, err)
	matrixPath := filepath.Join(dir, CollectionEvents, string(current), "matrix.bin")
	require.NoError(t, os.WriteFile(matrixPath, []byte{0, 0, 0, 0, 0, 0, 0, 0}, 0o644))

	_, err = store.Read(ctx, CollectionEvents)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "integrity_error")
}

func TestStore_Write_RejectsLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	_, err = store.Write(context.Background(), CollectionEvents, []string{"1", "2"}, [][]float32{{1, 2}}, []Metadata{nil}, 2, "cosine")
	assert.Error(t, err)
}

func TestStore_ConcurrentReaderSeesConsistentSnapshotAcrossWrite(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Write(ctx, CollectionEvents, []string{"1"}, [][]float32{{1, 0}}, []Metadata{nil}, 2, "cosine")
	require.NoError(t, err)

	snap, err := store.Read(ctx, CollectionEvents)
	require.NoError(t, err)

	_, err = store.Write(ctx, CollectionEvents, []string{"1", "2"}, [][]float32{{1, 0}, {0, 1}}, []Metadata{nil, nil}, 2, "cosine")
	require.NoError(t, err)

	// The snapshot read before the second write is unaffected by it.
	assert.Equal(t, []string{"1"}, snap.IDs)

	snap2, err := store.Read(ctx, CollectionEvents)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, snap2.IDs)
}
