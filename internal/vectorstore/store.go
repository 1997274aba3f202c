// Package vectorstore implements a durable, atomically swappable store of vector
// collections: per collection a matrix, an aligned id list, a per-id metadata sidecar,
// and a checksummed manifest under vector_store/<collection>/.
//
// Publication uses a small CURRENT pointer file per collection rather than renaming a
// populated directory in place (POSIX rename(2) will not atomically replace a
// non-empty directory). Each build writes a fresh, uniquely-named version directory and
// then atomically renames a CURRENT.tmp file over CURRENT — renaming a regular file
// onto another regular file on the same filesystem is atomic.
package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/evently-labs/recoengine/internal/apperrors"
)

// Collection names published by the model builder and read by the engine.
const (
	CollectionEvents  = "events"
	CollectionUsers   = "users"
	CollectionUserSim = "user_sim"
)

// retainVersions bounds how many version directories, the current one included, are
// kept after a swap, so a reader that resolved CURRENT just before a swap can still
// finish against the version it opened. Older versions are pruned by the Write that
// performs the swap.
const retainVersions = 2

// Metadata is the per-id sidecar: a free-form string-keyed map, left generic here so
// this package stays domain-agnostic; callers (builder, engine) encode/decode their own
// typed fields into it.
type Metadata = map[string]string

// Snapshot is an immutable view of one collection as of the moment it was read. Holding
// a Snapshot across a concurrent Write is safe: the files backing it are retained until
// pruned, and Snapshot itself never mutates.
type Snapshot struct {
	Manifest Manifest
	IDs      []string
	Matrix   [][]float32
	Metadata []Metadata // aligned with IDs, may be nil entries
}

// IndexOf returns the row index of id, or -1 if not present.
func (s *Snapshot) IndexOf(id string) int {
	for i, v := range s.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

// Store is a durable, versioned on-disk collection store rooted at basePath.
type Store struct {
	basePath string
	mu       sync.Mutex // serializes writers; readers never block on this
}

// Open returns a Store rooted at basePath, creating the directory if needed.
func Open(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, apperrors.New(apperrors.Internal, "vectorstore.Open", err)
	}
	return &Store{basePath: basePath}, nil
}

// BasePath returns the root directory this Store was opened against, for callers that
// publish sidecar artifacts alongside the versioned collections (e.g. the builder's
// model_artifacts/ reports).
func (s *Store) BasePath() string {
	return s.basePath
}

func (s *Store) collectionDir(collection string) string {
	return filepath.Join(s.basePath, collection)
}

func (s *Store) currentPointerPath(collection string) string {
	return filepath.Join(s.collectionDir(collection), "CURRENT")
}

// Exists reports whether collection has ever been published.
func (s *Store) Exists(collection string) bool {
	_, err := os.Stat(s.currentPointerPath(collection))
	return err == nil
}

// Stat returns the manifest of the currently published version of collection, without
// loading the matrix.
func (s *Store) Stat(collection string) (Manifest, error) {
	version, err := s.readCurrent(collection)
	if err != nil {
		return Manifest{}, err
	}
	return s.readManifest(collection, version)
}

// Write publishes a new version of collection atomically. ids, matrix, and metadata
// must have equal length. The previous version remains readable
// until this call's rename completes, and is retained for one further generation after
// that for in-flight readers (see retainVersions).
func (s *Store) Write(ctx context.Context, collection string, ids []string, matrix [][]float32, metadata []Metadata, dim int, algorithm string) (Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) != len(matrix) || len(ids) != len(metadata) {
		return Manifest{}, apperrors.New(apperrors.InvalidArgument, "vectorstore.Write",
			fmt.Errorf("ids (%d), matrix (%d), metadata (%d) length mismatch", len(ids), len(matrix), len(metadata)))
	}
	select {
	case <-ctx.Done():
		return Manifest{}, apperrors.New(apperrors.Degraded, "vectorstore.Write", ctx.Err())
	default:
	}

	matrixBytes, err := EncodeMatrix(matrix, dim)
	if err != nil {
		return Manifest{}, apperrors.New(apperrors.InvalidArgument, "vectorstore.Write", err)
	}
	sum := sha256.Sum256(matrixBytes)

	manifest := Manifest{
		Name:          collection,
		CreatedAt:     time.Now().UTC(),
		Dim:           dim,
		Rows:          len(ids),
		Algorithm:     algorithm,
		SHA256Hex:     hex.EncodeToString(sum[:]),
		SchemaVersion: schemaVersion,
	}

	version := time.Now().UTC().Format("20060102T150405.000000000Z") + "-" + uuid.NewString()
	versionDir := filepath.Join(s.collectionDir(collection), version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return Manifest{}, apperrors.New(apperrors.Internal, "vectorstore.Write", err)
	}

	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return Manifest{}, apperrors.New(apperrors.Internal, "vectorstore.Write", err)
	}
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return Manifest{}, apperrors.New(apperrors.Internal, "vectorstore.Write", err)
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return Manifest{}, apperrors.New(apperrors.Internal, "vectorstore.Write", err)
	}

	for name, data := range map[string][]byte{
		"matrix.bin":    matrixBytes,
		"ids.json":      idsJSON,
		"metadata.json": metaJSON,
		"manifest.json": manifestJSON,
	} {
		if err := os.WriteFile(filepath.Join(versionDir, name), data, 0o644); err != nil {
			return Manifest{}, apperrors.New(apperrors.Internal, "vectorstore.Write", err)
		}
	}

	pointerPath := s.currentPointerPath(collection)
	tmpPointer := pointerPath + ".tmp"
	if err := os.WriteFile(tmpPointer, []byte(version), 0o644); err != nil {
		return Manifest{}, apperrors.New(apperrors.Internal, "vectorstore.Write", err)
	}
	if err := os.Rename(tmpPointer, pointerPath); err != nil {
		return Manifest{}, apperrors.New(apperrors.Internal, "vectorstore.Write", err)
	}

	s.pruneOldVersions(collection, version)

	return manifest, nil
}

// pruneOldVersions removes version directories other than current and the
// retainVersions-1 most recent predecessors, by lexicographic (== chronological, given
// the RFC3339-like version prefix) order.
func (s *Store) pruneOldVersions(collection, current string) {
	entries, err := os.ReadDir(s.collectionDir(collection))
	if err != nil {
		return
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	if len(versions) <= retainVersions {
		return
	}
	toRemove := versions[:len(versions)-retainVersions]
	for _, v := range toRemove {
		_ = os.RemoveAll(filepath.Join(s.collectionDir(collection), v))
	}
}

func (s *Store) readCurrent(collection string) (string, error) {
	data, err := os.ReadFile(s.currentPointerPath(collection))
	if err != nil {
		return "", apperrors.New(apperrors.NotFound, "vectorstore.readCurrent", err)
	}
	return string(data), nil
}

func (s *Store) readManifest(collection, version string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.collectionDir(collection), version, "manifest.json"))
	if err != nil {
		return Manifest{}, apperrors.New(apperrors.IntegrityError, "vectorstore.readManifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, apperrors.New(apperrors.IntegrityError, "vectorstore.readManifest", err)
	}
	return m, nil
}

const schemaVersion = "1"

// Read loads the currently published version of collection, verifying the checksum and
// dimension against the manifest. A reader that completes Read holds a self-contained
// Snapshot; it is unaffected by any later Write.
func (s *Store) Read(ctx context.Context, collection string) (*Snapshot, error) {
	select {
	case <-ctx.Done():
		return nil, apperrors.New(apperrors.Degraded, "vectorstore.Read", ctx.Err())
	default:
	}

	version, err := s.readCurrent(collection)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.collectionDir(collection), version)

	manifest, err := s.readManifest(collection, version)
	if err != nil {
		return nil, err
	}

	matrixBytes, err := os.ReadFile(filepath.Join(dir, "matrix.bin"))
	if err != nil {
		return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read", err)
	}
	sum := sha256.Sum256(matrixBytes)
	if hex.EncodeToString(sum[:]) != manifest.SHA256Hex {
		return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read",
			fmt.Errorf("checksum mismatch for collection %q", collection))
	}

	idsData, err := os.ReadFile(filepath.Join(dir, "ids.json"))
	if err != nil {
		return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read", err)
	}
	var ids []string
	if err := json.Unmarshal(idsData, &ids); err != nil {
		return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read", err)
	}

	var metadata []Metadata
	metaPath := filepath.Join(dir, "metadata.json")
	if _, err := os.Stat(metaPath); err == nil {
		metaData, err := os.ReadFile(metaPath)
		if err != nil {
			return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read", err)
		}
		if err := json.Unmarshal(metaData, &metadata); err != nil {
			return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read", err)
		}
	}

	if len(ids) != manifest.Rows || (metadata != nil && len(metadata) != manifest.Rows) {
		return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read",
			fmt.Errorf("row count mismatch: manifest=%d ids=%d metadata=%d", manifest.Rows, len(ids), len(metadata)))
	}

	matrix, err := DecodeMatrix(matrixBytes, manifest.Rows, manifest.Dim)
	if err != nil {
		return nil, apperrors.New(apperrors.IntegrityError, "vectorstore.Read", err)
	}

	return &Snapshot{Manifest: manifest, IDs: ids, Matrix: matrix, Metadata: metadata}, nil
}
