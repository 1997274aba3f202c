// Package embedding maps canonical text to fixed-dimension, L2-normalized vectors. A
// Generator only has to implement the single-text path; batchFromSingle derives the
// batch path for it.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/evently-labs/recoengine/internal/apperrors"
)

// Generator maps canonical text to fixed-dimension, L2-normalized vectors.
type Generator interface {
	// Embed converts a single text into a vector of dimension Dim().
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch converts many texts at once; batching must not change results versus
	// calling Embed per text.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dim returns the output dimension.
	Dim() int
}

// Mode selects the failure behavior when the underlying model cannot be loaded.
type Mode string

const (
	// Strict raises a fatal error if the real model is unavailable.
	Strict Mode = "strict"
	// Lenient substitutes the deterministic pseudo-embedding fallback.
	Lenient Mode = "lenient"
)

// Config selects and configures a Generator.
type Config struct {
	Dim      int
	Mode     Mode
	APIKey   string
	Model    string
	BatchMax int
}

// New builds a Generator per cfg. When cfg.APIKey is set, the OpenAI-backed generator is
// used; any load/auth failure from it is fatal under Strict and falls back to the
// deterministic generator under Lenient. Without an API key, Strict has nothing to load
// and is itself the fatal condition; Lenient goes straight to the deterministic path.
func New(cfg Config) (Generator, error) {
	if cfg.Dim <= 0 {
		return nil, apperrors.New(apperrors.InvalidArgument, "embedding.New", fmt.Errorf("dim must be positive, got %d", cfg.Dim))
	}
	if cfg.BatchMax <= 0 {
		cfg.BatchMax = 64
	}

	if cfg.APIKey == "" {
		if cfg.Mode == Strict {
			return nil, apperrors.New(apperrors.Internal, "embedding.New", fmt.Errorf("strict_embedding is set but no embedding model is configured"))
		}
		return newDeterministic(cfg.Dim), nil
	}

	real, err := newOpenAI(cfg)
	if err != nil {
		if cfg.Mode == Strict {
			return nil, apperrors.New(apperrors.Internal, "embedding.New", err)
		}
		return newDeterministic(cfg.Dim), nil
	}
	if cfg.Mode == Lenient {
		return &fallbackGenerator{primary: real, fallback: newDeterministic(cfg.Dim)}, nil
	}
	return real, nil
}

// batchFromSingle embeds each text sequentially through embed, preserving input order.
// It exists so a Generator implementation only needs to provide a single-text Embed.
func batchFromSingle(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// fallbackGenerator tries primary and falls back to a deterministic embedding on error:
// Lenient mode with a configured-but-flaky real model.
type fallbackGenerator struct {
	primary  Generator
	fallback Generator
}

func (f *fallbackGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := f.primary.Embed(ctx, text)
	if err != nil {
		return f.fallback.Embed(ctx, text)
	}
	return v, nil
}

func (f *fallbackGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	v, err := f.primary.EmbedBatch(ctx, texts)
	if err != nil {
		return f.fallback.EmbedBatch(ctx, texts)
	}
	return v, nil
}

func (f *fallbackGenerator) Dim() int { return f.primary.Dim() }

// Normalize returns a copy of v scaled to unit L2 norm. A zero vector is returned
// unchanged (there is no direction to normalize to).
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return append([]float32(nil), v...)
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// hashToVector deterministically derives a D-float vector in [-1, 1] from text, by
// expanding a SHA-256 digest with a counter-based stream so any D is reachable. Same
// input, bit-identical output; guarded by Mode so it never silently runs in
// strict/production use.
func hashToVector(text string, dim int) []float32 {
	out := make([]float32, dim)
	counter := uint32(0)
	buf := make([]byte, 0, len(text)+4)
	for i := 0; i < dim; {
		buf = buf[:0]
		buf = append(buf, text...)
		var ctr [4]byte
		binary.BigEndian.PutUint32(ctr[:], counter)
		buf = append(buf, ctr[:]...)
		digest := sha256.Sum256(buf)
		for j := 0; j+4 <= len(digest) && i < dim; j += 4 {
			bits := binary.BigEndian.Uint32(digest[j : j+4])
			// Map to [-1, 1].
			out[i] = float32(bits)/float32(math.MaxUint32)*2 - 1
			i++
		}
		counter++
	}
	return out
}
