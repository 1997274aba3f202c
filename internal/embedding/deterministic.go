package embedding

import "context"

// deterministicGenerator is the lenient fallback: a hash of the text expanded into Dim()
// floats, then L2-normalized. Always available, used in tests and whenever no real
// model is configured.
type deterministicGenerator struct {
	dim int
}

func newDeterministic(dim int) *deterministicGenerator {
	return &deterministicGenerator{dim: dim}
}

func (d *deterministicGenerator) Embed(_ context.Context, text string) ([]float32, error) {
	return Normalize(hashToVector(text, d.dim)), nil
}

func (d *deterministicGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return batchFromSingle(ctx, texts, d.Embed)
}

func (d *deterministicGenerator) Dim() int { return d.dim }
