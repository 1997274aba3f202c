package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/evently-labs/recoengine/internal/apperrors"
)

// openAIGenerator calls a real text-embedding model over the network: a thin client
// built once from an API key, reused for every call.
type openAIGenerator struct {
	client *openai.Client
	model  string
	dim    int
}

func newOpenAI(cfg Config) (*openAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.New(apperrors.Internal, "embedding.newOpenAI", fmt.Errorf("missing API key"))
	}
	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &openAIGenerator{client: &client, model: model, dim: cfg.Dim}, nil
}

func (o *openAIGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (o *openAIGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.model),
		Dimensions: openai.Int(int64(o.dim)),
	})
	if err != nil {
		return nil, apperrors.New(apperrors.Internal, "embedding.EmbedBatch", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.New(apperrors.Internal, "embedding.EmbedBatch", fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	byIndex := make(map[int64][]float64, len(resp.Data))
	for _, d := range resp.Data {
		byIndex[d.Index] = d.Embedding
	}
	for i := range texts {
		raw, ok := byIndex[int64(i)]
		if !ok {
			return nil, apperrors.New(apperrors.Internal, "embedding.EmbedBatch", fmt.Errorf("missing embedding for input %d", i))
		}
		if len(raw) != o.dim {
			return nil, apperrors.New(apperrors.IntegrityError, "embedding.EmbedBatch", fmt.Errorf("model returned dimension %d, want %d", len(raw), o.dim))
		}
		v := make([]float32, len(raw))
		for j, x := range raw {
			v[j] = float32(x)
		}
		out[i] = Normalize(v)
	}
	return out, nil
}

func (o *openAIGenerator) Dim() int { return o.dim }
