package ai

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"
)

const (
	embeddingModel   = "text-embedding-004"
	embeddingDim     = 768
	embedRetryDelay  = 300 * time.Millisecond
	maxEmbedBatchLen = 100
)

// GeminiEmbedder produces fixed-dimension vectors with text-embedding-004.
// One client is held open for the process lifetime; a transient failure is
// retried once before the error propagates.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGeminiEmbedder opens a client for the configured vector dimension. A
// non-positive dim falls back to the model's native 768.
func NewGeminiEmbedder(apiKey string, dim int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	if dim <= 0 {
		dim = embeddingDim
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiEmbedder{client: client, model: embeddingModel, dim: dim}, nil
}

func (e *GeminiEmbedder) Dimension() int { return e.dim }

// Embed returns the vector for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("gemini-embedder")
	ctx, span := tracer.Start(ctx, "gemini.embed_content")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", e.model))

	vec, err := e.embedOnce(ctx, text)
	if err != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(embedRetryDelay):
		}
		vec, err = e.embedOnce(ctx, text)
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, err
		}
	}
	return vec, nil
}

func (e *GeminiEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	if resp.Embedding == nil {
		return nil, fmt.Errorf("no embedding returned by %s", e.model)
	}
	if len(resp.Embedding.Values) != e.dim {
		return nil, fmt.Errorf("embedding dimension %d, expected %d", len(resp.Embedding.Values), e.dim)
	}
	return resp.Embedding.Values, nil
}

// EmbedBatch embeds texts in API-sized batches, preserving input order.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("gemini-embedder")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", e.model),
		attribute.Int("gemini.batch_size", len(texts)),
	)

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatchLen {
		end := start + maxEmbedBatchLen
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := e.embedBatchOnce(ctx, texts[start:end])
		if err != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(embedRetryDelay):
			}
			vecs, err = e.embedBatchOnce(ctx, texts[start:end])
			if err != nil {
				span.SetAttributes(attribute.Bool("gemini.error", true))
				return nil, err
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *GeminiEmbedder) embedBatchOnce(ctx context.Context, texts []string) ([][]float32, error) {
	em := e.client.EmbeddingModel(e.model)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedded %d of %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) != e.dim {
			return nil, fmt.Errorf("embedding %d has wrong dimension", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

func (e *GeminiEmbedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
