package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"newsingest/internal/resilience/circuitbreaker"
)

// openAIDimensions maps the embedding models we recognize to their fixed
// output dimensions.
var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// defaultEmbedTimeout bounds a single embedding API call.
const defaultEmbedTimeout = 30 * time.Second

// OpenAI implements Embedder against the OpenAI embeddings API.
// The API accepts a whole batch natively, so one call embeds one claim cycle.
type OpenAI struct {
	client  *openai.Client
	model   string
	dim     int
	timeout time.Duration
	breaker *circuitbreaker.CircuitBreaker
}

// NewOpenAI creates a remote embedder for the given model. The dimension is
// known statically per model; unrecognized models are rejected at
// construction rather than discovered broken at upsert time.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embedder: api key is required")
	}
	dim, ok := openAIDimensions[model]
	if !ok {
		return nil, fmt.Errorf("openai embedder: unknown model %q", model)
	}

	slog.Info("openai embedder initialized",
		slog.String("model", model),
		slog.Int("dimension", dim))

	return &OpenAI{
		client:  openai.NewClient(apiKey),
		model:   model,
		dim:     dim,
		timeout: defaultEmbedTimeout,
		breaker: circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig("openai")),
	}, nil
}

// EmbedDocuments embeds the whole batch in a single API call.
func (e *OpenAI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(e.model),
		})
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	resp := result.(openai.EmbeddingResponse)

	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	if err := verifyVectors(vectors, len(texts), e.dim); err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	return vectors, nil
}

func (e *OpenAI) Dimension() int {
	return e.dim
}

func (e *OpenAI) ProviderName() string {
	return "openai"
}
