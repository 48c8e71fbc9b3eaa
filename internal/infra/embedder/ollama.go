package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"newsingest/internal/resilience/circuitbreaker"
)

// ollamaDimensions is the fallback table keyed by model family, used when the
// startup probe cannot reach the server.
var ollamaDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// defaultOllamaWorkers is the fan-out width for a batch; the server embeds
// one text per request.
const defaultOllamaWorkers = 10

// dimensionProbeText is embedded once at construction to detect the model's
// output dimension.
const dimensionProbeText = "dimension probe"

// Ollama implements Embedder against a local Ollama server. The API embeds a
// single text per call, so EmbedDocuments fans the batch out across up to
// maxWorkers concurrent requests and reassembles vectors in input order.
type Ollama struct {
	host       string
	model      string
	client     *http.Client
	dim        int
	maxWorkers int
	breaker    *circuitbreaker.CircuitBreaker
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllama creates a local embedder for the given host and model. The
// dimension is detected by embedding a sentinel; if the server is not
// reachable at construction time the fallback table keyed by model family is
// consulted instead.
func NewOllama(host, model string, maxWorkers int) (*Ollama, error) {
	if host == "" {
		return nil, fmt.Errorf("ollama embedder: host is required")
	}
	if model == "" {
		return nil, fmt.Errorf("ollama embedder: model is required")
	}
	if maxWorkers <= 0 {
		maxWorkers = defaultOllamaWorkers
	}

	e := &Ollama{
		host:       strings.TrimRight(host, "/"),
		model:      model,
		client:     &http.Client{Timeout: defaultEmbedTimeout},
		maxWorkers: maxWorkers,
		breaker:    circuitbreaker.New(circuitbreaker.EmbeddingAPIConfig("ollama")),
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultEmbedTimeout)
	defer cancel()

	if vec, err := e.embedOne(ctx, dimensionProbeText); err == nil && len(vec) > 0 {
		e.dim = len(vec)
		slog.Info("ollama embedder dimension detected",
			slog.String("model", model),
			slog.Int("dimension", e.dim))
	} else {
		dim, ok := lookupOllamaDimension(model)
		if !ok {
			return nil, fmt.Errorf("ollama embedder: cannot detect dimension for model %q: %v", model, err)
		}
		e.dim = dim
		slog.Warn("ollama embedder probe failed, using fallback dimension",
			slog.String("model", model),
			slog.Int("dimension", dim),
			slog.Any("error", err))
	}

	return e, nil
}

// lookupOllamaDimension matches the model against the fallback table by
// family prefix, ignoring any ":tag" suffix.
func lookupOllamaDimension(model string) (int, bool) {
	family := model
	if idx := strings.IndexByte(family, ':'); idx >= 0 {
		family = family[:idx]
	}
	dim, ok := ollamaDimensions[family]
	return dim, ok
}

// EmbedDocuments fans the batch out across maxWorkers concurrent single-text
// requests and reassembles the vectors in input order.
func (e *Ollama) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.maxWorkers)

	for i, text := range texts {
		eg.Go(func() error {
			result, err := e.breaker.Execute(func() (interface{}, error) {
				return e.embedOne(egCtx, text)
			})
			if err != nil {
				return fmt.Errorf("text %d: %w", i, err)
			}
			vectors[i] = result.([]float32)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}

	if err := verifyVectors(vectors, len(texts), e.dim); err != nil {
		return nil, fmt.Errorf("ollama embeddings: %w", err)
	}
	return vectors, nil
}

// embedOne performs a single /api/embeddings request.
func (e *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		e.host+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(msg))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return parsed.Embedding, nil
}

func (e *Ollama) Dimension() int {
	return e.dim
}

func (e *Ollama) ProviderName() string {
	return "ollama"
}
