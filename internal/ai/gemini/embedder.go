package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/joblens/internal/logger"
)

const (
	defaultModel      = "gemini-embedding-001"
	defaultDimensions = 384

	// The CV is the query side of retrieval against embedded job postings.
	taskType = "RETRIEVAL_QUERY"
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder produces embeddings with the Gemini API.
type Embedder struct {
	models     contentEmbedder
	modelName  string
	dimensions int32
	logger     *zap.Logger
}

// NewEmbedder creates an Embedder configured for the Gemini API backend.
// Zero dimensions selects the matcher's vector length.
func NewEmbedder(ctx context.Context, apiKey, model string, dimensions int, log *zap.Logger) (*Embedder, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newEmbedder(client.Models, model, dimensions, log), nil
}

func newEmbedder(models contentEmbedder, model string, dimensions int, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}

	return &Embedder{
		models:     models,
		modelName:  model,
		dimensions: int32(dimensions),
		logger:     logger.WithService(log, "gemini"),
	}
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e == nil || e.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	dims := e.dimensions
	resp, err := e.models.EmbedContent(ctx, e.modelName, genai.Text(text), &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini api returned no embedding")
	}

	values := resp.Embeddings[0].Values
	if len(values) != int(e.dimensions) {
		return nil, fmt.Errorf("gemini api returned %d dimensions, want %d", len(values), e.dimensions)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}

	e.logger.Debug("text embedded",
		zap.String("model", e.modelName),
		zap.Int("text_length", len(text)),
		zap.Int("dimensions", len(out)),
	)

	return out, nil
}

func (e *Embedder) Model() string {
	if e == nil {
		return ""
	}
	return e.modelName
}
