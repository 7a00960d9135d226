package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultGeminiModel = "text-embedding-004"
	geminiTaskType     = "SEMANTIC_SIMILARITY"
)

type embedContentAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Gemini embeds text through the Gemini API.
type Gemini struct {
	models    embedContentAPI
	modelName string
	dimension int32
	logger    *zap.Logger
}

// NewGemini creates a Gemini embedder for the Gemini API backend.
func NewGemini(ctx context.Context, apiKey, model string, dimension int, logger *zap.Logger) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, model, dimension, logger), nil
}

func newGemini(models embedContentAPI, model string, dimension int, logger *zap.Logger) *Gemini {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gemini{models: models, modelName: model, dimension: int32(dimension), logger: logger}
}

func (g *Gemini) Model() string {
	if g == nil {
		return ""
	}
	return "gemini/" + g.modelName
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	if g == nil || g.models == nil {
		return nil, errors.New("gemini embedder is not initialized")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("text must not be empty")
	}

	cfg := &genai.EmbedContentConfig{TaskType: geminiTaskType}
	if g.dimension > 0 {
		dim := g.dimension
		cfg.OutputDimensionality = &dim
	}

	resp, err := g.models.EmbedContent(ctx, g.modelName, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("gemini api returned empty embedding")
	}

	values := resp.Embeddings[0].Values
	g.logger.Debug("gemini embedding", zap.String("model", g.modelName), zap.Int("dimension", len(values)))
	return values, nil
}
