package extract

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/audit"
)

// contentGenerator is the part of *genai.GenerativeModel the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// VertexExtractor extracts fields with a Gemini model on Vertex AI.
type VertexExtractor struct {
	model  contentGenerator
	name   string
	logger *zap.Logger
}

// NewVertexExtractor wraps a JSON-mode model, typically gcp.VertexClient.ExtractorModel.
func NewVertexExtractor(model contentGenerator, modelName string, logger *zap.Logger) *VertexExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VertexExtractor{model: model, name: "gemini:" + modelName, logger: logger}
}

func (e *VertexExtractor) Name() string { return e.name }

func (e *VertexExtractor) Extract(ctx context.Context, text string, schema audit.Schema, _ *audit.ExpectedValues) (audit.Record, error) {
	resp, err := e.model.GenerateContent(ctx, genai.Text(BuildPrompt(schema, text)))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content from gemini: %w", err)
	}

	return decodeResponse(e.responseText(resp))
}

// responseText concatenates the text parts of the first candidate.
func (e *VertexExtractor) responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var content strings.Builder
	var textPartsFound int
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			content.WriteString(string(txt))
			textPartsFound++
		}
	}
	if textPartsFound > 1 {
		e.logger.Warn("Gemini response contained several text parts; they have been concatenated.", zap.Int("parts", textPartsFound))
	}
	return strings.TrimSpace(content.String())
}
