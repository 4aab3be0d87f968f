package extract

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/gcp"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIExtractor extracts fields through any OpenAI-compatible chat API,
// Groq by default.
type OpenAIExtractor struct {
	client chatCompleter
	model  string
	name   string
}

// NewOpenAIExtractor builds a client for apiKey. An empty baseURL selects Groq.
func NewOpenAIExtractor(apiKey, baseURL, model string) *OpenAIExtractor {
	if baseURL == "" {
		baseURL = GroqBaseURL
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newOpenAIExtractor(openai.NewClientWithConfig(cfg), model)
}

func newOpenAIExtractor(client chatCompleter, model string) *OpenAIExtractor {
	return &OpenAIExtractor{client: client, model: model, name: "groq:" + model}
}

func (e *OpenAIExtractor) Name() string { return e.name }

func (e *OpenAIExtractor) Extract(ctx context.Context, text string, schema audit.Schema, _ *audit.ExpectedValues) (audit.Record, error) {
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: gcp.ExtractorSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(schema, text)},
		},
		Temperature: 0,
		MaxTokens:   2048,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	return decodeResponse(content)
}
