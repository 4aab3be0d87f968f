package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Lllllllleong/bonafideflow/internal/audit"
	"github.com/Lllllllleong/bonafideflow/internal/config"
	"github.com/Lllllllleong/bonafideflow/internal/gcp"
)

// Model names clients choose between.
const (
	ModelGemini = "gemini"
	ModelGroq   = "groq"
)

// Registry maps client-facing model names to extractors. Selecting a model
// that is not configured falls back to the default one.
type Registry struct {
	extractors   map[string]audit.Extractor
	defaultModel string
	timeout      time.Duration
	closers      []func() error
}

// NewRegistry returns an empty registry. timeout bounds each extractor call;
// zero means no bound.
func NewRegistry(defaultModel string, timeout time.Duration) *Registry {
	return &Registry{
		extractors:   make(map[string]audit.Extractor),
		defaultModel: defaultModel,
		timeout:      timeout,
	}
}

// Register adds an extractor under a model name.
func (r *Registry) Register(model string, e audit.Extractor) {
	if r.timeout > 0 {
		e = &timeoutExtractor{Extractor: e, timeout: r.timeout}
	}
	r.extractors[model] = e
}

// Select returns the extractor for model and the model name actually used.
func (r *Registry) Select(model string) (audit.Extractor, string, error) {
	if model == "" {
		model = r.defaultModel
	}
	if e, ok := r.extractors[model]; ok {
		return e, model, nil
	}
	if e, ok := r.extractors[r.defaultModel]; ok {
		return e, r.defaultModel, nil
	}
	for name, e := range r.extractors {
		return e, name, nil
	}
	return nil, "", fmt.Errorf("no extraction model available")
}

// Close releases the clients the registry created.
func (r *Registry) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewRegistryFromConfig wires Gemini on Vertex AI when a project is set and an
// OpenAI-compatible client when an API key is set.
func NewRegistryFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	ec := cfg.Extraction
	defaultModel := ModelGemini
	if ec.Provider == config.ProviderOpenAI {
		defaultModel = ModelGroq
	}
	r := NewRegistry(defaultModel, time.Duration(ec.Timeout)*time.Millisecond)

	if cfg.GCP.ProjectID != "" {
		modelName := config.DefaultVertexModel
		if ec.Provider == config.ProviderVertex {
			modelName = ec.Model
		}
		vc, err := gcp.NewVertexClient(ctx, cfg.GCP.ProjectID, cfg.GCP.VertexAIRegion, modelName)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex client: %w", err)
		}
		r.closers = append(r.closers, vc.Close)
		r.Register(ModelGemini, NewVertexExtractor(vc.ExtractorModel, vc.ModelName(), logger))
	}
	if ec.APIKey != "" {
		modelName := config.DefaultOpenAIModel
		if ec.Provider == config.ProviderOpenAI {
			modelName = ec.Model
		}
		r.Register(ModelGroq, NewOpenAIExtractor(ec.APIKey, ec.BaseURL, modelName))
	}

	if len(r.extractors) == 0 {
		return nil, fmt.Errorf("no extraction provider configured")
	}
	logger.Info("Extraction models registered.", zap.String("default", defaultModel), zap.Int("count", len(r.extractors)))
	return r, nil
}

// timeoutExtractor bounds each call; an expired deadline surfaces as an
// extractor error.
type timeoutExtractor struct {
	audit.Extractor
	timeout time.Duration
}

func (t *timeoutExtractor) Extract(ctx context.Context, text string, schema audit.Schema, expected *audit.ExpectedValues) (audit.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Extractor.Extract(ctx, text, schema, expected)
}
