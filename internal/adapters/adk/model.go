package adk

import (
	"context"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/genai"

	"tiergate/internal/adapters/ai"
	"tiergate/internal/adapters/config"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

const defaultOpenAIModel = "gpt-4o-mini"

// NewModel builds the agent's model from AI config. Gemini goes through the
// native ADK client; OpenAI goes through ModelAdapter.
func NewModel(ctx context.Context, cfg config.AIConfig, log *logger.Logger) (model.LLM, error) {
	switch ai.ProviderName(strings.ToLower(cfg.Provider)) {
	case ai.ProviderNameGemini:
		if cfg.GeminiKey == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "GEMINI_API_KEY is required for the gemini provider")
		}
		llm, err := gemini.NewModel(ctx, cfg.Model, &genai.ClientConfig{
			APIKey:  cfg.GeminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create gemini model")
		}
		return llm, nil

	case ai.ProviderNameOpenAI:
		provider, err := ai.NewOpenAIProvider(ai.OpenAIConfig{
			APIKey:            cfg.OpenAIKey,
			BaseURL:           cfg.OpenAIBaseURL,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.RequestBurst,
		}, log)
		if err != nil {
			return nil, err
		}
		name := cfg.Model
		// the default model name is a Gemini one
		if name == "" || strings.HasPrefix(name, "gemini") {
			name = defaultOpenAIModel
		}
		return NewModelAdapter(provider, name, cfg.MaxOutputTokens, log), nil

	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown AI provider %q", cfg.Provider)
	}
}
