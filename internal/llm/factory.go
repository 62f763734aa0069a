package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dyike/cortexanalyst/config"
)

// New builds the reasoner for the configured provider, wrapped with the
// per-call timeout and debug logging.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (Reasoner, error) {
	key := cfg.APIKey()
	if key == "" {
		return nil, fmt.Errorf("no api key configured for provider %s", cfg.LLMProvider)
	}

	var (
		r   Reasoner
		err error
	)
	switch cfg.LLMProvider {
	case config.ProviderDeepSeek:
		if cfg.BackendURL != "" {
			r, err = NewOpenAI(ctx, key, cfg.BackendURL, cfg.DeepThinkLLM, cfg.MaxTokens)
		} else {
			r, err = NewDeepSeek(ctx, key, cfg.DeepThinkLLM, cfg.MaxTokens)
		}
	case config.ProviderOpenAI:
		r, err = NewOpenAI(ctx, key, cfg.BackendURL, cfg.DeepThinkLLM, cfg.MaxTokens)
	case config.ProviderAnthropic:
		r = NewAnthropic(key, cfg.DeepThinkLLM, cfg.MaxTokens)
	case config.ProviderGemini:
		r, err = NewGemini(ctx, key, cfg.DeepThinkLLM)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	return WithLogging(WithTimeout(r, cfg.CallTimeoutDuration()), logger), nil
}
