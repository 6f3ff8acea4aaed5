package providers

import (
	"fmt"

	"github.com/dotsetgreg/dotfocus/pkg/config"
)

const (
	defaultOpenRouterAPIBase = "https://openrouter.ai/api/v1"
	defaultOpenRouterModel   = "openai/gpt-4o-mini"
)

func init() {
	registerFactory(ProviderOpenRouter, providerFactory{
		build:              newOpenRouterProviderFromConfig,
		validate:           validateOpenRouterConfig,
		credentialStatusFn: func(cfg *config.Config) bool { return validateOpenRouterConfig(cfg) == nil },
	})
}

func validateOpenRouterConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	_, err := resolveCredential("OpenRouter", "providers.openrouter", cfg.Providers.OpenRouter)
	return err
}

func newOpenRouterProviderFromConfig(cfg *config.Config) (LLMProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	source, err := resolveCredential("OpenRouter", "providers.openrouter", cfg.Providers.OpenRouter)
	if err != nil {
		return nil, err
	}
	headers := map[string]string{"X-Title": "dotfocus"}
	opts := clientOptions(cfg, ProviderOpenRouter, defaultOpenRouterAPIBase, cfg.Providers.OpenRouter, newBearerAuth(source), headers)
	return newChatCompletionsProvider(opts, defaultOpenRouterModel)
}
