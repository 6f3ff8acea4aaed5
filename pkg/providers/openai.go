package providers

import (
	"fmt"

	"github.com/dotsetgreg/dotfocus/pkg/config"
)

const (
	defaultOpenAIAPIBase = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
)

func init() {
	registerFactory(ProviderOpenAI, providerFactory{
		build:              newOpenAIProviderFromConfig,
		buildEmbeddings:    newOpenAIEmbeddingsFromConfig,
		validate:           validateOpenAIConfig,
		credentialStatusFn: func(cfg *config.Config) bool { return validateOpenAIConfig(cfg) == nil },
	})
}

func validateOpenAIConfig(cfg *config.Config) error {
	_, err := resolveOpenAIAuth(cfg)
	return err
}

func resolveOpenAIAuth(cfg *config.Config) (*bearerAuth, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	source, err := resolveCredential("OpenAI", "providers.openai", cfg.Providers.OpenAI)
	if err != nil {
		return nil, fmt.Errorf("%w (or export OPENAI_API_KEY)", err)
	}
	return newBearerAuth(source), nil
}

func newOpenAIProviderFromConfig(cfg *config.Config) (LLMProvider, error) {
	auth, err := resolveOpenAIAuth(cfg)
	if err != nil {
		return nil, err
	}
	opts := clientOptions(cfg, ProviderOpenAI, defaultOpenAIAPIBase, cfg.Providers.OpenAI, auth, nil)
	return newChatCompletionsProvider(opts, defaultOpenAIModel)
}

func newOpenAIEmbeddingsFromConfig(cfg *config.Config) (EmbeddingClient, error) {
	auth, err := resolveOpenAIAuth(cfg)
	if err != nil {
		return nil, err
	}
	opts := clientOptions(cfg, ProviderOpenAI, defaultOpenAIAPIBase, cfg.Providers.OpenAI, auth, nil)
	return newEmbeddingsClient(opts, cfg.Embedding.Model)
}
