package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dotsetgreg/dotfocus/pkg/config"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

type providerFactory struct {
	build              func(cfg *config.Config) (LLMProvider, error)
	buildEmbeddings    func(cfg *config.Config) (EmbeddingClient, error)
	validate           func(cfg *config.Config) error
	credentialStatusFn func(cfg *config.Config) bool
}

var (
	factoryMu       sync.RWMutex
	factories       = map[string]providerFactory{}
	registrationErr error
)

func registerFactory(name string, f providerFactory) {
	name = NormalizeProviderName(name)
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if f.build == nil {
		registrationErr = errors.Join(registrationErr, fmt.Errorf("providers: factory %q build func is required", name))
		return
	}
	factories[name] = f
}

func SupportedProviders() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	providers := make([]string, 0, len(factories))
	for name := range factories {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderOpenAI
	}
	return name
}

func ActiveProviderName(cfg *config.Config) string {
	if cfg == nil {
		return ProviderOpenAI
	}
	return NormalizeProviderName(cfg.Providers.Provider)
}

func ValidateProviderConfig(cfg *config.Config) error {
	factory, _, err := getFactory(ActiveProviderName(cfg))
	if err != nil {
		return err
	}
	if factory.validate == nil {
		return nil
	}
	return factory.validate(cfg)
}

// ProviderCredentialStatus reports the active provider and whether its
// credentials are configured.
func ProviderCredentialStatus(cfg *config.Config) (provider string, configured bool, err error) {
	factory, name, err := getFactory(ActiveProviderName(cfg))
	if err != nil {
		return "", false, err
	}
	if factory.credentialStatusFn != nil {
		return name, factory.credentialStatusFn(cfg), nil
	}
	return name, factory.validate == nil || factory.validate(cfg) == nil, nil
}

// CreateProvider builds the chat client of the configured provider.
func CreateProvider(cfg *config.Config) (LLMProvider, error) {
	factory, _, err := getFactory(ActiveProviderName(cfg))
	if err != nil {
		return nil, err
	}
	return factory.build(cfg)
}

// CreateEmbeddingClient builds the OpenAI embeddings client regardless of
// the chat provider.
func CreateEmbeddingClient(cfg *config.Config) (EmbeddingClient, error) {
	factory, name, err := getFactory(ProviderOpenAI)
	if err != nil {
		return nil, err
	}
	if factory.buildEmbeddings == nil {
		return nil, fmt.Errorf("provider %q does not serve embeddings", name)
	}
	return factory.buildEmbeddings(cfg)
}

func getFactory(name string) (providerFactory, string, error) {
	factoryMu.RLock()
	if registrationErr != nil {
		err := registrationErr
		factoryMu.RUnlock()
		return providerFactory{}, name, fmt.Errorf("provider registration failed: %w", err)
	}
	factory, ok := factories[name]
	factoryMu.RUnlock()
	if !ok {
		return providerFactory{}, name, fmt.Errorf("unsupported provider %q: supported providers are %s", name, strings.Join(SupportedProviders(), ", "))
	}
	return factory, name, nil
}

// clientOptions assembles transport settings for one provider section.
func clientOptions(cfg *config.Config, name, defaultBase string, pc config.ProviderConfig, auth *bearerAuth, headers map[string]string) httpClientOptions {
	apiBase := strings.TrimSpace(pc.APIBase)
	if apiBase == "" {
		apiBase = defaultBase
	}
	return httpClientOptions{
		providerName: name,
		apiBase:      apiBase,
		proxy:        pc.Proxy,
		timeout:      time.Duration(cfg.Providers.Limits.RequestTimeoutSecs) * time.Second,
		auth:         auth,
		extraHeaders: headers,
		guard:        guardConfigFrom(cfg.Providers.Limits),
	}
}
