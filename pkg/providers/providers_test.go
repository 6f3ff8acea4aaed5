package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dotsetgreg/dotfocus/pkg/config"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Providers.OpenAI.APIKey = "sk-openai"
	cfg.Providers.OpenAI.APIBase = baseURL
	cfg.Providers.Limits.RequestsPerSecond = 0
	return cfg
}

func TestCreateProvider_OpenAI_DefaultSelection(t *testing.T) {
	var seenAuth, seenPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		seenPath = r.URL.Path
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got := req["model"]; got != defaultOpenAIModel {
			t.Errorf("expected default model %q, got %v", defaultOpenAIModel, got)
		}
		if got := req["temperature"]; got != 0.2 {
			t.Errorf("expected temperature 0.2, got %v", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":1,"total_tokens":6}}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Providers.Provider = ""

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", map[string]interface{}{"temperature": 0.2})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("expected response content ok, got %q", resp.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 6 {
		t.Fatalf("expected usage to be parsed, got %+v", resp.Usage)
	}
	if seenAuth != "Bearer sk-openai" {
		t.Fatalf("expected bearer auth, got %q", seenAuth)
	}
	if seenPath != "/chat/completions" {
		t.Fatalf("expected /chat/completions path, got %q", seenPath)
	}
}

func TestCreateProvider_OpenRouter_ModelOverride(t *testing.T) {
	var seenTitle string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenTitle = r.Header.Get("X-Title")
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if got := req["model"]; got != "anthropic/some-model" {
			t.Errorf("expected model override, got %v", got)
		}
		if got := req["max_tokens"]; got != float64(64) {
			t.Errorf("expected max_tokens 64, got %v", got)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	cfg := config.DefaultConfig()
	cfg.Providers.Provider = ProviderOpenRouter
	cfg.Providers.OpenRouter.APIKey = "or-key"
	cfg.Providers.OpenRouter.APIBase = server.URL

	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if provider.GetDefaultModel() != defaultOpenRouterModel {
		t.Fatalf("unexpected default model %q", provider.GetDefaultModel())
	}
	resp, err := provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "anthropic/some-model", map[string]interface{}{"max_tokens": 64})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "part one part two" {
		t.Fatalf("expected flattened content, got %q", resp.Content)
	}
	if seenTitle != "dotfocus" {
		t.Fatalf("expected X-Title header, got %q", seenTitle)
	}
}

func TestChat_APIErrorIsExtracted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	provider, err := CreateProvider(testConfig(server.URL))
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	_, err = provider.Chat(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "Incorrect API key provided") || !strings.Contains(apiErr.Message, "Hint:") {
		t.Fatalf("expected extracted message with hint, got %q", apiErr.Message)
	}
}

func TestChat_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`upstream exploded`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Providers.Limits.BreakerMaxFailures = 2
	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}

	msgs := []Message{{Role: "user", Content: "hi"}}
	for i := 0; i < 2; i++ {
		if _, err := provider.Chat(context.Background(), msgs, "", nil); err == nil || errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}
	_, err = provider.Chat(context.Background(), msgs, "", nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected open circuit to short-circuit the request, server saw %d calls", got)
	}
}

func TestChat_RateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Providers.Limits.RequestsPerSecond = 0.001
	cfg.Providers.Limits.Burst = 1
	provider, err := CreateProvider(cfg)
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}

	msgs := []Message{{Role: "user", Content: "hi"}}
	if _, err := provider.Chat(context.Background(), msgs, "", nil); err != nil {
		t.Fatalf("first call should use the burst: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := provider.Chat(ctx, msgs, "", nil); err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Fatalf("expected rate limit wait error, got %v", err)
	}
}

func TestCreateEmbeddingClient_OpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["model"] != "text-embedding-3-small" || req["input"] != "hello world" {
			t.Errorf("unexpected request %v", req)
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,-0.25,1.0]}]}`))
	}))
	defer server.Close()

	client, err := CreateEmbeddingClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("create embedding client: %v", err)
	}
	if client.Model() != "text-embedding-3-small" {
		t.Fatalf("unexpected model %q", client.Model())
	}
	vec, err := client.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	want := []float32{0.5, -0.25, 1.0}
	if len(vec) != len(want) {
		t.Fatalf("expected %d dims, got %d", len(want), len(vec))
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Fatalf("dim %d: expected %v, got %v", i, want[i], vec[i])
		}
	}
}

func TestEmbed_EmptyDataIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client, err := CreateEmbeddingClient(testConfig(server.URL))
	if err != nil {
		t.Fatalf("create embedding client: %v", err)
	}
	if _, err := client.Embed(context.Background(), "x"); err == nil || !strings.Contains(err.Error(), "no embedding") {
		t.Fatalf("expected no embedding error, got %v", err)
	}
}

func TestCreateProvider_UnsupportedProvider(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Providers.Provider = "llama-farm"
	_, err := CreateProvider(cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported provider") {
		t.Fatalf("expected unsupported provider error, got %v", err)
	}
	if !strings.Contains(err.Error(), "openai, openrouter") {
		t.Fatalf("expected supported providers to be listed, got %v", err)
	}
}

func TestValidateProviderConfig_MissingCredentials(t *testing.T) {
	cfg := config.DefaultConfig()
	err := ValidateProviderConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected missing credential error, got %v", err)
	}

	provider, configured, err := ProviderCredentialStatus(cfg)
	if err != nil {
		t.Fatalf("credential status: %v", err)
	}
	if provider != ProviderOpenAI || configured {
		t.Fatalf("expected unconfigured openai, got %s configured=%v", provider, configured)
	}

	cfg.Providers.OpenAI.APIKey = "sk-real"
	if _, configured, _ := ProviderCredentialStatus(cfg); !configured {
		t.Fatalf("expected configured after setting api key")
	}
}
