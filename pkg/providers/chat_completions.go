package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

// httpClientOptions are shared by the chat and embedding clients.
type httpClientOptions struct {
	providerName string
	apiBase      string
	proxy        string
	timeout      time.Duration
	auth         *bearerAuth
	extraHeaders map[string]string
	guard        GuardConfig
}

// apiClient is the transport half of an OpenAI-compatible client: it posts
// JSON, applies auth and headers and maps non-2xx replies to errors.
type apiClient struct {
	providerName string
	apiBase      string
	auth         *bearerAuth
	httpClient   *http.Client
	extraHeaders map[string]string
	guard        *guard
}

func newAPIClient(opts httpClientOptions) (*apiClient, error) {
	providerName := strings.TrimSpace(strings.ToLower(opts.providerName))
	if providerName == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	apiBase := strings.TrimRight(strings.TrimSpace(opts.apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("%s API base not configured", providerName)
	}
	if opts.auth == nil {
		return nil, fmt.Errorf("%s auth is not configured", providerName)
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	client := &http.Client{Timeout: timeout}
	if proxy := strings.TrimSpace(opts.proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse %s proxy: %w", providerName, err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	cleanHeaders := map[string]string{}
	for k, v := range opts.extraHeaders {
		name := strings.TrimSpace(k)
		value := strings.TrimSpace(v)
		if name == "" || value == "" {
			continue
		}
		cleanHeaders[name] = value
	}

	return &apiClient{
		providerName: providerName,
		apiBase:      apiBase,
		auth:         opts.auth,
		httpClient:   client,
		extraHeaders: cleanHeaders,
		guard:        newGuard(providerName, opts.guard),
	}, nil
}

// postJSON sends payload to path and returns the raw 2xx response body.
func (c *apiClient) postJSON(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", c.providerName, err)
	}

	var body []byte
	err = c.guard.do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, bytes.NewReader(jsonData))
		if err != nil {
			return fmt.Errorf("create %s request: %w", c.providerName, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if err := c.auth.Apply(ctx, req); err != nil {
			return fmt.Errorf("apply %s auth: %w", c.providerName, err)
		}
		for name, value := range c.extraHeaders {
			req.Header.Set(name, value)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("send %s request: %w", c.providerName, err)
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read %s response: %w", c.providerName, err)
		}
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			msg := augmentProviderError(c.providerName, extractAPIError(body))
			return &APIError{Provider: c.providerName, StatusCode: resp.StatusCode, Message: msg}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// APIError is a non-2xx reply from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed: status=%d error=%s", e.Provider, e.StatusCode, e.Message)
}

type chatCompletionsProvider struct {
	client       *apiClient
	defaultModel string
}

func newChatCompletionsProvider(opts httpClientOptions, defaultModel string) (*chatCompletionsProvider, error) {
	client, err := newAPIClient(opts)
	if err != nil {
		return nil, err
	}
	return &chatCompletionsProvider{
		client:       client,
		defaultModel: strings.TrimSpace(defaultModel),
	}, nil
}

func (p *chatCompletionsProvider) Chat(ctx context.Context, messages []Message, model string, options map[string]interface{}) (*LLMResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("provider not initialized")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = p.GetDefaultModel()
	}

	requestBody := map[string]interface{}{
		"model":    model,
		"messages": messages,
	}
	if maxTokens, ok := optionAsInt(options, "max_tokens"); ok {
		requestBody["max_tokens"] = maxTokens
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		requestBody["temperature"] = temperature
	}

	body, err := p.client.postJSON(ctx, "/chat/completions", requestBody)
	if err != nil {
		return nil, err
	}
	result, err := parseChatCompletionsResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s response: %w", p.client.providerName, err)
	}
	return result, nil
}

func (p *chatCompletionsProvider) GetDefaultModel() string {
	if p == nil {
		return ""
	}
	return p.defaultModel
}

func optionAsInt(opts map[string]interface{}, key string) (int, bool) {
	if len(opts) == 0 {
		return 0, false
	}
	v, ok := opts[key]
	if !ok || v == nil {
		return 0, false
	}
	switch vv := v.(type) {
	case int:
		return vv, true
	case int32:
		return int(vv), true
	case int64:
		return int(vv), true
	case float32:
		return int(vv), true
	case float64:
		return int(vv), true
	default:
		return 0, false
	}
}

func optionAsFloat(opts map[string]interface{}, key string) (float64, bool) {
	if len(opts) == 0 {
		return 0, false
	}
	v, ok := opts[key]
	if !ok || v == nil {
		return 0, false
	}
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	default:
		return 0, false
	}
}

func parseChatCompletionsResponse(body []byte) (*LLMResponse, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content interface{} `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage *UsageInfo `json:"usage"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return nil, err
	}
	if len(apiResponse.Choices) == 0 {
		return &LLMResponse{Content: "", FinishReason: "stop", Usage: apiResponse.Usage}, nil
	}

	choice := apiResponse.Choices[0]
	return &LLMResponse{
		Content:      flattenMessageContent(choice.Message.Content),
		FinishReason: choice.FinishReason,
		Usage:        apiResponse.Usage,
	}, nil
}

// flattenMessageContent accepts both plain string content and the array of
// typed parts some gateways return.
func flattenMessageContent(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
				continue
			}
			if content, ok := m["content"].(string); ok {
				parts = append(parts, content)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error struct {
			Message string      `json:"message"`
			Type    string      `json:"type"`
			Code    interface{} `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}
