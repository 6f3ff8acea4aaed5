package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dotsetgreg/dotfocus/pkg/focus"
	"github.com/dotsetgreg/dotfocus/pkg/logger"
	"github.com/dotsetgreg/dotfocus/pkg/tokens"
)

const (
	EncoderAuto     = "auto"
	EncoderHash     = "hash"
	EncoderChargram = "chargram"
	EncoderOpenAI   = "openai"

	ShortenerAuto      = "auto"
	ShortenerHeuristic = "heuristic"
	ShortenerLLM       = "llm"
)

// DefaultPath is where the CLI looks for a config file when none is given.
const DefaultPath = "~/.dotfocus/config.json"

type Config struct {
	Focus     FocusConfig     `json:"focus" yaml:"focus"`
	Session   SessionConfig   `json:"session" yaml:"session"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Shortener ShortenerConfig `json:"shortener" yaml:"shortener"`
	Tokens    TokensConfig    `json:"tokens" yaml:"tokens"`
	Providers ProvidersConfig `json:"providers" yaml:"providers"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// FocusConfig carries two threshold pairs: remote embeddings produce much
// higher similarities than the offline hashing encoders.
type FocusConfig struct {
	HighThreshold        float64 `json:"high_threshold" yaml:"high_threshold" env:"DOTFOCUS_FOCUS_HIGH_THRESHOLD"`
	MidThreshold         float64 `json:"mid_threshold" yaml:"mid_threshold" env:"DOTFOCUS_FOCUS_MID_THRESHOLD"`
	HashHighThreshold    float64 `json:"hash_high_threshold" yaml:"hash_high_threshold" env:"DOTFOCUS_FOCUS_HASH_HIGH_THRESHOLD"`
	HashMidThreshold     float64 `json:"hash_mid_threshold" yaml:"hash_mid_threshold" env:"DOTFOCUS_FOCUS_HASH_MID_THRESHOLD"`
	RecencyHalfLife      int     `json:"recency_half_life" yaml:"recency_half_life" env:"DOTFOCUS_FOCUS_RECENCY_HALF_LIFE"`
	MaxPlaceholderTokens int     `json:"max_placeholder_tokens" yaml:"max_placeholder_tokens" env:"DOTFOCUS_FOCUS_MAX_PLACEHOLDER_TOKENS"`
	DefaultCompressRatio float64 `json:"default_compress_ratio" yaml:"default_compress_ratio" env:"DOTFOCUS_FOCUS_DEFAULT_COMPRESS_RATIO"`
}

type SessionConfig struct {
	Budget      int     `json:"budget" yaml:"budget" env:"DOTFOCUS_SESSION_BUDGET"`
	Preamble    string  `json:"preamble" yaml:"preamble" env:"DOTFOCUS_SESSION_PREAMBLE"`
	Model       string  `json:"model" yaml:"model" env:"DOTFOCUS_SESSION_MODEL"`
	Temperature float64 `json:"temperature" yaml:"temperature" env:"DOTFOCUS_SESSION_TEMPERATURE"`
	HistoryFile string  `json:"history_file" yaml:"history_file" env:"DOTFOCUS_SESSION_HISTORY_FILE"`
}

type EmbeddingConfig struct {
	Kind  string `json:"kind" yaml:"kind" env:"DOTFOCUS_EMBEDDING_KIND"`
	Dim   int    `json:"dim" yaml:"dim" env:"DOTFOCUS_EMBEDDING_DIM"`
	Model string `json:"model" yaml:"model" env:"DOTFOCUS_EMBEDDING_MODEL"`
}

type ShortenerConfig struct {
	Kind        string  `json:"kind" yaml:"kind" env:"DOTFOCUS_SHORTENER_KIND"`
	Model       string  `json:"model" yaml:"model" env:"DOTFOCUS_SHORTENER_MODEL"`
	Temperature float64 `json:"temperature" yaml:"temperature" env:"DOTFOCUS_SHORTENER_TEMPERATURE"`
}

type TokensConfig struct {
	Counter string `json:"counter" yaml:"counter" env:"DOTFOCUS_TOKENS_COUNTER"`
}

// ProvidersConfig selects the chat provider. OpenRouter serves chat only;
// embeddings always go to OpenAI.
type ProvidersConfig struct {
	Provider   string         `json:"provider" yaml:"provider" env:"DOTFOCUS_PROVIDERS_PROVIDER"`
	OpenAI     ProviderConfig `json:"openai" yaml:"openai" envPrefix:"DOTFOCUS_PROVIDERS_OPENAI_"`
	OpenRouter ProviderConfig `json:"openrouter" yaml:"openrouter" envPrefix:"DOTFOCUS_PROVIDERS_OPENROUTER_"`
	Limits     LimitsConfig   `json:"limits" yaml:"limits"`
}

type ProviderConfig struct {
	APIKey     string `json:"api_key" yaml:"api_key" env:"API_KEY"`
	APIKeyFile string `json:"api_key_file,omitempty" yaml:"api_key_file,omitempty" env:"API_KEY_FILE"`
	APIBase    string `json:"api_base" yaml:"api_base" env:"API_BASE"`
	Proxy      string `json:"proxy,omitempty" yaml:"proxy,omitempty" env:"PROXY"`
}

// LimitsConfig bounds outbound provider traffic.
type LimitsConfig struct {
	RequestsPerSecond  float64 `json:"requests_per_second" yaml:"requests_per_second" env:"DOTFOCUS_PROVIDERS_LIMITS_REQUESTS_PER_SECOND"`
	Burst              int     `json:"burst" yaml:"burst" env:"DOTFOCUS_PROVIDERS_LIMITS_BURST"`
	BreakerMaxFailures uint32  `json:"breaker_max_failures" yaml:"breaker_max_failures" env:"DOTFOCUS_PROVIDERS_LIMITS_BREAKER_MAX_FAILURES"`
	BreakerOpenSeconds int     `json:"breaker_open_seconds" yaml:"breaker_open_seconds" env:"DOTFOCUS_PROVIDERS_LIMITS_BREAKER_OPEN_SECONDS"`
	RequestTimeoutSecs int     `json:"request_timeout_seconds" yaml:"request_timeout_seconds" env:"DOTFOCUS_PROVIDERS_LIMITS_REQUEST_TIMEOUT_SECONDS"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level" env:"DOTFOCUS_LOGGING_LEVEL"`
}

func DefaultConfig() *Config {
	return &Config{
		Focus: FocusConfig{
			HighThreshold:        0.45,
			MidThreshold:         0.25,
			HashHighThreshold:    0.20,
			HashMidThreshold:     0.05,
			RecencyHalfLife:      10,
			MaxPlaceholderTokens: 12,
			DefaultCompressRatio: 0.35,
		},
		Session: SessionConfig{
			Budget:      800,
			Preamble:    "You are a helpful, concise assistant.",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			HistoryFile: "~/.dotfocus/history",
		},
		Embedding: EmbeddingConfig{
			Kind:  EncoderAuto,
			Dim:   512,
			Model: "text-embedding-3-small",
		},
		Shortener: ShortenerConfig{
			Kind:        ShortenerAuto,
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
		Tokens: TokensConfig{
			Counter: tokens.CounterTiktoken,
		},
		Providers: ProvidersConfig{
			Provider: "openai",
			Limits: LimitsConfig{
				RequestsPerSecond:  5,
				Burst:              5,
				BreakerMaxFailures: 3,
				BreakerOpenSeconds: 30,
				RequestTimeoutSecs: 60,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads path over the defaults, applies DOTFOCUS_* environment
// overrides and validates the result. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	path = ExpandHome(path)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logger.DebugCF("config", "Config file not found, using defaults", map[string]interface{}{"path": path})
	default:
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	// The conventional variable is honoured when no explicit key is set.
	if cfg.Providers.OpenAI.APIKey == "" && cfg.Providers.OpenAI.APIKeyFile == "" {
		cfg.Providers.OpenAI.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	path = ExpandHome(path)
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func decode(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Validate checks every section and reports all problems together.
func (c *Config) Validate() error {
	var errs []error
	if err := c.FocusConfigFor(EncoderOpenAI).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("focus: %w", err))
	}
	if err := c.FocusConfigFor(EncoderHash).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("focus (hashing thresholds): %w", err))
	}
	if c.Session.Budget < 0 {
		errs = append(errs, fmt.Errorf("session.budget must not be negative, got %d", c.Session.Budget))
	}
	switch c.Embedding.Kind {
	case EncoderAuto, EncoderHash, EncoderChargram, EncoderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("embedding.kind %q is not one of auto, hash, chargram, openai", c.Embedding.Kind))
	}
	if c.Embedding.Dim <= 0 {
		errs = append(errs, fmt.Errorf("embedding.dim must be positive, got %d", c.Embedding.Dim))
	}
	switch c.Shortener.Kind {
	case ShortenerAuto, ShortenerHeuristic, ShortenerLLM:
	default:
		errs = append(errs, fmt.Errorf("shortener.kind %q is not one of auto, heuristic, llm", c.Shortener.Kind))
	}
	if _, err := tokens.New(c.Tokens.Counter, c.Session.Model); err != nil {
		errs = append(errs, fmt.Errorf("tokens.counter: %w", err))
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	if c.Providers.Limits.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("providers.limits.requests_per_second must not be negative"))
	}
	return errors.Join(errs...)
}

// EncoderKind resolves "auto" to openai when OpenAI credentials are present
// and to the offline hashing encoder otherwise.
func (c *Config) EncoderKind() string {
	if c.Embedding.Kind != EncoderAuto {
		return c.Embedding.Kind
	}
	if c.Providers.OpenAI.HasCredentials() {
		return EncoderOpenAI
	}
	return EncoderHash
}

// ShortenerKind resolves "auto" to llm when the active chat provider has
// credentials.
func (c *Config) ShortenerKind() string {
	if c.Shortener.Kind != ShortenerAuto {
		return c.Shortener.Kind
	}
	if c.ActiveProvider().HasCredentials() {
		return ShortenerLLM
	}
	return ShortenerHeuristic
}

// ActiveProvider returns the settings of the configured chat provider.
func (c *Config) ActiveProvider() ProviderConfig {
	if strings.EqualFold(strings.TrimSpace(c.Providers.Provider), "openrouter") {
		return c.Providers.OpenRouter
	}
	return c.Providers.OpenAI
}

// FocusConfigFor returns the controller settings matching an encoder kind.
func (c *Config) FocusConfigFor(encoderKind string) focus.FocusConfig {
	fc := focus.FocusConfig{
		HighThreshold:        c.Focus.HighThreshold,
		MidThreshold:         c.Focus.MidThreshold,
		RecencyHalfLife:      c.Focus.RecencyHalfLife,
		MaxPlaceholderTokens: c.Focus.MaxPlaceholderTokens,
		DefaultCompressRatio: c.Focus.DefaultCompressRatio,
	}
	if encoderKind != EncoderOpenAI {
		fc.HighThreshold = c.Focus.HashHighThreshold
		fc.MidThreshold = c.Focus.HashMidThreshold
	}
	return fc
}

func (p ProviderConfig) HasCredentials() bool {
	return strings.TrimSpace(p.APIKey) != "" || strings.TrimSpace(p.APIKeyFile) != ""
}

// Redacted returns a copy safe to print, with API keys masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Providers.OpenAI.APIKey = MaskSecret(out.Providers.OpenAI.APIKey)
	out.Providers.OpenRouter.APIKey = MaskSecret(out.Providers.OpenRouter.APIKey)
	return &out
}

func MaskSecret(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return s[:4] + "****" + s[len(s)-4:]
	}
}

func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
