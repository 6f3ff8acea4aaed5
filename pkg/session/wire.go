package session

import (
	"fmt"

	"github.com/dotsetgreg/dotfocus/pkg/config"
	"github.com/dotsetgreg/dotfocus/pkg/embedding"
	"github.com/dotsetgreg/dotfocus/pkg/focus"
	"github.com/dotsetgreg/dotfocus/pkg/logger"
	"github.com/dotsetgreg/dotfocus/pkg/providers"
	"github.com/dotsetgreg/dotfocus/pkg/shortener"
	"github.com/dotsetgreg/dotfocus/pkg/tokens"
)

// Wiring records which strategies Build picked.
type Wiring struct {
	Counter   string
	Encoder   string
	Model     string
	Shortener string
	Replier   string
}

func (w Wiring) String() string {
	return fmt.Sprintf("encoder=%s (%s) shortener=%s replier=%s counter=%s", w.Encoder, w.Model, w.Shortener, w.Replier, w.Counter)
}

// Build resolves every strategy from cfg once and returns a ready session.
// With offline set no provider client is created: the hashing encoder,
// heuristic shortener and echo replier are used regardless of credentials.
func Build(cfg *config.Config, offline bool) (*Session, Wiring, error) {
	if offline {
		c := *cfg
		c.Embedding.Kind = config.EncoderHash
		c.Shortener.Kind = config.ShortenerHeuristic
		cfg = &c
	}

	metric, err := tokens.New(cfg.Tokens.Counter, cfg.Session.Model)
	if err != nil {
		return nil, Wiring{}, err
	}
	w := Wiring{Counter: tokens.Describe(metric), Encoder: cfg.EncoderKind(), Shortener: cfg.ShortenerKind(), Replier: "echo"}

	var embClient providers.EmbeddingClient
	if w.Encoder == config.EncoderOpenAI {
		if embClient, err = providers.CreateEmbeddingClient(cfg); err != nil {
			return nil, Wiring{}, fmt.Errorf("embedding client: %w", err)
		}
	}
	encoder, err := embedding.New(cfg, embClient)
	if err != nil {
		return nil, Wiring{}, err
	}
	w.Model = encoder.ModelID()

	var chat providers.LLMProvider
	if !offline {
		if _, configured, _ := providers.ProviderCredentialStatus(cfg); configured {
			if chat, err = providers.CreateProvider(cfg); err != nil {
				return nil, Wiring{}, fmt.Errorf("chat provider: %w", err)
			}
		}
	}
	short, err := shortener.New(cfg, chat, metric)
	if err != nil {
		return nil, Wiring{}, err
	}

	store, err := focus.NewMemoryStore(encoder, metric)
	if err != nil {
		return nil, Wiring{}, err
	}
	ctrl, err := focus.NewController(store, short, cfg.FocusConfigFor(w.Encoder))
	if err != nil {
		return nil, Wiring{}, err
	}

	var replier Replier = EchoReplier{}
	if chat != nil {
		replier = &ProviderReplier{Provider: chat, Model: cfg.Session.Model, Temperature: cfg.Session.Temperature}
		w.Replier = providers.ActiveProviderName(cfg)
	}

	s := New(ctrl, replier, Options{Budget: cfg.Session.Budget, Preamble: cfg.Session.Preamble})
	logger.InfoCF("session", "Session ready", map[string]interface{}{
		"session_id": s.ID,
		"encoder":    w.Encoder,
		"shortener":  w.Shortener,
		"replier":    w.Replier,
		"budget":     cfg.Session.Budget,
	})
	return s, w, nil
}
