package providers

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/dotsetgreg/dotfocus/pkg/config"
)

// TokenSource returns bearer material for request auth.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Source() string
}

type staticTokenSource struct {
	token  string
	source string
}

func NewStaticTokenSource(token, source string) TokenSource {
	return &staticTokenSource{
		token:  strings.TrimSpace(token),
		source: strings.TrimSpace(source),
	}
}

func (s *staticTokenSource) Token(context.Context) (string, error) {
	if s.token == "" {
		return "", fmt.Errorf("token is empty for %s", s.Source())
	}
	if isPlaceholderToken(s.token) {
		return "", fmt.Errorf("token for %s looks like a placeholder; set a real API key", s.Source())
	}
	return s.token, nil
}

func (s *staticTokenSource) Source() string {
	if s.source != "" {
		return s.source
	}
	return "static"
}

// fileTokenSource reads the key on every request so rotated files are
// picked up without a restart.
type fileTokenSource struct {
	path string
}

func NewFileTokenSource(path string) TokenSource {
	return &fileTokenSource{path: strings.TrimSpace(path)}
}

func (s *fileTokenSource) Token(context.Context) (string, error) {
	resolved := config.ExpandHome(s.path)
	if resolved == "" {
		return "", fmt.Errorf("token file path is empty")
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read token file %s: %w", resolved, err)
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return "", fmt.Errorf("token file %s is empty", resolved)
	}
	return tok, nil
}

func (s *fileTokenSource) Source() string {
	if resolved := config.ExpandHome(s.path); resolved != "" {
		return resolved
	}
	return "token_file"
}

// bearerAuth sets the Authorization header from a TokenSource.
type bearerAuth struct {
	source TokenSource
}

func newBearerAuth(source TokenSource) *bearerAuth {
	return &bearerAuth{source: source}
}

func (a *bearerAuth) Apply(ctx context.Context, req *http.Request) error {
	if a == nil || a.source == nil {
		return fmt.Errorf("auth token source is nil")
	}
	tok, err := a.source.Token(ctx)
	if err != nil {
		return fmt.Errorf("resolve auth token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}

func isPlaceholderToken(tok string) bool {
	lower := strings.ToLower(tok)
	switch {
	case strings.HasPrefix(tok, "${") || strings.HasPrefix(tok, "$"):
		return true
	case strings.HasPrefix(tok, "<") && strings.HasSuffix(tok, ">"):
		return true
	case lower == "changeme", lower == "your-api-key", lower == "sk-...":
		return true
	default:
		return false
	}
}
