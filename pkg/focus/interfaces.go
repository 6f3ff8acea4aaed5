package focus

import (
	"context"

	"github.com/dotsetgreg/dotfocus/pkg/tokens"
)

// TextMetric estimates the model-token length of text. It must be
// deterministic and return 0 for empty text. pkg/tokens provides the
// implementations.
type TextMetric = tokens.Counter

// VectorEncoder embeds text. Vectors from one encoder instance are
// comparable by dot product and must already be unit-normalized.
type VectorEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
}

// TextShortener produces a shorter, topically related version of text near
// targetTokens. It returns text unchanged when it already fits. The output
// length is a best effort; callers must re-measure it.
type TextShortener interface {
	Shorten(ctx context.Context, text string, targetTokens int, hint string) (string, error)
}
