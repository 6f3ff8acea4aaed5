package providers

import "strings"

func augmentProviderError(providerName, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}

	lower := strings.ToLower(msg)
	switch NormalizeProviderName(providerName) {
	case ProviderOpenAI:
		if strings.Contains(lower, "incorrect api key provided") {
			return msg + " Hint: check providers.openai.api_key or OPENAI_API_KEY."
		}
		if strings.Contains(lower, "does not exist") && strings.Contains(lower, "model") {
			return msg + " Hint: set session.model or embedding.model to a model your account can use."
		}
	case ProviderOpenRouter:
		if strings.Contains(lower, "insufficient credits") {
			return msg + " Hint: add OpenRouter credits or switch providers.provider to openai."
		}
	}
	return msg
}
