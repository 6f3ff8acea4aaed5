package providers

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dotsetgreg/dotfocus/pkg/config"
)

const (
	credentialAPIKey     = "api_key"
	credentialAPIKeyFile = "api_key_file"
)

type credentialCandidate struct {
	mode   string
	source string
	field  string
}

// resolveCredential picks the single configured credential of a provider
// section. Configuring both a key and a key file is an error.
func resolveCredential(label, section string, pc config.ProviderConfig) (TokenSource, error) {
	candidates := make([]credentialCandidate, 0, 2)
	if key := strings.TrimSpace(pc.APIKey); key != "" {
		candidates = append(candidates, credentialCandidate{mode: credentialAPIKey, source: key, field: section + ".api_key"})
	}
	if file := strings.TrimSpace(pc.APIKeyFile); file != "" {
		candidates = append(candidates, credentialCandidate{mode: credentialAPIKeyFile, source: file, field: section + ".api_key_file"})
	}

	mode, source, field, err := selectSingleCredential(
		candidates,
		fmt.Sprintf("%s API key is required (set %s.api_key or %s.api_key_file)", label, section, section),
		fmt.Sprintf("multiple %s credential sources configured", label),
	)
	if err != nil {
		return nil, err
	}
	if mode == credentialAPIKeyFile {
		resolved := config.ExpandHome(source)
		if _, err := os.Stat(resolved); err != nil {
			return nil, fmt.Errorf("%s API key file not accessible at %s: %w", label, resolved, err)
		}
		return NewFileTokenSource(source), nil
	}
	return NewStaticTokenSource(source, field), nil
}

func selectSingleCredential(
	candidates []credentialCandidate,
	missingMessage string,
	multiPrefix string,
) (mode, source, field string, err error) {
	switch len(candidates) {
	case 0:
		return "", "", "", fmt.Errorf("%s", strings.TrimSpace(missingMessage))
	case 1:
		chosen := candidates[0]
		return chosen.mode, chosen.source, chosen.field, nil
	default:
		fields := make([]string, 0, len(candidates))
		for _, item := range candidates {
			fields = append(fields, item.field)
		}
		sort.Strings(fields)
		return "", "", "", fmt.Errorf(
			"%s (%s); set exactly one",
			strings.TrimSpace(multiPrefix),
			strings.Join(fields, ", "),
		)
	}
}
