// Package factory constructs provider adapters from provider ids. It lives
// outside the providers package so that the capability types stay free of
// vendor imports.
package factory

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/services/providers"
	"github.com/flakeguard/flakeguard/services/providers/anthropic"
	"github.com/flakeguard/flakeguard/services/providers/gemini"
	"github.com/flakeguard/flakeguard/services/providers/openai"
)

// New constructs the adapter registered under the given provider id.
func New(name string, cfg providers.Config, logger *zap.Logger) (providers.Provider, error) {
	if cfg.APIKey == "" {
		defaults, err := providers.DefaultsFor(name)
		if err != nil {
			return nil, unknownProvider(name)
		}
		return nil, fmt.Errorf("provider %s: missing API key (set %s)", name, defaults.EnvVar)
	}

	switch name {
	case "anthropic":
		return anthropic.New(cfg, logger), nil
	case "openai":
		return openai.New(cfg, logger), nil
	case "google":
		return gemini.New(cfg, logger), nil
	default:
		return nil, unknownProvider(name)
	}
}

func unknownProvider(name string) error {
	valid := providers.KnownProviders()
	sort.Strings(valid)
	return fmt.Errorf("unknown provider: %s (valid providers: %s)", name, strings.Join(valid, ", "))
}
