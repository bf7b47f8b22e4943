package providers

import "fmt"

// ProviderDefaults holds the registered defaults for one provider id.
// Loaded once at startup and never mutated.
type ProviderDefaults struct {
	// DefaultModel used when neither config nor a per-call override names one
	DefaultModel string

	// MaxTokens is the default response cap
	MaxTokens int

	// Temperature is the default sampling temperature
	Temperature float64

	// EnvVar names the environment variable holding the credential
	EnvVar string
}

// defaults is the static provider registry.
var defaults = map[string]ProviderDefaults{
	"anthropic": {
		DefaultModel: "claude-sonnet-4-20250514",
		MaxTokens:    4096,
		Temperature:  0.3,
		EnvVar:       "ANTHROPIC_API_KEY",
	},
	"openai": {
		DefaultModel: "gpt-5",
		MaxTokens:    4096,
		Temperature:  0.3,
		EnvVar:       "OPENAI_API_KEY",
	},
	"google": {
		DefaultModel: "gemini-3-pro-preview",
		MaxTokens:    4096,
		Temperature:  0.3,
		EnvVar:       "GOOGLE_API_KEY",
	},
}

// DefaultsFor returns the registered defaults for a provider id.
func DefaultsFor(name string) (ProviderDefaults, error) {
	d, ok := defaults[name]
	if !ok {
		return ProviderDefaults{}, fmt.Errorf("unknown provider: %s", name)
	}
	return d, nil
}

// KnownProviders returns the ids with registered defaults.
func KnownProviders() []string {
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	return names
}

// Resolve applies the config-then-defaults resolution order and returns the
// effective model, max tokens, and temperature for an adapter. The per-call
// override layer sits above this and is applied by each adapter.
func (d ProviderDefaults) Resolve(cfg Config) (model string, maxTokens int, temperature float64) {
	model = cfg.Model
	if model == "" {
		model = d.DefaultModel
	}
	maxTokens = cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = d.MaxTokens
	}
	temperature = d.Temperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return model, maxTokens, temperature
}
