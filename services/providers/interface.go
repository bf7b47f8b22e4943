package providers

import (
	"context"
	"errors"
	"time"
)

// Provider represents a unified LLM provider interface
type Provider interface {
	// Name returns the stable provider identifier (e.g., "anthropic", "openai", "google")
	Name() string

	// Analyze performs one diagnosis request against the vendor API and
	// returns the normalized result. Adapters do no retrying and no caching;
	// vendor failures surface as *ProviderError so callers can classify them.
	Analyze(ctx context.Context, req *AnalysisRequest) (*Analysis, error)
}

// AnalysisRequest represents a unified analysis request
type AnalysisRequest struct {
	// UserPrompt contains the test failure context to analyze
	UserPrompt string

	// SystemPrompt is optional framing for the model
	SystemPrompt string

	// Overrides optionally replaces the adapter's registered defaults
	Overrides *Overrides
}

// Overrides holds per-call parameter overrides. Zero values mean
// "use the adapter default"; Temperature is a pointer because 0 is valid.
type Overrides struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

// Analysis is the normalized response from an LLM analysis call.
// It is created once per successful adapter call and never mutated.
type Analysis struct {
	Content      string `json:"content"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model"`
	Provider     string `json:"provider"`
}

// TotalTokens returns the sum of input and output tokens.
func (a *Analysis) TotalTokens() int {
	return a.InputTokens + a.OutputTokens
}

// Config holds common configuration for constructing a provider adapter
type Config struct {
	// APIKey for authentication
	APIKey string

	// BaseURL for the API (optional override)
	BaseURL string

	// Model overrides the registered default model when set
	Model string

	// MaxTokens caps the response length; 0 uses the registered default
	MaxTokens int

	// Temperature for sampling; nil uses the registered default
	Temperature *float64

	// Timeout for the outbound HTTP call
	Timeout time.Duration
}

// ErrorKind classifies a provider failure. The set is closed: adapters
// translate whatever their vendor returns into one of these kinds, so the
// router's fallback decision never depends on vendor SDK error types.
type ErrorKind string

const (
	// KindTransientNetwork covers connection failures and timeouts
	KindTransientNetwork ErrorKind = "transient_network"

	// KindRateLimited covers vendor HTTP 429 responses
	KindRateLimited ErrorKind = "rate_limited"

	// KindVendor4xx covers non-429 vendor client errors
	KindVendor4xx ErrorKind = "vendor_4xx"

	// KindVendor5xx covers vendor server errors
	KindVendor5xx ErrorKind = "vendor_5xx"

	// KindFatal covers programming and argument errors; these must never
	// trigger router fallback
	KindFatal ErrorKind = "fatal"
)

// Recoverable reports whether this kind is eligible for router fallback.
func (k ErrorKind) Recoverable() bool {
	return k != KindFatal
}

// ProviderError represents a classified error from a provider adapter
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Kind is the failure classification
	Kind ErrorKind

	// Message is the human-readable error message
	Message string

	// StatusCode is the vendor HTTP status code, when applicable
	StatusCode int

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Message + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider string, kind ErrorKind, message string, statusCode int, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		Message:    message,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// KindFromStatus maps a vendor HTTP status code to an error kind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindVendor5xx
	case status >= 400:
		return KindVendor4xx
	default:
		return KindTransientNetwork
	}
}

// IsRecoverable reports whether err should trigger router fallback.
// Only classified provider errors with a recoverable kind qualify; anything
// else is treated as a programming error and propagates immediately.
func IsRecoverable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Kind.Recoverable()
	}
	return false
}
