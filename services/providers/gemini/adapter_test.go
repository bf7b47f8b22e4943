package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/services/providers"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(providers.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
	}, zap.NewNop())
}

func TestAdapter_Name(t *testing.T) {
	adapter := New(providers.Config{APIKey: "k"}, zap.NewNop())
	assert.Equal(t, "google", adapter.Name())
}

func TestAdapter_Analyze_Success(t *testing.T) {
	var captured generateRequest

	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-3-pro-preview:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(generateResponse{
			Candidates: []candidate{
				{Content: content{Role: "model", Parts: []part{{Text: "The fixture is order-dependent."}}}},
			},
			UsageMetadata: usageMetadata{PromptTokenCount: 90, CandidatesTokenCount: 45},
		})
	})

	result, err := adapter.Analyze(context.Background(), &providers.AnalysisRequest{
		SystemPrompt: "You diagnose flaky tests.",
		UserPrompt:   "TestMigrations passes alone, fails in suite",
	})
	require.NoError(t, err)

	assert.Equal(t, "The fixture is order-dependent.", result.Content)
	assert.Equal(t, 90, result.InputTokens)
	assert.Equal(t, 45, result.OutputTokens)
	assert.Equal(t, "gemini-3-pro-preview", result.Model)
	assert.Equal(t, "google", result.Provider)

	require.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You diagnose flaky tests.", captured.SystemInstruction.Parts[0].Text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, 4096, captured.GenerationConfig.MaxOutputTokens)
}

func TestAdapter_Analyze_ModelOverrideChangesURL(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", r.URL.Path)
		_ = json.NewEncoder(w).Encode(generateResponse{
			Candidates: []candidate{{Content: content{Parts: []part{{Text: "ok"}}}}},
		})
	})

	result, err := adapter.Analyze(context.Background(), &providers.AnalysisRequest{
		UserPrompt: "prompt",
		Overrides:  &providers.Overrides{Model: "gemini-2.0-flash"},
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", result.Model)
}

func TestAdapter_Analyze_EmptyPromptIsFatal(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request should be sent for an empty prompt")
	})

	_, err := adapter.Analyze(context.Background(), &providers.AnalysisRequest{})
	require.Error(t, err)

	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, providers.KindFatal, provErr.Kind)
}

func TestAdapter_Analyze_ErrorClassification(t *testing.T) {
	tests := []struct {
		status   int
		wantKind providers.ErrorKind
	}{
		{http.StatusTooManyRequests, providers.KindRateLimited},
		{http.StatusServiceUnavailable, providers.KindVendor5xx},
		{http.StatusForbidden, providers.KindVendor4xx},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
			})

			_, err := adapter.Analyze(context.Background(), &providers.AnalysisRequest{UserPrompt: "prompt"})
			require.Error(t, err)

			var provErr *providers.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.wantKind, provErr.Kind)
			assert.Equal(t, "quota exceeded", provErr.Message)
		})
	}
}

func TestAdapter_Analyze_EmptyCandidates(t *testing.T) {
	adapter := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(generateResponse{})
	})

	_, err := adapter.Analyze(context.Background(), &providers.AnalysisRequest{UserPrompt: "prompt"})
	require.Error(t, err)

	var provErr *providers.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, providers.KindVendor5xx, provErr.Kind)
}
