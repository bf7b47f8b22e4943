package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/middleware"
	"github.com/flakeguard/flakeguard/services/analysis"
	"github.com/flakeguard/flakeguard/services/providers"
)

type stubAnalysisService struct {
	result       *analysis.Result
	err          error
	gotUser      string
	gotSystem    string
	gotOverrides *providers.Overrides
	gotHash      string
}

func (s *stubAnalysisService) Analyze(ctx context.Context, systemPrompt, userPrompt string, overrides *providers.Overrides, apiKeyHash string) (*analysis.Result, error) {
	s.gotSystem = systemPrompt
	s.gotUser = userPrompt
	s.gotOverrides = overrides
	s.gotHash = apiKeyHash
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func postAnalyze(t *testing.T, handler *AnalyzeHandler, body string, hash string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", strings.NewReader(body))
	if hash != "" {
		req = req.WithContext(middleware.WithAPIKeyHash(req.Context(), hash))
	}
	rec := httptest.NewRecorder()
	handler.HandleAnalyze(rec, req)
	return rec
}

func TestHandleAnalyze_Success(t *testing.T) {
	svc := &stubAnalysisService{
		result: &analysis.Result{
			RequestID: "req-1",
			Analysis: &providers.Analysis{
				Content:      "the mock expires mid-test",
				InputTokens:  100,
				OutputTokens: 50,
				Model:        "gpt-5",
				Provider:     "openai",
			},
			Cost: decimal.RequireFromString("0.00075"),
		},
	}
	handler := NewAnalyzeHandler(svc, zap.NewNop())

	body := `{"user_prompt":"TestLogin failed on CI","system_prompt":"diagnose","model":"gpt-5","max_tokens":512}`
	rec := postAnalyze(t, handler, body, "hash-1")

	require.Equal(t, http.StatusOK, rec.Code)

	var resp analysis.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, "the mock expires mid-test", resp.Analysis.Content)

	assert.Equal(t, "TestLogin failed on CI", svc.gotUser)
	assert.Equal(t, "diagnose", svc.gotSystem)
	assert.Equal(t, "hash-1", svc.gotHash)
	require.NotNil(t, svc.gotOverrides)
	assert.Equal(t, "gpt-5", svc.gotOverrides.Model)
	assert.Equal(t, 512, svc.gotOverrides.MaxTokens)
}

func TestHandleAnalyze_NoOverridesWhenAbsent(t *testing.T) {
	svc := &stubAnalysisService{result: &analysis.Result{RequestID: "req-1"}}
	handler := NewAnalyzeHandler(svc, zap.NewNop())

	rec := postAnalyze(t, handler, `{"user_prompt":"prompt"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.gotOverrides)
}

func TestHandleAnalyze_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"user_prompt":`},
		{"missing user prompt", `{"system_prompt":"diagnose"}`},
		{"zero max tokens rejected", `{"user_prompt":"x","max_tokens":-5}`},
		{"temperature out of range", `{"user_prompt":"x","temperature":3.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubAnalysisService{result: &analysis.Result{}}
			handler := NewAnalyzeHandler(svc, zap.NewNop())

			rec := postAnalyze(t, handler, tt.body, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleAnalyze_AllProvidersFailed(t *testing.T) {
	svc := &stubAnalysisService{
		err: providers.NewProviderError("openai", providers.KindVendor5xx, "overloaded", 503, nil),
	}
	handler := NewAnalyzeHandler(svc, zap.NewNop())

	rec := postAnalyze(t, handler, `{"user_prompt":"prompt"}`, "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_failure")
}

func TestHandleAnalyze_ContextCancelled(t *testing.T) {
	svc := &stubAnalysisService{err: context.Canceled}
	handler := NewAnalyzeHandler(svc, zap.NewNop())

	rec := postAnalyze(t, handler, `{"user_prompt":"prompt"}`, "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Request timed out")
}

func TestHandleAnalyze_UnclassifiedErrorIs500(t *testing.T) {
	svc := &stubAnalysisService{err: errors.New("nil pointer somewhere")}
	handler := NewAnalyzeHandler(svc, zap.NewNop())

	rec := postAnalyze(t, handler, `{"user_prompt":"prompt"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_error")
}
