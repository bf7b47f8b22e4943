package middleware

import "context"

type contextKey string

const apiKeyHashKey contextKey = "api_key_hash"

// WithAPIKeyHash stores the authenticated key's hash in the context
func WithAPIKeyHash(ctx context.Context, hash string) context.Context {
	return context.WithValue(ctx, apiKeyHashKey, hash)
}

// GetAPIKeyHashFromContext returns the authenticated key's hash, or ""
func GetAPIKeyHashFromContext(ctx context.Context) string {
	if hash, ok := ctx.Value(apiKeyHashKey).(string); ok {
		return hash
	}
	return ""
}
