package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"go.uber.org/zap"

	"github.com/flakeguard/flakeguard/utils"
)

// apiKeyHeader is the header clients send their key in
const apiKeyHeader = "X-API-Key"

// AuthMiddleware authenticates requests with pre-shared API keys. Keys are
// stored as SHA-256 digests and compared in constant time; the plaintext key
// never leaves the request scope.
type AuthMiddleware struct {
	keyHashes []string
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware over the accepted key hashes
func NewAuthMiddleware(keyHashes []string, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		keyHashes: keyHashes,
		logger:    logger,
	}
}

// HashAPIKey returns the SHA-256 hex digest of a plaintext API key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// RequireAPIKey is a middleware that requires a valid API key
func (m *AuthMiddleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			m.logger.Warn("missing API key", zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Missing API key")
			return
		}

		hash := HashAPIKey(key)
		if !m.validHash(hash) {
			m.logger.Warn("invalid API key", zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Invalid API key")
			return
		}

		ctx := WithAPIKeyHash(r.Context(), hash)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validHash compares against every accepted hash so timing does not reveal
// which entry, if any, matched
func (m *AuthMiddleware) validHash(hash string) bool {
	valid := false
	for _, accepted := range m.keyHashes {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(accepted)) == 1 {
			valid = true
		}
	}
	return valid
}
