package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// APIKeyAuthenticator implements authentication using static API keys
type APIKeyAuthenticator struct {
	keys [][]byte
}

// NewAPIKeyAuthenticator creates a new API key authenticator. Empty keys
// are ignored.
func NewAPIKeyAuthenticator(keys []string) *APIKeyAuthenticator {
	a := &APIKeyAuthenticator{}
	for _, key := range keys {
		if key != "" {
			a.keys = append(a.keys, []byte(key))
		}
	}
	return a
}

// Authenticate validates a bearer token. The client ID is a short
// fingerprint of the key, so logs never carry the key itself.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimSpace(token)

	if token == "" {
		return "", ErrInvalidToken
	}

	for _, key := range a.keys {
		if subtle.ConstantTimeCompare(key, []byte(token)) == 1 {
			sum := sha256.Sum256(key)
			return "key-" + hex.EncodeToString(sum[:4]), nil
		}
	}

	return "", ErrAuthenticationFailed
}
