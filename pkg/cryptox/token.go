package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// TokenIDSize is the entropy (in bytes) of a refresh token id. 32 bytes gives
// 256 bits, which makes collisions and guessing equally irrelevant.
const TokenIDSize = 32

// NewTokenID returns a cryptographically random identifier encoded as
// base64url without padding (43 chars for the default size).
func NewTokenID() (string, error) {
	buf := make([]byte, TokenIDSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: generate token id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint returns a deterministic SHA-256 digest of a token, encoded as
// base64url. Revoked access tokens are stored and looked up by fingerprint so
// the raw bearer credential never sits at rest.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
