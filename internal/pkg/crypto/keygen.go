package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// TokenBytes is the amount of randomness in session tokens and secrets.
	TokenBytes = 32
)

// GenerateSessionToken returns a fresh unguessable session token:
// 32 random bytes, base64 raw-URL encoded (43 characters).
func GenerateSessionToken() (string, error) {
	return randomURLString(TokenBytes)
}

// GenerateSecretKey returns a random secret for the password hasher.
func GenerateSecretKey() (string, error) {
	return randomURLString(TokenBytes)
}

// randomURLString reads n random bytes and encodes them URL-safely.
func randomURLString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
