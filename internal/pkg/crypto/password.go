// Package crypto provides cryptographic utilities for the AIPM identity service:
// password digests and session token generation.
package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2 parameters for new digests.
const (
	argon2Time    = 2
	argon2Memory  = 19 * 1024
	argon2Threads = 1
	argon2KeyLen  = 32

	argon2Prefix = "$argon2id$"
)

// HashPassword derives a digest from plaintext and the process-wide secret.
// The transform is deterministic: the secret acts as the salt, so equal
// inputs always produce equal digests.
// Format: $argon2id$v=19$m=19456,t=2,p=1$<base64 key>
func HashPassword(plaintext, secret string) string {
	key := argon2.IDKey([]byte(plaintext), []byte(secret), argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s",
		argon2Prefix, argon2.Version, argon2Memory, argon2Time, argon2Threads,
		base64.RawStdEncoding.EncodeToString(key))
}

// VerifyPassword recomputes the digest of plaintext and compares it with
// digest in constant time.
// Digests written by the previous toolkit (hex sha256 of plaintext+secret)
// are still accepted.
func VerifyPassword(plaintext, secret, digest string) bool {
	if strings.HasPrefix(digest, argon2Prefix) {
		return verifyArgon2(plaintext, secret, digest)
	}
	if IsLegacyDigest(digest) {
		return subtle.ConstantTimeCompare([]byte(LegacyHashPassword(plaintext, secret)), []byte(strings.ToLower(digest))) == 1
	}
	return false
}

// LegacyHashPassword computes the hex sha256 digest used by the previous toolkit.
func LegacyHashPassword(plaintext, secret string) string {
	sum := sha256.Sum256([]byte(plaintext + secret))
	return hex.EncodeToString(sum[:])
}

// IsLegacyDigest reports whether digest has the previous toolkit's format.
func IsLegacyDigest(digest string) bool {
	return ValidateSHA256(digest)
}

// verifyArgon2 parses the parameters stored in digest so digests created
// with older parameters keep verifying.
func verifyArgon2(plaintext, secret, digest string) bool {
	// "", "argon2id", "v=19", "m=..,t=..,p=..", "<key>"
	parts := strings.Split(digest, "$")
	if len(parts) != 5 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}

	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(want) == 0 {
		return false
	}

	got := argon2.IDKey([]byte(plaintext), []byte(secret), iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}

// ValidateSHA256 validates that a string is a valid SHA-256 hex hash.
func ValidateSHA256(hash string) bool {
	if len(hash) != 64 {
		return false
	}
	for _, c := range hash {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
