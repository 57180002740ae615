// Package crypto provides the deterministic, platform-vetted cryptographic
// wrappers the rest of the engine is built on: random opaque tokens,
// constant-time secret comparison, and opaque-token hashing.
//
// Nothing in this package implements its own cipher or hash construction;
// it only wraps stdlib primitives and golang.org/x/crypto/bcrypt behind a
// narrow, intention-revealing API so that callers never reach for
// crypto/subtle or crypto/rand directly.
package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// RandomOpaque returns n cryptographically random bytes encoded base64url
// without padding, per spec: "random_opaque(n) returns n cryptographically
// random bytes encoded base64url without padding."
func RandomOpaque(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("crypto: generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ConstantTimeEqual compares two secrets without leaking timing
// information. Use for client_secret, PKCE verifier, and code comparisons.
func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SHA1Hex returns the lowercase hex-encoded SHA-1 digest of s.
//
// Nothing in this module calls it: session.ResponsibilityHash always uses
// SHA256Hex below, and no configuration selects SHA-1.
func SHA1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return fmt.Sprintf("%x", sum)
}

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of s.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}

// HMACSHA256 returns the raw HMAC-SHA256 of message under key.
func HMACSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// VerifyHMACSHA256 reports whether mac is the valid HMAC-SHA256 of message
// under key, in constant time.
func VerifyHMACSHA256(key, message, mac []byte) bool {
	expected := HMACSHA256(key, message)
	return hmac.Equal(expected, mac)
}

// bcryptCost mirrors the teacher's tokenhash.go choice: slow, for
// secrets compared by value rather than looked up by key.
const bcryptCost = 12

// HashSecret hashes a secret compared by value (the static validator's
// stored passwords) with bcrypt. Refresh token ids and authorization codes
// are keyed with HashLookupKey instead.
func HashSecret(secret string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("crypto: hash secret: %w", err)
	}
	return string(h), nil
}

// VerifySecret reports whether secret matches a bcrypt hash produced by
// HashSecret.
func VerifySecret(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// HashLookupKey hashes a high-frequency lookup key (authorization code or
// refresh token id) with SHA-256, fast enough for per-request store lookups
// while still keeping the plaintext value out of the store's key space at rest.
func HashLookupKey(key string) string {
	return SHA256Hex(key)
}

// PKCEChallengeS256 computes the S256 code_challenge for a given verifier:
// base64url(SHA256(verifier)), no padding.
func PKCEChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// VerifyPKCE checks a submitted code_verifier against a stored
// code_challenge for the given method ("S256" or "PLAIN").
func VerifyPKCE(method, verifier, challenge string) bool {
	switch method {
	case "S256":
		return ConstantTimeEqual(PKCEChallengeS256(verifier), challenge)
	case "PLAIN":
		return ConstantTimeEqual(verifier, challenge)
	default:
		return false
	}
}
