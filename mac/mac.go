// Package mac is the keyed-hash engine of the protocol: HMAC-SHA256 over raw
// bytes, rendered as 64 lowercase hex characters.
package mac

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/hex"

	sha256 "github.com/minio/sha256-simd"
)

// Size is the length in characters of every signature and identity
// fingerprint.
const Size = sha256.Size * 2

// Sign returns hex(HMAC-SHA256(seed, content)).
func Sign(seed, content []byte) string {
	h := hmac.New(sha256.New, seed)
	_, _ = h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the MAC and compares it with candidate in constant time.
//
// Malformed candidates (wrong length, characters outside [0-9a-f]) are a
// plain mismatch: callers cannot tell them apart from a wrong signature.
func Verify(seed, content []byte, candidate string) bool {
	if !ValidHex(candidate) {
		return false
	}
	expected := Sign(seed, content)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}

// ValidHex reports whether s has the shape of a signature or fingerprint.
func ValidHex(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
