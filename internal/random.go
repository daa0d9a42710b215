package internal

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

const (
	sessionTokenSize = 32
	guestSuffixSize  = 4
)

// NewSessionToken returns an opaque base64url token (no padding) carrying
// 256 bits of randomness.
func NewSessionToken() (string, error) {
	var raw [sessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// ValidSessionToken reports whether token has the shape produced by NewSessionToken.
func ValidSessionToken(token string) bool {
	if len(token) != base64.RawURLEncoding.EncodedLen(sessionTokenSize) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(token)
	return err == nil
}

// NewGuestUsername builds a "guest_xxxxxxxx" handle for anonymous accounts.
func NewGuestUsername() (string, error) {
	var raw [guestSuffixSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return "guest_" + hex.EncodeToString(raw[:]), nil
}

// Fingerprint returns a short, log-safe prefix of a token.
func Fingerprint(token string) string {
	if len(token) <= 8 {
		return "********"
	}
	return token[:8]
}
