package password

import "strings"

// Hasher hashes new passwords with argon2id and verifies both argon2id and
// bcrypt hashes, choosing the scheme from the hash prefix.
type Hasher struct {
	argon  *Argon2
	bcrypt Bcrypt
}

// NewHasher returns a hasher that writes argon2id and verifies both formats.
func NewHasher(cfg Config) (*Hasher, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}
	return &Hasher{argon: a}, nil
}

// Hash returns a PHC-encoded argon2id hash of password.
func (h *Hasher) Hash(password string) (string, error) {
	return h.argon.Hash(password)
}

// Verify reports whether password matches encodedHash. A malformed or
// unrecognised hash returns false with an error.
func (h *Hasher) Verify(password string, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return h.argon.Verify(password, encodedHash)
	case isBcrypt(encodedHash):
		return h.bcrypt.Verify(password, encodedHash)
	default:
		return false, ErrUnsupportedHash
	}
}

// NeedsRehash reports whether encodedHash should be replaced by a fresh
// argon2id hash on the next successful login.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	upgrade, err := h.argon.NeedsUpgrade(encodedHash)
	return err != nil || upgrade
}

// MinLength returns the minimum accepted password length.
func (h *Hasher) MinLength() int {
	return h.argon.config.MinLength
}
