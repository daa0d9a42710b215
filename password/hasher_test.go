package password

import (
	"errors"
	"strings"
	"testing"
)

// bcrypt of "password" at cost 10, as seeded for the default administrator.
const seededAdminHash = "$2b$10$92IXUNpkjO0rOQ5byMi.Ye4oKoEa3Ro9llC/.og/at2.uheWG/igi"

func newHasherTest(t *testing.T) *Hasher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Memory = 8 * 1024
	cfg.Time = 1
	h, err := NewHasher(cfg)
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	return h
}

func TestHasherVerifiesSeededBcrypt(t *testing.T) {
	h := newHasherTest(t)

	ok, err := h.Verify("password", seededAdminHash)
	if err != nil || !ok {
		t.Fatalf("expected seeded hash to verify, ok=%v err=%v", ok, err)
	}

	ok, err = h.Verify("Password", seededAdminHash)
	if err != nil || ok {
		t.Fatalf("expected mismatch without error, ok=%v err=%v", ok, err)
	}
	if !h.NeedsRehash(seededAdminHash) {
		t.Fatal("bcrypt hashes should be flagged for rehash")
	}
}

func TestHasherHashesArgon2id(t *testing.T) {
	h := newHasherTest(t)

	hash, err := h.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected argon2id hash, got %s", hash)
	}
	ok, err := h.Verify("secret1", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify ok, ok=%v err=%v", ok, err)
	}
	if h.NeedsRehash(hash) {
		t.Fatal("fresh hash must not need rehash")
	}
	if h.MinLength() != DefaultMinLength {
		t.Fatalf("expected default min length %d, got %d", DefaultMinLength, h.MinLength())
	}
}

func TestHasherRejectsUnknownScheme(t *testing.T) {
	h := newHasherTest(t)

	for _, bad := range []string{"", "plaintext", "$1$abc$def", "$2x$10$abc"} {
		ok, err := h.Verify("password", bad)
		if ok || !errors.Is(err, ErrUnsupportedHash) {
			t.Fatalf("hash %q: expected ErrUnsupportedHash, got ok=%v err=%v", bad, ok, err)
		}
	}
}
