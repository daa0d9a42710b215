package internal

import (
	"strings"
	"testing"
)

func TestNewSessionTokenShapeAndUniqueness(t *testing.T) {
	seen := make(map[string]struct{}, 256)
	for i := 0; i < 256; i++ {
		tok, err := NewSessionToken()
		if err != nil {
			t.Fatalf("NewSessionToken: %v", err)
		}
		if !ValidSessionToken(tok) {
			t.Fatalf("token %q failed shape check", tok)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token generated: %q", tok)
		}
		seen[tok] = struct{}{}
	}
}

func TestValidSessionTokenRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "short", strings.Repeat("!", 43)} {
		if ValidSessionToken(tok) {
			t.Fatalf("expected %q to be rejected", tok)
		}
	}
}

func TestNewGuestUsername(t *testing.T) {
	name, err := NewGuestUsername()
	if err != nil {
		t.Fatalf("NewGuestUsername: %v", err)
	}
	if !strings.HasPrefix(name, "guest_") || len(name) != len("guest_")+8 {
		t.Fatalf("unexpected guest username %q", name)
	}
}

func TestFingerprintNeverLeaksShortTokens(t *testing.T) {
	if got := Fingerprint("abc"); got != "********" {
		t.Fatalf("expected masked fingerprint, got %q", got)
	}
	if got := Fingerprint("abcdefghijkl"); got != "abcdefgh" {
		t.Fatalf("expected 8-char prefix, got %q", got)
	}
}
