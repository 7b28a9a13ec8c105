package security

import (
	"encoding/base64"
	"testing"
)

func testKeyStore(t *testing.T) *KeyStore {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	ks, err := NewKeyStore(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("unexpected error building key store: %v", err)
	}
	return ks
}

func TestSealOpenRoundTrip(t *testing.T) {
	ks := testKeyStore(t)
	ciphertext, err := ks.Seal("user-1", "super-secret-api-key")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	plaintext, err := ks.Open("user-1", ciphertext)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if plaintext != "super-secret-api-key" {
		t.Fatalf("expected round-tripped plaintext, got %q", plaintext)
	}
}

func TestOpenFailsForWrongUserID(t *testing.T) {
	ks := testKeyStore(t)
	ciphertext, _ := ks.Seal("user-1", "secret")
	if _, err := ks.Open("user-2", ciphertext); err == nil {
		t.Fatalf("expected AEAD authentication to fail for a mismatched user id")
	}
}
