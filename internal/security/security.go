// Package security stores UserProfile API-key ciphertext (§3's "API keys
// are stored only as ciphertext" invariant) under a single master key, with
// the userID bound as AEAD additional data; request signing for the
// Exchange Adapter (C1) lives in internal/adapter, not here. The KeyStore
// is adapted from the teacher's BYOKEncryptor, but
// the AEAD primitive is swapped from stdlib crypto/aes+cipher to
// golang.org/x/crypto/chacha20poly1305, per the project's domain-stack
// decision to prefer the x/crypto AEAD over hand-rolled GCM wiring.
package security

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeyStore encrypts and decrypts per-user API key material with a single
// master key (no per-user DEK indirection — the teacher's org-scoped DEK
// cache is unnecessary at this scale, one AEAD key suffices).
type KeyStore struct {
	mu        sync.RWMutex
	masterKey []byte
}

// NewKeyStore builds a KeyStore from a base64-encoded 256-bit master key.
func NewKeyStore(masterKeyB64 string) (*KeyStore, error) {
	key, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &KeyStore{masterKey: key}, nil
}

// Seal encrypts an API key for storage as UserProfile.APIKeyCiphertext.
func (k *KeyStore) Seal(userID, plaintext string) ([]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	aead, err := chacha20poly1305.New(k.masterKey)
	if err != nil {
		return nil, fmt.Errorf("create aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, []byte(plaintext), []byte(userID)), nil
}

// Open decrypts a stored ciphertext back to the plaintext API key.
func (k *KeyStore) Open(userID string, ciphertext []byte) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	aead, err := chacha20poly1305.New(k.masterKey)
	if err != nil {
		return "", fmt.Errorf("create aead: %w", err)
	}
	if len(ciphertext) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, body := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, body, []byte(userID))
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
