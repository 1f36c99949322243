package storage

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// MinSecretSize is the minimum accepted length of a sealing secret.
const MinSecretSize = 16

const sealInfo = "memval sealed store v1"

// ErrSealBroken is returned by Get when a stored value fails authentication:
// it was tampered with, sealed under another secret, or moved between keys.
var ErrSealBroken = errors.New("storage: sealed value failed authentication")

var _ SecureStore = (*SealedStore)(nil)

// SealedStore encrypts and authenticates every value before handing it to an
// inner Store. Values are sealed with XChaCha20-Poly1305 under a key derived
// from the secret with HKDF-SHA256; the slot key is bound as associated data,
// so a value copied to another key no longer opens.
type SealedStore struct {
	inner Store
	aead  cipher.AEAD
}

// SealOption configures a SealedStore.
type SealOption func(*sealConfig)

type sealConfig struct {
	salt []byte
}

// WithSealSalt sets the HKDF salt. Stores sharing a secret but using
// different salts cannot read each other's values.
func WithSealSalt(salt []byte) SealOption {
	return func(c *sealConfig) {
		c.salt = salt
	}
}

// NewSealedStore wraps inner. secret must be at least MinSecretSize bytes.
func NewSealedStore(inner Store, secret []byte, opts ...SealOption) (*SealedStore, error) {
	if inner == nil {
		return nil, fmt.Errorf("sealed store: inner store is required")
	}
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("sealed store: secret must be at least %d bytes, got %d", MinSecretSize, len(secret))
	}

	cfg := &sealConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, cfg.salt, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("sealed store: derive key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealed store: %w", err)
	}

	return &SealedStore{inner: inner, aead: aead}, nil
}

// Get opens the value stored at key.
func (s *SealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}

	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize+s.aead.Overhead() {
		return nil, fmt.Errorf("%w: key %q: value too short", ErrSealBroken, key)
	}

	plain, err := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: key %q", ErrSealBroken, key)
	}
	if plain == nil {
		plain = []byte{}
	}
	return plain, nil
}

// Set seals value with a fresh random nonce and stores it at key.
func (s *SealedStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(value)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("sealed store: nonce: %w", err)
	}

	return s.inner.Set(ctx, key, s.aead.Seal(nonce, nonce, value, []byte(key)))
}

// Delete removes key from the inner store.
func (s *SealedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}

// Close closes the inner store.
func (s *SealedStore) Close() error {
	return s.inner.Close()
}

// Sealed reports true.
func (s *SealedStore) Sealed() bool {
	return true
}
