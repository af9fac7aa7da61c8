// ABOUTME: Storage wrapper that encrypts values at rest with XChaCha20-Poly1305
// ABOUTME: Keys stay plaintext; each value is bound to its key as associated data

package storage

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks values written by Sealed.
const sealedPrefix = "sealed:v1:"

// Sealed encrypts every value before handing it to the wrapped Storage.
type Sealed struct {
	inner Storage
	aead  cipher.AEAD
}

// NewSealed wraps inner with a 32-byte key.
func NewSealed(inner Storage, key []byte) (*Sealed, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	return &Sealed{inner: inner, aead: aead}, nil
}

// ParseSealKey decodes a base64 seal key as found in configuration.
func ParseSealKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding seal key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("seal key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return key, nil
}

// Get implements Storage.
func (s *Sealed) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}

	if !strings.HasPrefix(raw, sealedPrefix) {
		return "", false, fmt.Errorf("%w: value for %q is not sealed", ErrUnavailable, key)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(raw, sealedPrefix))
	if err != nil {
		return "", false, fmt.Errorf("%w: decoding %q: %v", ErrUnavailable, key, err)
	}

	n := s.aead.NonceSize()
	if len(data) < n {
		return "", false, fmt.Errorf("%w: sealed value for %q is truncated", ErrUnavailable, key)
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], []byte(key))
	if err != nil {
		return "", false, fmt.Errorf("%w: opening %q: %v", ErrUnavailable, key, err)
	}
	return string(plain), true, nil
}

// Set implements Storage.
func (s *Sealed) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("%w: generating nonce: %v", ErrUnavailable, err)
	}

	sealed := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return s.inner.Set(ctx, key, sealedPrefix+base64.StdEncoding.EncodeToString(sealed))
}

// Remove implements Storage.
func (s *Sealed) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}

// Keys implements Storage.
func (s *Sealed) Keys(ctx context.Context) ([]string, error) {
	return s.inner.Keys(ctx)
}

// Close closes the wrapped storage.
func (s *Sealed) Close() error {
	return s.inner.Close()
}
