// Package token seals gateway resource paths into opaque, URL-safe strings.
//
// A pending payment hands the browser a "come back later" link. The resource
// path inside that link is enough to poll the gateway for the payment status,
// so it is encrypted and authenticated: a tampered or foreign token must be
// rejected, never quietly decrypted into something else.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecode is returned for malformed, tampered, or wrong-key tokens.
var ErrDecode = errors.New("token: decode failed")

const (
	defaultIterations = 100000
	keyLength         = 32
)

// Codec encrypts and decrypts tokens with a key stretched from a configured
// secret. Derivation happens once at construction; encoding picks a fresh
// nonce per call, so the same plaintext never produces the same token twice.
type Codec struct {
	aead cipher.AEAD
}

// Option adjusts key derivation.
type Option func(*options)

type options struct {
	iterations int
}

// WithIterations overrides the PBKDF2 iteration count. Lower values are only
// appropriate in tests.
func WithIterations(n int) Option {
	return func(o *options) { o.iterations = n }
}

// NewCodec derives an AES-256-GCM codec from the configured encryption key
// and salt using PBKDF2-HMAC-SHA256.
func NewCodec(encryptionKey, salt string, opts ...Option) (*Codec, error) {
	if encryptionKey == "" {
		return nil, errors.New("token: encryption key is required")
	}
	if salt == "" {
		return nil, errors.New("token: salt is required")
	}

	o := options{iterations: defaultIterations}
	for _, opt := range opts {
		opt(&o)
	}

	key := pbkdf2.Key([]byte(encryptionKey), []byte(salt), o.iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("token: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("token: create GCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode seals plaintext into a URL-safe token: base64(nonce || ciphertext).
func (c *Codec) Encode(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("token: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a token produced by Encode with the same key and salt. Any
// malformed or unauthentic token yields ErrDecode.
func (c *Codec) Decode(token string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(sealed) < c.aead.NonceSize() {
		return "", fmt.Errorf("%w: token too short", ErrDecode)
	}
	nonce, ciphertext := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(plaintext), nil
}
