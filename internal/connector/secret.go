package connector

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"inboxpilot/config"
)

// CredentialUnwrapper decodes a mailbox's at-rest credential before the
// connector uses it. Pluggable so the plain encoding can be swapped for
// envelope encryption without touching the connector contract.
type CredentialUnwrapper interface {
	Unwrap(encoded string) (string, error)
}

// NewUnwrapper picks the unwrapper for the configured mode.
func NewUnwrapper(cfg config.CredentialsConfig) (CredentialUnwrapper, error) {
	switch cfg.Mode {
	case "", "base64":
		return Base64Unwrapper{}, nil
	case "sealed":
		if cfg.Passphrase == "" {
			return nil, fmt.Errorf("sealed credential mode requires a passphrase")
		}
		return NewSealedUnwrapper(cfg.Passphrase), nil
	default:
		return nil, fmt.Errorf("unknown credential mode %q", cfg.Mode)
	}
}

// Base64Unwrapper is the plain at-rest encoding.
type Base64Unwrapper struct{}

func (Base64Unwrapper) Unwrap(encoded string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}
	return string(b), nil
}

// SealedUnwrapper opens AES-GCM sealed credentials with a passphrase-derived
// key. Layout: base64(nonce || ciphertext).
type SealedUnwrapper struct {
	key []byte
}

func NewSealedUnwrapper(passphrase string) *SealedUnwrapper {
	key := pbkdf2.Key([]byte(passphrase), []byte("inboxpilot.credential.v1"), 4096, 32, sha256.New)
	return &SealedUnwrapper{key: key}
}

func (s *SealedUnwrapper) Unwrap(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode credential: %w", err)
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(raw) < gcm.NonceSize() {
		return "", fmt.Errorf("sealed credential too short")
	}

	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed credential: %w", err)
	}
	return string(plain), nil
}

// Seal is the write-side counterpart, used by the account-connection flow and
// in tests.
func (s *SealedUnwrapper) Seal(plain string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
