// Package crypt provides the encryption applied to file contents before
// they are stored remotely.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// DefaultSalt is used for key derivation when no salt is configured.
var DefaultSalt = []byte("hdfscache")

// ErrDecrypt is returned when a payload cannot be opened with the key.
var ErrDecrypt = errors.New("decryption failed")

// Cipher transforms file contents between plain and stored form.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(stored []byte) ([]byte, error)
}

// Plain stores contents unchanged. It is used when no key is configured.
type Plain struct{}

func (Plain) Encrypt(plaintext []byte) ([]byte, error) { return plaintext, nil }
func (Plain) Decrypt(stored []byte) ([]byte, error)    { return stored, nil }

// AESGCM seals contents with AES-256-GCM. The stored form is the random
// nonce followed by the sealed bytes and tag.
type AESGCM struct {
	aead cipher.AEAD
}

// DeriveKey stretches a passphrase into a 32-byte AES key with argon2id.
func DeriveKey(passphrase, salt []byte) []byte {
	if len(salt) == 0 {
		salt = DefaultSalt
	}
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, 32)
}

// NewAESGCM creates a cipher from a raw 16, 24 or 32 byte AES key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// New returns Plain for an empty passphrase and an AESGCM keyed with the
// argon2id derivation of passphrase otherwise.
func New(passphrase, salt []byte) (Cipher, error) {
	if len(passphrase) == 0 {
		return Plain{}, nil
	}
	return NewAESGCM(DeriveKey(passphrase, salt))
}

func (c *AESGCM) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *AESGCM) Decrypt(stored []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(stored) < ns+c.aead.Overhead() {
		return nil, fmt.Errorf("%w: payload too short", ErrDecrypt)
	}
	plaintext, err := c.aead.Open(nil, stored[:ns], stored[ns:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return plaintext, nil
}
