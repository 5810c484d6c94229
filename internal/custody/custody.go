package custody

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// CustodyError means key material could not be produced. The workflow treats
// it as fatal for the current operation.
type CustodyError struct {
	Op  string
	Err error
}

func (e *CustodyError) Error() string {
	return fmt.Sprintf("custody %s: %v", e.Op, e.Err)
}

func (e *CustodyError) Unwrap() error { return e.Err }

// LocalCustody keeps wallet keys encrypted at rest with a single AES-256-GCM
// master key. Stored form: base64(nonce || ciphertext).
type LocalCustody struct {
	gcm cipher.AEAD
}

// NewLocalCustody takes the master key as 64 hex chars.
func NewLocalCustody(keyHex string) (*LocalCustody, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode custody key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("custody key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &LocalCustody{gcm: gcm}, nil
}

func (c *LocalCustody) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", &CustodyError{Op: "encrypt", Err: err}
	}
	sealed := c.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptKey returns plaintext key material for one signing call.
// Callers should zero the slice when done.
func (c *LocalCustody) DecryptKey(ctx context.Context, encrypted string) ([]byte, error) {
	if encrypted == "" {
		return nil, &CustodyError{Op: "decrypt", Err: errors.New("wallet has no stored key")}
	}
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, &CustodyError{Op: "decrypt", Err: fmt.Errorf("decode: %w", err)}
	}
	ns := c.gcm.NonceSize()
	if len(raw) < ns {
		return nil, &CustodyError{Op: "decrypt", Err: errors.New("ciphertext too short")}
	}
	plain, err := c.gcm.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return nil, &CustodyError{Op: "decrypt", Err: err}
	}
	return plain, nil
}

// SealHexKey encrypts a hex private key (optionally 0x-prefixed) into the
// stored wallet form. Accepts a 32-byte secp256k1 key or ed25519 seed, or a
// 64-byte ed25519 key.
func (c *LocalCustody) SealHexKey(keyHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(keyHex), "0x"))
	if err != nil {
		return "", &CustodyError{Op: "encrypt", Err: fmt.Errorf("decode key: %w", err)}
	}
	defer Wipe(raw)
	if len(raw) != 32 && len(raw) != 64 {
		return "", &CustodyError{Op: "encrypt", Err: fmt.Errorf("key must be 32 or 64 bytes, got %d", len(raw))}
	}
	return c.Encrypt(raw)
}

// Wipe zeroes key material in place.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
