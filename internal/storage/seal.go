package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// sealMagic prefixes sealed objects: magic(8) + salt(16) + nonce(12) + ciphertext+tag.
const sealMagic = "GCM3NCR0"

const (
	saltLen    = 16
	nonceLen   = 12
	keyLen     = 32
	kdfRounds  = 100000
	sealHeader = len(sealMagic) + saltLen + nonceLen
)

// ErrSealed is returned when a sealed object is read without a password.
var ErrSealed = errors.New("object is sealed and no password is configured")

// IsSealed reports whether data carries the seal header.
func IsSealed(data []byte) bool {
	return len(data) >= sealHeader && bytes.HasPrefix(data, []byte(sealMagic))
}

// Seal encrypts data with AES-GCM under a PBKDF2-derived key.
func Seal(data []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, errors.New("seal: empty password")
	}
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, sealHeader+len(data)+gcm.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Unseal reverses Seal. Data without the seal header is returned unchanged.
func Unseal(data []byte, password string) ([]byte, error) {
	if !IsSealed(data) {
		return data, nil
	}
	if password == "" {
		return nil, ErrSealed
	}
	salt := data[len(sealMagic) : len(sealMagic)+saltLen]
	nonce := data[len(sealMagic)+saltLen : sealHeader]
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[sealHeader:], nil)
	if err != nil {
		return nil, fmt.Errorf("GCM decryption failed: %w", err)
	}
	return plain, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfRounds, keyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
