// Package crypto seals individual config credential fields at rest.
// Unlike a single whole-file blob, each field is sealed independently
// with AES-256-GCM under a key derived from a passphrase via PBKDF2,
// with the field's own name bound in as additional authenticated data —
// ciphertext produced for one field fails to open under another
// field's name, so a copy-pasted or reordered value in the config file
// is rejected rather than silently decrypted into the wrong place.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the size of the salt in bytes.
	SaltSize = 16

	// NonceSize is the size of the nonce for AES-GCM.
	NonceSize = 12

	// KeySize is the size of the derived key (AES-256).
	KeySize = 32

	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000

	// MinPassphraseLen is the shortest passphrase accepted. The
	// passphrase here comes from an operator-set environment variable
	// rather than digits typed into an interactive prompt, so it's
	// judged on length rather than a fixed numeric format.
	MinPassphraseLen = 8
)

var (
	// ErrInvalidPassphrase is returned when the passphrase is too short.
	ErrInvalidPassphrase = errors.New("passphrase must be at least 8 characters")

	// ErrDecryptionFailed is returned when decryption fails: wrong
	// passphrase, ciphertext sealed under a different field name, or
	// corrupted data.
	ErrDecryptionFailed = errors.New("decryption failed: wrong passphrase, wrong field, or corrupted data")

	// ErrInvalidData is returned when the encrypted data format is invalid.
	ErrInvalidData = errors.New("invalid encrypted data format")
)

// ValidatePassphrase checks that the passphrase meets the minimum
// length requirement.
func ValidatePassphrase(passphrase string) error {
	if len(passphrase) < MinPassphraseLen {
		return ErrInvalidPassphrase
	}
	return nil
}

// deriveKey derives an AES key from a passphrase using PBKDF2.
func deriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := deriveKey(passphrase, salt)

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

// Encrypt seals plaintext under field using AES-256-GCM with a key
// derived from passphrase, binding field as additional authenticated
// data. Returns a base64-encoded string containing salt + nonce +
// ciphertext.
func Encrypt(field, plaintext, passphrase string) (string, error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return "", err
	}

	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(plaintext), []byte(field))

	combined := make([]byte, SaltSize+NonceSize+len(ciphertext))
	copy(combined[:SaltSize], salt)
	copy(combined[SaltSize:SaltSize+NonceSize], nonce)
	copy(combined[SaltSize+NonceSize:], ciphertext)

	return base64.StdEncoding.EncodeToString(combined), nil
}

// Decrypt opens a blob produced by Encrypt for the same field name and
// passphrase, returning the original plaintext.
func Decrypt(field, encrypted, passphrase string) (string, error) {
	if err := ValidatePassphrase(passphrase); err != nil {
		return "", err
	}

	combined, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", ErrInvalidData
	}

	// Minimum size: salt + nonce + at least 16 bytes of ciphertext (GCM tag).
	if len(combined) < SaltSize+NonceSize+16 {
		return "", ErrInvalidData
	}

	salt := combined[:SaltSize]
	nonce := combined[SaltSize : SaltSize+NonceSize]
	ciphertext := combined[SaltSize+NonceSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(field))
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}
