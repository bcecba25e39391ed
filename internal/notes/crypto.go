package notes

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// ErrDecryptionFailed is returned on any decryption problem: wrong
// passphrase, truncated blob, or tampered ciphertext. Decryption fails
// closed and never returns partial data.
var ErrDecryptionFailed = errors.New("notes: decryption failed")

const (
	saltSize = 16

	// argon2id parameters for the passphrase-derived key.
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	keySize      = chacha20poly1305.KeySize
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
}

// Encrypt serializes and encrypts a note under a passphrase-derived key.
// Output layout: salt(16) || nonce(24) || aead ciphertext+tag.
func (m *Manager) Encrypt(n *Note, passphrase string) ([]byte, error) {
	plaintext, err := m.Serialize(n)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("notes: salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("notes: nonce: %w", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. Any tag mismatch or malformed note inside the
// plaintext yields ErrDecryptionFailed.
func (m *Manager) Decrypt(blob []byte, passphrase string) (*Note, error) {
	aeadNonce := chacha20poly1305.NonceSizeX
	if len(blob) < saltSize+aeadNonce+chacha20poly1305.Overhead {
		return nil, ErrDecryptionFailed
	}
	salt := blob[:saltSize]
	nonce := blob[saltSize : saltSize+aeadNonce]
	ciphertext := blob[saltSize+aeadNonce:]

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt))
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	n, err := m.Deserialize(plaintext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return n, nil
}
