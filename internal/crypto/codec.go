// Package crypto seals exchange payloads under a key derived from the session token.
//
// The nonce is fixed (all zero). That is only acceptable because every receive
// session generates a fresh random token, uses it for one transfer and discards it.
// Reusing a token across messages breaks ChaCha20-Poly1305's guarantees; do not use
// this package for anything stored or long lived.
package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrDecryptionFailed = errors.New("decryption failed")

// staticNonce is part of the wire contract; changing it breaks older peers.
var staticNonce = make([]byte, chacha20poly1305.NonceSize)

// DeriveKey hashes the token into a 32-byte key.
func DeriveKey(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// Encrypt returns base64(ciphertext||tag).
func Encrypt(plaintext []byte, token string) (string, error) {
	aead, err := chacha20poly1305.New(DeriveKey(token))
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, staticNonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt fails with ErrDecryptionFailed for bad base64, a wrong token or tampered bytes.
func Decrypt(ciphertext string, token string) ([]byte, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	aead, err := chacha20poly1305.New(DeriveKey(token))
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.Overhead() {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, staticNonce, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}
