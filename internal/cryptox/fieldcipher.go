// Package cryptox implements the cryptographic envelope used by CareVault:
// authenticated field encryption under a per-user data-encryption key (DEK),
// password-based key derivation, dual wrapping of the DEK (user key + admin
// RSA key), and the split-key scheme used by the balanced session tier.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"

	"github.com/carevault/carevault/internal/common"
)

const (
	// KeySize is the DEK length in bytes (AES-256).
	KeySize = 32
	// nonceSize is the standard GCM nonce length.
	nonceSize = 12
)

// ErrAuthenticationFailed means a ciphertext, nonce, or tag was tampered with
// or decrypted under the wrong key. No plaintext is ever returned alongside it.
var ErrAuthenticationFailed = errors.New("authentication failed")

// SealedField is the stored form of one encrypted record field:
// a fresh random nonce plus the AES-GCM ciphertext (tag appended by GCM).
type SealedField struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// EncryptField encrypts plaintext under the given 32-byte key with AES-GCM,
// generating a fresh random nonce per call. The transform is pure; the caller
// owns the key lifetime.
func EncryptField(key, plaintext []byte) (*SealedField, error) {
	if len(key) != KeySize {
		return nil, errors.New("encryption key must be 32 bytes")
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	return &SealedField{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// DecryptField authenticates and decrypts a sealed field. Decryption is
// all-or-nothing: any bit flip in nonce, ciphertext, or tag yields
// ErrAuthenticationFailed and no plaintext.
func DecryptField(key []byte, f *SealedField) ([]byte, error) {
	if len(key) != KeySize {
		return nil, errors.New("decryption key must be 32 bytes")
	}
	if f == nil {
		return nil, errors.New("nil sealed field")
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, f.Nonce, f.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
