package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"

	"github.com/carevault/carevault/internal/common"
)

// ErrUnwrapFailed means a wrapped-DEK blob is invalid or was unwrapped with
// the wrong key. Corrupted key bytes are never returned.
var ErrUnwrapFailed = errors.New("key unwrap failed")

// WrapKind tags the variant of a WrappedKey so unwrap dispatch is exhaustive
// rather than inferred from the blob shape.
type WrapKind string

const (
	// WrapSymmetric is a DEK sealed with AES-GCM under a derived user key.
	WrapSymmetric WrapKind = "symmetric"
	// WrapAsymmetric is a DEK encrypted to the administrator's RSA public key
	// with OAEP, so two wrappings of the same DEK never look alike.
	WrapAsymmetric WrapKind = "asymmetric"
)

// WrappedKey is the persisted ciphertext form of a DEK. Nonce is only set for
// the symmetric variant.
type WrappedKey struct {
	Kind       WrapKind `json:"kind"`
	Nonce      []byte   `json:"nonce,omitempty"`
	Ciphertext []byte   `json:"ciphertext"`
}

// WrapKeySymmetric seals dek under the 32-byte wrapping key kek.
func WrapKeySymmetric(dek, kek []byte) (*WrappedKey, error) {
	if len(kek) != KeySize {
		return nil, errors.New("wrapping key must be 32 bytes")
	}

	aead, err := newGCM(kek)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	ciphertext := aead.Seal(nil, nonce, dek, nil)

	return &WrappedKey{Kind: WrapSymmetric, Nonce: nonce, Ciphertext: ciphertext}, nil
}

// UnwrapKeySymmetric recovers the DEK sealed by WrapKeySymmetric. A tampered
// blob or a wrong kek yields ErrUnwrapFailed.
func UnwrapKeySymmetric(w *WrappedKey, kek []byte) ([]byte, error) {
	if w == nil || w.Kind != WrapSymmetric {
		return nil, ErrUnwrapFailed
	}
	if len(kek) != KeySize {
		return nil, errors.New("wrapping key must be 32 bytes")
	}

	aead, err := newGCM(kek)
	if err != nil {
		return nil, err
	}

	dek, err := aead.Open(nil, w.Nonce, w.Ciphertext, nil)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return dek, nil
}

// WrapKeyAsymmetric encrypts dek to the administrator's public key with
// RSA-OAEP over SHA-256.
func WrapKeyAsymmetric(dek []byte, pub *rsa.PublicKey) (*WrappedKey, error) {
	if pub == nil {
		return nil, errors.New("nil public key")
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, dek, nil)
	if err != nil {
		return nil, err
	}

	return &WrappedKey{Kind: WrapAsymmetric, Ciphertext: ciphertext}, nil
}

// UnwrapKeyAsymmetric recovers a DEK wrapped with WrapKeyAsymmetric using the
// matching private key. Any mismatch yields ErrUnwrapFailed.
func UnwrapKeyAsymmetric(w *WrappedKey, priv *rsa.PrivateKey) ([]byte, error) {
	if w == nil || w.Kind != WrapAsymmetric {
		return nil, ErrUnwrapFailed
	}
	if priv == nil {
		return nil, errors.New("nil private key")
	}

	dek, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, w.Ciphertext, nil)
	if err != nil {
		return nil, ErrUnwrapFailed
	}
	return dek, nil
}
