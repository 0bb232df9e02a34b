package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/carevault/carevault/internal/common"
)

const adminKeyBits = 2048

const (
	publicKeyPEMType  = "PUBLIC KEY"
	privateKeyPEMType = "RSA PRIVATE KEY"
)

// GenerateAdminKeyPair creates the long-lived administrator keypair. The
// public half is handed to the server; the private half stays on the admin's
// machine and is never transmitted.
func GenerateAdminKeyPair() (*rsa.PrivateKey, error) {
	return rsa.GenerateKey(rand.Reader, adminKeyBits)
}

// EncodePublicKeyPEM serializes an RSA public key in PKIX PEM form.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: der}), nil
}

// ParsePublicKeyPEM parses a PKIX PEM public key and requires it to be RSA.
func ParsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyPEMType {
		return nil, errors.New("no PEM block containing a public key")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}

// EncodePrivateKeyPEM serializes an RSA private key in PKCS#1 PEM form.
func EncodePrivateKeyPEM(priv *rsa.PrivateKey) []byte {
	der := x509.MarshalPKCS1PrivateKey(priv)
	return pem.EncodeToMemory(&pem.Block{Type: privateKeyPEMType, Bytes: der})
}

// ParsePrivateKeyPEM parses a PKCS#1 PEM private key.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != privateKeyPEMType {
		return nil, errors.New("no PEM block containing a private key")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// lockedKey is the JSON layout of a passphrase-protected private key file:
// the PKCS#1 DER bytes sealed under a key derived from the passphrase.
type lockedKey struct {
	Salt    []byte     `json:"salt"`
	Params  KDFParams  `json:"params"`
	Wrapped WrappedKey `json:"wrapped"`
}

// LockPrivateKey seals a private key under a passphrase so the key file can
// sit on disk encrypted. Unlocking takes one extra key derivation plus a
// symmetric unwrap before the key is usable.
func LockPrivateKey(priv *rsa.PrivateKey, passphrase []byte) ([]byte, error) {
	params := DefaultKDFParams()
	salt := common.GenerateRandByteArray(saltSize)

	kek, err := DeriveKey(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(kek)

	wrapped, err := WrapKeySymmetric(x509.MarshalPKCS1PrivateKey(priv), kek)
	if err != nil {
		return nil, err
	}

	return json.Marshal(lockedKey{Salt: salt, Params: params, Wrapped: *wrapped})
}

// UnlockPrivateKey reverses LockPrivateKey. A wrong passphrase surfaces as
// ErrUnwrapFailed, indistinguishable from a tampered file.
func UnlockPrivateKey(data, passphrase []byte) (*rsa.PrivateKey, error) {
	var lk lockedKey
	if err := json.Unmarshal(data, &lk); err != nil {
		return nil, fmt.Errorf("parsing locked key file: %w", err)
	}

	kek, err := DeriveKey(passphrase, lk.Salt, lk.Params)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(kek)

	der, err := UnwrapKeySymmetric(&lk.Wrapped, kek)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(der)

	return x509.ParsePKCS1PrivateKey(der)
}

// IsLockedKeyFile reports whether data looks like a passphrase-protected key
// file rather than a plain PEM. Used to decide whether to prompt for a
// passphrase without revealing which cryptographic layer would fail.
func IsLockedKeyFile(data []byte) bool {
	var lk lockedKey
	return json.Unmarshal(data, &lk) == nil && len(lk.Wrapped.Ciphertext) > 0
}
