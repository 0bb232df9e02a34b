package cryptox

import (
	"crypto/rsa"
	"fmt"

	"github.com/carevault/carevault/internal/common"
)

const saltSize = 32

// Enrollment is everything the server persists for a new user. The DEK itself
// is never part of it.
type Enrollment struct {
	Salt         []byte      `json:"salt"`
	Params       KDFParams   `json:"params"`
	Verifier     []byte      `json:"verifier"`
	UserWrapped  *WrappedKey `json:"user_wrapped"`
	AdminWrapped *WrappedKey `json:"admin_wrapped"`
}

// Rewrapped is the replacement credential set produced on password change.
// The admin-wrapped copy is deliberately absent: it still unwraps to the same
// DEK, which is what keeps admin recovery valid across password changes.
type Rewrapped struct {
	Salt        []byte      `json:"salt"`
	Params      KDFParams   `json:"params"`
	Verifier    []byte      `json:"verifier"`
	UserWrapped *WrappedKey `json:"user_wrapped"`
}

// Register generates a fresh random DEK and wraps it twice: once under a key
// derived from the user's secret with a new random salt, once under the
// administrator's public key. It returns the enrollment for persistence plus
// the raw DEK so the caller can start an authenticated session immediately.
func Register(secret []byte, adminPub *rsa.PublicKey) (*Enrollment, []byte, error) {
	params := DefaultKDFParams()
	salt := common.GenerateRandByteArray(saltSize)

	userKey, err := DeriveKey(secret, salt, params)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(userKey)

	dek := common.GenerateRandByteArray(KeySize)

	userWrapped, err := WrapKeySymmetric(dek, userKey)
	if err != nil {
		return nil, nil, fmt.Errorf("user wrap: %w", err)
	}
	adminWrapped, err := WrapKeyAsymmetric(dek, adminPub)
	if err != nil {
		return nil, nil, fmt.Errorf("admin wrap: %w", err)
	}

	enrollment := &Enrollment{
		Salt:         salt,
		Params:       params,
		Verifier:     MakeVerifier(userKey),
		UserWrapped:  userWrapped,
		AdminWrapped: adminWrapped,
	}
	return enrollment, dek, nil
}

// RecoverAsUser re-derives the user key from the secret and unwraps the DEK.
// A wrong secret derives a different key and surfaces as ErrUnwrapFailed.
func RecoverAsUser(secret, salt []byte, params KDFParams, userWrapped *WrappedKey) ([]byte, error) {
	userKey, err := DeriveKey(secret, salt, params)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(userKey)

	return UnwrapKeySymmetric(userWrapped, userKey)
}

// RecoverAsAdmin unwraps the admin copy of the DEK with the administrator's
// private key. No user password is involved.
func RecoverAsAdmin(priv *rsa.PrivateKey, adminWrapped *WrappedKey) ([]byte, error) {
	return UnwrapKeyAsymmetric(adminWrapped, priv)
}

// Rewrap recovers the DEK with the old secret and wraps it again under a key
// derived from the new secret and a fresh salt. The caller persists the
// result atomically together with dropping the old credential set.
func Rewrap(oldSecret, newSecret, salt []byte, params KDFParams, userWrapped *WrappedKey) (*Rewrapped, error) {
	dek, err := RecoverAsUser(oldSecret, salt, params, userWrapped)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(dek)

	newParams := DefaultKDFParams()
	newSalt := common.GenerateRandByteArray(saltSize)

	newKey, err := DeriveKey(newSecret, newSalt, newParams)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(newKey)

	newWrapped, err := WrapKeySymmetric(dek, newKey)
	if err != nil {
		return nil, err
	}

	return &Rewrapped{
		Salt:        newSalt,
		Params:      newParams,
		Verifier:    MakeVerifier(newKey),
		UserWrapped: newWrapped,
	}, nil
}
