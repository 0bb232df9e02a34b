package cryptox

import (
	"crypto/sha256"
	"errors"

	"golang.org/x/crypto/argon2"
)

// KDFParams pins the Argon2id cost parameters a salt was created with, so the
// defaults can be raised over time without breaking existing users: each
// user's stored salt carries the params that were current at enrollment.
type KDFParams struct {
	Time      uint32 `json:"time"`
	MemoryKiB uint32 `json:"memory_kib"`
	Threads   uint8  `json:"threads"`
}

// DefaultKDFParams returns the cost parameters applied to new enrollments.
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, MemoryKiB: 64 * 1024, Threads: 4}
}

// DeriveKey stretches a low-entropy secret into a 32-byte symmetric key with
// Argon2id. Deterministic for equal inputs. It fails only on malformed input;
// a wrong password simply derives a different key, which is detected
// downstream by an authentication failure.
func DeriveKey(secret, salt []byte, p KDFParams) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty secret")
	}
	if len(salt) == 0 {
		return nil, errors.New("empty salt")
	}
	if p.Time == 0 || p.MemoryKiB == 0 || p.Threads == 0 {
		return nil, errors.New("invalid kdf parameters")
	}
	return argon2.IDKey(secret, salt, p.Time, p.MemoryKiB, p.Threads, KeySize), nil
}

// MakeVerifier hashes a derived key into the login verifier stored server-side.
// The server compares verifiers in constant time and never sees the password.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}
