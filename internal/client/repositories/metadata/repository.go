// Package metadata is a key-value store in the client's local sqlite
// database. It holds the offline login material and, for the convenience
// tier, the persisted session key material.
package metadata

import "context"

// Keys used by the auth service. Collected here so a wipe can be exhaustive.
const (
	KeyUsername       = "username"
	KeySalt           = "salt"
	KeyKDFParams      = "kdf_params"
	KeyVerifier       = "verifier"
	KeyUserWrapped    = "user_wrapped"
	KeySessionToken   = "session_token"
	KeySessionTier    = "session_tier"
	KeyConvenienceDEK = "convenience_dek"
)

type Repository interface {
	// Get returns common.ErrorNotFound for absent keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
