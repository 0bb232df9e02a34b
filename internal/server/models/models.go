// Package models defines the server-side persistence structures. All
// cryptographic fields are opaque to the server: it stores wrapped keys and
// ciphertext, never plaintext or raw DEKs.
package models

import (
	"time"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
)

// User is the per-user credential row. UserWrappedDEK and AdminWrappedDEK
// decrypt to the same DEK; that invariant is what makes dual recovery work.
// Salt, KDFParams, Verifier, and UserWrappedDEK change together on password
// change, in a single atomic update.
type User struct {
	ID               string
	Username         string
	Salt             []byte
	KDFParams        cryptox.KDFParams
	Verifier         []byte
	UserWrappedDEK   *cryptox.WrappedKey
	AdminWrappedDEK  *cryptox.WrappedKey
	EncryptedProfile []byte
	IsAdmin          bool
	CreatedAt        time.Time
}

// PriorityRecord holds one encrypted weekly-priority submission. Exactly one
// record exists per (UserID, Period, Subkey); Subkey is empty for self-service
// records and set for manually entered ones.
type PriorityRecord struct {
	ID               string
	UserID           string
	Period           string
	Subkey           string
	EncryptedPayload []byte
	Version          int64
	UpdatedAt        time.Time
}

// Session is the server-side session row. Fragment is only set for the
// balanced tier and is stored encrypted at rest.
type Session struct {
	Token      string
	UserID     string
	Tier       common.Tier
	Fragment   []byte
	CreatedAt  time.Time
	LastActive time.Time
}
