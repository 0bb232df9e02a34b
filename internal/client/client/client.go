// Package client talks to the CareVault server API. All cryptography happens
// in the caller; this package moves wrapped keys, verifiers, and ciphertext.
package client

import (
	"context"
	"crypto/rsa"
	"time"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
)

// Record is one encrypted record as the server returns it.
type Record struct {
	ID        string    `json:"id"`
	Period    string    `json:"period"`
	Subkey    string    `json:"subkey,omitempty"`
	Payload   []byte    `json:"payload"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AdminBundle is one user's share of the admin recovery listing. Profile is
// the encrypted profile blob stored at registration.
type AdminBundle struct {
	UserID       string              `json:"user_id"`
	Username     string              `json:"username"`
	AdminWrapped *cryptox.WrappedKey `json:"admin_wrapped"`
	Profile      []byte              `json:"profile,omitempty"`
	Records      []Record            `json:"records"`
}

// LoginResult is the server's answer to a successful login.
type LoginResult struct {
	Token       string              `json:"token"`
	UserWrapped *cryptox.WrappedKey `json:"user_wrapped"`
	Tier        common.Tier         `json:"tier"`
}

type Client interface {
	Close() error

	// SetToken installs the bearer token used by authenticated calls, e.g.
	// when resuming a persisted convenience session.
	SetToken(token string)

	AdminKey(ctx context.Context) (*rsa.PublicKey, error)
	Register(ctx context.Context, username string, enrollment *cryptox.Enrollment, profile []byte) error
	GetSaltParams(ctx context.Context, username string) ([]byte, cryptox.KDFParams, error)
	Login(ctx context.Context, username string, verifier []byte, tier common.Tier) (*LoginResult, error)
	Logout(ctx context.Context) error
	ChangePassword(ctx context.Context, oldVerifier []byte, rewrapped *cryptox.Rewrapped) error

	PutFragment(ctx context.Context, fragment []byte) error
	GetFragment(ctx context.Context) ([]byte, error)

	SaveRecord(ctx context.Context, period, subkey string, payload []byte) (*Record, error)
	GetRecord(ctx context.Context, period, subkey string) (*Record, error)
	ListRecords(ctx context.Context) ([]Record, error)
	DeleteRecord(ctx context.Context, period, subkey string) error
	AdminListRecords(ctx context.Context) ([]AdminBundle, error)
}
