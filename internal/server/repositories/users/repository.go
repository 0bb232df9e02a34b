// Package users persists the per-user credential rows: salt, KDF parameters,
// verifier, and both wrapped copies of the DEK.
package users

import (
	"context"

	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/server/models"
)

// Credentials bundles the fields that must be replaced together on password
// change. Readers must never observe a new salt paired with an old wrapped
// DEK, so UpdateCredentials applies them in one statement.
type Credentials struct {
	Salt        []byte
	Params      cryptox.KDFParams
	Verifier    []byte
	UserWrapped *cryptox.WrappedKey
}

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	UpdateCredentials(ctx context.Context, userID string, c *Credentials) error
	ListForAdmin(ctx context.Context) ([]*models.User, error)
}
