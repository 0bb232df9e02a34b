// Package recordcache keeps a local ciphertext copy of the user's records so
// previously fetched priorities stay readable while the server is
// unreachable. It never stores plaintext.
package recordcache

import (
	"context"

	"github.com/carevault/carevault/internal/client/models"
)

type Repository interface {
	Upsert(ctx context.Context, rec *models.CachedRecord) error
	Get(ctx context.Context, period, subkey string) (*models.CachedRecord, error)
	List(ctx context.Context) ([]*models.CachedRecord, error)
	Delete(ctx context.Context, period, subkey string) error
	Clear(ctx context.Context) error
}
