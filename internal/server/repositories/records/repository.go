// Package records persists the encrypted weekly-priority records. The server
// treats payloads as opaque ciphertext; it never holds a key that opens them.
package records

import (
	"context"

	"github.com/carevault/carevault/internal/server/models"
)

type Repository interface {
	// Upsert inserts or replaces the single record identified by
	// (UserID, Period, Subkey), bumping its version on replace.
	Upsert(ctx context.Context, record *models.PriorityRecord) (*models.PriorityRecord, error)
	Get(ctx context.Context, userID, period, subkey string) (*models.PriorityRecord, error)
	ListByUser(ctx context.Context, userID string) ([]*models.PriorityRecord, error)
	ListAll(ctx context.Context) ([]*models.PriorityRecord, error)
	Delete(ctx context.Context, userID, period, subkey string) error
}
