// Package sessions persists server-side session rows keyed by token,
// including the balanced-tier key fragment.
package sessions

import (
	"context"
	"time"

	"github.com/carevault/carevault/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, session *models.Session) error
	Find(ctx context.Context, token string) (*models.Session, error)
	// Touch moves last_active forward; expiry decisions belong to the
	// session manager, not the store.
	Touch(ctx context.Context, token string, at time.Time) error
	// SetFragment attaches the balanced-tier fragment after login, once the
	// client has split its key.
	SetFragment(ctx context.Context, token string, fragment []byte) error
	Delete(ctx context.Context, token string) error
	// DeleteAllForUser removes every session of a user. Called on logout-all
	// and password change, synchronously, so no stale fragment survives.
	DeleteAllForUser(ctx context.Context, userID string) error
	// DeleteExpired removes non-convenience sessions whose creation or last
	// activity predates the cutoffs. Convenience sessions live until logout.
	DeleteExpired(ctx context.Context, createdBefore, activeBefore time.Time) error
}
