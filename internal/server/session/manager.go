// Package session implements the server half of the security-tier model:
// session rows keyed by token, the balanced-tier server-held key fragment,
// and the inactivity/absolute-age expiry rules.
package session

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/server/models"
	"github.com/carevault/carevault/internal/server/repositories/sessions"
)

// Manager owns session lifecycle on the server. For balanced-tier sessions it
// stores one DEK fragment, encrypted at rest under a key derived from the
// server secret, and refuses to release it once either expiry is exceeded.
type Manager struct {
	repo              sessions.Repository
	fragmentKey       []byte
	inactivityTimeout time.Duration
	maxSessionAge     time.Duration
	now               func() time.Time
}

// NewManager constructs a Manager. now may be nil, in which case time.Now is
// used; tests inject a fake clock for deterministic expiry.
func NewManager(repo sessions.Repository, serverSecret []byte, inactivityTimeout, maxSessionAge time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	key := sha256.Sum256(serverSecret)
	return &Manager{
		repo:              repo,
		fragmentKey:       key[:],
		inactivityTimeout: inactivityTimeout,
		maxSessionAge:     maxSessionAge,
		now:               now,
	}
}

// Begin records a new session. fragment must be nil except for the balanced
// tier, where it is the server-held half of the split DEK. A balanced session
// may begin without a fragment; the client attaches one after it has
// unwrapped and split its key.
func (m *Manager) Begin(ctx context.Context, token, userID string, tier common.Tier, fragment []byte) error {
	if tier != common.TierBalanced && fragment != nil {
		return fmt.Errorf("tier %q carries no server fragment", tier)
	}

	var stored []byte
	if fragment != nil {
		sealed, err := m.seal(fragment)
		if err != nil {
			return err
		}
		stored = sealed
	}

	ts := m.now()
	return m.repo.Create(ctx, &models.Session{
		Token:      token,
		UserID:     userID,
		Tier:       tier,
		Fragment:   stored,
		CreatedAt:  ts,
		LastActive: ts,
	})
}

// AttachFragment stores the server-held fragment on an existing balanced
// session, replacing any previous one.
func (m *Manager) AttachFragment(ctx context.Context, token string, fragment []byte) error {
	session, err := m.find(ctx, token)
	if err != nil {
		return err
	}
	if session.Tier != common.TierBalanced {
		return fmt.Errorf("tier %q carries no server fragment", session.Tier)
	}
	if len(fragment) != cryptox.KeySize {
		return fmt.Errorf("fragment must be %d bytes", cryptox.KeySize)
	}

	sealed, err := m.seal(fragment)
	if err != nil {
		return err
	}
	return m.repo.SetFragment(ctx, token, sealed)
}

// Fragment releases the server-held fragment for a balanced session, serving
// as the liveness proof for key reconstruction. It enforces both expiries and
// deletes the fragment on expiry, so a later retry cannot resume stale
// material. Success counts as activity.
func (m *Manager) Fragment(ctx context.Context, token string) ([]byte, error) {
	session, err := m.find(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.Tier != common.TierBalanced {
		return nil, fmt.Errorf("tier %q has no server fragment", session.Tier)
	}
	if len(session.Fragment) <= cryptox.KeySize {
		return nil, common.ErrorInternal
	}

	sealed := &cryptox.SealedField{
		Nonce:      session.Fragment[:12],
		Ciphertext: session.Fragment[12:],
	}
	fragment, err := cryptox.DecryptField(m.fragmentKey, sealed)
	if err != nil {
		return nil, fmt.Errorf("unsealing fragment: %w", err)
	}

	if err := m.repo.Touch(ctx, token, m.now()); err != nil {
		return nil, err
	}
	return fragment, nil
}

// Touch resets the inactivity clock, subject to the same expiry checks.
func (m *Manager) Touch(ctx context.Context, token string) error {
	if _, err := m.find(ctx, token); err != nil {
		return err
	}
	return m.repo.Touch(ctx, token, m.now())
}

// Validate checks that a session exists and has not expired, without
// releasing any key material.
func (m *Manager) Validate(ctx context.Context, token string) (*models.Session, error) {
	return m.find(ctx, token)
}

// End terminates one session and drops its fragment.
func (m *Manager) End(ctx context.Context, token string) error {
	return m.repo.Delete(ctx, token)
}

// EndAllForUser terminates every session of a user. Called on password change
// for all sessions, not just the current one: the wrapped-DEK derivation has
// changed underneath them.
func (m *Manager) EndAllForUser(ctx context.Context, userID string) error {
	return m.repo.DeleteAllForUser(ctx, userID)
}

// Reap drops session rows past either expiry. Balanced sessions self-delete
// on access, but idle balanced rows and high-tier rows whose token has long
// expired otherwise accumulate until logout; convenience sessions are exempt.
func (m *Manager) Reap(ctx context.Context) error {
	now := m.now()
	return m.repo.DeleteExpired(ctx, now.Add(-m.maxSessionAge), now.Add(-m.inactivityTimeout))
}

func (m *Manager) seal(fragment []byte) ([]byte, error) {
	sealed, err := cryptox.EncryptField(m.fragmentKey, fragment)
	if err != nil {
		return nil, fmt.Errorf("sealing fragment: %w", err)
	}
	return append(sealed.Nonce, sealed.Ciphertext...), nil
}

func (m *Manager) find(ctx context.Context, token string) (*models.Session, error) {
	session, err := m.repo.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionExpired
		}
		return nil, err
	}

	if session.Tier == common.TierBalanced && m.expired(session) {
		// Delete synchronously before reporting expiry.
		if err := m.repo.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, common.ErrSessionExpired
	}

	return session, nil
}

func (m *Manager) expired(s *models.Session) bool {
	now := m.now()
	if now.Sub(s.LastActive) > m.inactivityTimeout {
		return true
	}
	return now.Sub(s.CreatedAt) > m.maxSessionAge
}
