// Package services contains server-side business logic. This file implements
// UserService: registration with the dual-wrapped key material, the
// salt/params pre-login exchange, tiered login, logout, and password change.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/dbx"
	"github.com/carevault/carevault/internal/server/auth"
	"github.com/carevault/carevault/internal/server/config"
	"github.com/carevault/carevault/internal/server/models"
	"github.com/carevault/carevault/internal/server/repositories/repomanager"
	"github.com/carevault/carevault/internal/server/repositories/users"
	"github.com/carevault/carevault/internal/server/session"
)

// LoginResult is what a successful login hands back to the client: the
// session token and the user-wrapped DEK the client must unwrap locally.
// The server never unwraps it.
type LoginResult struct {
	Token       string
	UserWrapped *cryptox.WrappedKey
	Tier        common.Tier
}

// UserService provides authentication-related operations:
//   - Register: create users carrying their enrollment key material
//   - GetSaltParams: pre-login salt and KDF parameter exchange
//   - Login: verify credentials, mint a token, begin a tiered session
//   - ChangePassword: atomically swap the credential bundle, then
//     invalidate every session
type UserService struct {
	db                   *sql.DB
	repomanager          repomanager.RepositoryManager
	sessions             *session.Manager
	jwtSecret            []byte
	sessionTokenValidity time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, sessions *session.Manager, cfg *config.Config) *UserService {
	return &UserService{
		db:                   db,
		repomanager:          m,
		sessions:             sessions,
		jwtSecret:            []byte(cfg.SecretKey),
		sessionTokenValidity: cfg.SessionTokenValidity,
	}
}

// Register creates a new user from a client-computed enrollment. The server
// stores the salt, KDF parameters, verifier, both wrapped DEK copies, and the
// encrypted profile blob exactly as received.
func (s *UserService) Register(ctx context.Context, username string, e *cryptox.Enrollment, profile []byte) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if e == nil || len(e.Salt) == 0 || len(e.Verifier) == 0 || e.UserWrapped == nil || e.AdminWrapped == nil {
		return nil, fmt.Errorf("incomplete enrollment")
	}

	user := &models.User{
		Username:         username,
		Salt:             e.Salt,
		KDFParams:        e.Params,
		Verifier:         e.Verifier,
		UserWrappedDEK:   e.UserWrapped,
		AdminWrappedDEK:  e.AdminWrapped,
		EncryptedProfile: profile,
	}
	repo := s.repomanager.Users(s.db)
	u, err := repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating user: %v", err)
	}
	return u, nil
}

// GetSaltParams returns the user's stored salt and KDF parameters, or random
// salt with default parameters if the user is absent, to avoid leaking
// existence through the pre-login exchange.
func (s *UserService) GetSaltParams(ctx context.Context, username string) ([]byte, cryptox.KDFParams, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.getRandomSalt(), cryptox.DefaultKDFParams(), nil
		}
		return nil, cryptox.KDFParams{}, common.ErrorInternal
	}
	return user.Salt, user.KDFParams, nil
}

// Login verifies the verifier candidate against the stored value and, on
// success, mints a session token for the requested tier and begins the
// server-side session.
func (s *UserService) Login(ctx context.Context, username string, verifierCandidate []byte, tier common.Tier) (*LoginResult, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !s.checkVerifier(user.Verifier, verifierCandidate) {
		return nil, common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.ID, tier, user.IsAdmin, s.jwtSecret, s.sessionTokenValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.sessions.Begin(ctx, token, user.ID, tier, nil); err != nil {
		return nil, common.ErrorInternal
	}

	return &LoginResult{Token: token, UserWrapped: user.UserWrappedDEK, Tier: tier}, nil
}

// Logout ends the current session, dropping any server-held fragment.
func (s *UserService) Logout(ctx context.Context, token string) error {
	return s.sessions.End(ctx, token)
}

// ChangePassword replaces the credential bundle. The caller proves knowledge
// of the old password with its verifier; the new bundle was computed
// client-side by rewrapping the DEK, so the admin-wrapped copy is untouched.
// All sessions are invalidated strictly after the credential swap commits.
func (s *UserService) ChangePassword(ctx context.Context, userID string, oldVerifier []byte, c *users.Credentials) error {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorUnauthorized
		}
		return common.ErrorInternal
	}
	if !s.checkVerifier(user.Verifier, oldVerifier) {
		return common.ErrorUnauthorized
	}
	if len(c.Salt) == 0 || len(c.Verifier) == 0 || c.UserWrapped == nil {
		return fmt.Errorf("incomplete credential bundle")
	}

	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Users(tx).UpdateCredentials(ctx, userID, c)
	}); err != nil {
		return fmt.Errorf("error updating credentials: %v", err)
	}

	// Only after the new bundle is durable: every open session was minted
	// against the old derivation and must go.
	if err := s.sessions.EndAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("error invalidating sessions: %v", err)
	}
	return nil
}

// --- helpers below ---

func (s *UserService) getRandomSalt() []byte { return common.GenerateRandByteArray(32) }

func (s *UserService) checkVerifier(verifier []byte, candidate []byte) bool {
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}
