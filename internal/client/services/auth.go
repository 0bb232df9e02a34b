// Package services contains application services for the CareVault client:
// authentication and session establishment, encrypted record access with an
// offline cache, and the decryption service used for both owner and admin
// recovery paths.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/client/repositories/metadata"
	"github.com/carevault/carevault/internal/client/session"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/dbx"
)

// AuthService drives registration, the three login tiers, password change,
// and the offline auth metadata kept in the local sqlite database.
type AuthService struct {
	api     client.Client
	db      *sql.DB
	session *session.Context
}

// NewAuthService binds the auth service to the API client, the local
// database, and the session context it mutates.
func NewAuthService(api client.Client, db *sql.DB, sc *session.Context) *AuthService {
	return &AuthService{api: api, db: db, session: sc}
}

func (a *AuthService) metadataRepo() metadata.Repository {
	return metadata.NewSQLiteRepository(a.db)
}

// Register enrolls a new user: fetches the administrator's public key, builds
// the dual-wrapped envelope locally, and sends it to the server together with
// the encrypted profile blob. The password never leaves the machine and the
// server only ever sees the profile as ciphertext.
func (a *AuthService) Register(ctx context.Context, username string, password []byte, displayName string) error {
	adminPub, err := a.api.AdminKey(ctx)
	if err != nil {
		return fmt.Errorf("fetching admin key: %w", err)
	}

	enrollment, dek, err := cryptox.Register(password, adminPub)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(dek)

	profile, err := sealProfile(dek, displayName)
	if err != nil {
		return err
	}

	return a.api.Register(ctx, username, enrollment, profile)
}

// Login authenticates at the requested tier, unwraps the DEK, and activates
// the session context. Offline login material is refreshed on every success;
// for the convenience tier the token and DEK are additionally persisted so
// the session survives a process restart.
func (a *AuthService) Login(ctx context.Context, username string, password []byte, tier common.Tier) error {
	salt, params, err := a.api.GetSaltParams(ctx, username)
	if err != nil {
		return fmt.Errorf("fetching salt: %w", err)
	}

	key, err := cryptox.DeriveKey(password, salt, params)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	res, err := a.api.Login(ctx, username, cryptox.MakeVerifier(key), tier)
	if err != nil {
		return err
	}

	dek, err := cryptox.UnwrapKeySymmetric(res.UserWrapped, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(dek)

	if err := a.session.Establish(ctx, tier, res.Token, dek); err != nil {
		return err
	}

	if err := a.saveOfflineData(ctx, username, salt, params, cryptox.MakeVerifier(key), res.UserWrapped); err != nil {
		return fmt.Errorf("saving offline data: %w", err)
	}
	if tier == common.TierConvenience {
		if err := a.persistConvenienceSession(ctx, res.Token, dek); err != nil {
			return fmt.Errorf("persisting session: %w", err)
		}
	}
	return nil
}

// OfflineLogin verifies the password against locally cached credentials and
// unlocks a local-only session for reading the record cache. Nothing is sent
// to the server.
func (a *AuthService) OfflineLogin(ctx context.Context, username string, password []byte) error {
	repo := a.metadataRepo()

	savedUsername, err := a.getLocal(ctx, repo, metadata.KeyUsername)
	if err != nil {
		return err
	}
	if string(savedUsername) != username {
		return common.ErrorUnauthorized
	}

	salt, err := a.getLocal(ctx, repo, metadata.KeySalt)
	if err != nil {
		return err
	}
	paramsRaw, err := a.getLocal(ctx, repo, metadata.KeyKDFParams)
	if err != nil {
		return err
	}
	verifier, err := a.getLocal(ctx, repo, metadata.KeyVerifier)
	if err != nil {
		return err
	}
	wrappedRaw, err := a.getLocal(ctx, repo, metadata.KeyUserWrapped)
	if err != nil {
		return err
	}

	var params cryptox.KDFParams
	if err := json.Unmarshal(paramsRaw, &params); err != nil {
		return fmt.Errorf("corrupt kdf params: %w", err)
	}
	var wrapped cryptox.WrappedKey
	if err := json.Unmarshal(wrappedRaw, &wrapped); err != nil {
		return fmt.Errorf("corrupt wrapped key: %w", err)
	}

	key, err := cryptox.DeriveKey(password, salt, params)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	if subtle.ConstantTimeCompare(verifier, cryptox.MakeVerifier(key)) == 0 {
		return common.ErrorUnauthorized
	}

	dek, err := cryptox.UnwrapKeySymmetric(&wrapped, key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(dek)

	return a.session.UnlockOffline(dek)
}

// ResumeSession restores a persisted convenience-tier session, if one exists.
// Returns client.ErrLocalDataNotAvailable when nothing was persisted.
func (a *AuthService) ResumeSession(ctx context.Context) error {
	repo := a.metadataRepo()

	tierRaw, err := a.getLocal(ctx, repo, metadata.KeySessionTier)
	if err != nil {
		return err
	}
	if common.Tier(tierRaw) != common.TierConvenience {
		return client.ErrLocalDataNotAvailable
	}

	token, err := a.getLocal(ctx, repo, metadata.KeySessionToken)
	if err != nil {
		return err
	}
	dek, err := a.getLocal(ctx, repo, metadata.KeyConvenienceDEK)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(dek)

	return a.session.Resume(string(token), dek)
}

// ChangePassword rewraps the DEK under the new password and replaces the
// credential set server-side. The server revokes every session, so the caller
// has to log in again afterwards.
func (a *AuthService) ChangePassword(ctx context.Context, oldPassword, newPassword []byte) error {
	repo := a.metadataRepo()

	username, err := a.getLocal(ctx, repo, metadata.KeyUsername)
	if err != nil {
		return err
	}
	salt, params, err := a.api.GetSaltParams(ctx, string(username))
	if err != nil {
		return fmt.Errorf("fetching salt: %w", err)
	}

	oldKey, err := cryptox.DeriveKey(oldPassword, salt, params)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldKey)

	wrappedRaw, err := a.getLocal(ctx, repo, metadata.KeyUserWrapped)
	if err != nil {
		return err
	}
	var wrapped cryptox.WrappedKey
	if err := json.Unmarshal(wrappedRaw, &wrapped); err != nil {
		return fmt.Errorf("corrupt wrapped key: %w", err)
	}

	rewrapped, err := cryptox.Rewrap(oldPassword, newPassword, salt, params, &wrapped)
	if err != nil {
		return err
	}

	if err := a.api.ChangePassword(ctx, cryptox.MakeVerifier(oldKey), rewrapped); err != nil {
		return err
	}

	// every session is revoked server-side now
	a.session.Expire()
	if err := a.clearPersistedSession(ctx); err != nil {
		return err
	}
	return a.saveOfflineData(ctx, string(username), rewrapped.Salt, rewrapped.Params, rewrapped.Verifier, rewrapped.UserWrapped)
}

// Logout ends the session on server and client and drops any persisted
// convenience-tier key material.
func (a *AuthService) Logout(ctx context.Context) error {
	err := a.session.Logout(ctx)
	if clearErr := a.clearPersistedSession(ctx); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// ClearOfflineData wipes everything cached locally, including the offline
// login material.
func (a *AuthService) ClearOfflineData(ctx context.Context) error {
	return a.metadataRepo().Clear(ctx)
}

// Close releases the underlying client connection.
func (a *AuthService) Close() error {
	return a.api.Close()
}

func (a *AuthService) getLocal(ctx context.Context, repo metadata.Repository, key string) ([]byte, error) {
	v, err := repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, client.ErrLocalDataNotAvailable
		}
		return nil, err
	}
	return v, nil
}

func (a *AuthService) saveOfflineData(ctx context.Context, username string, salt []byte, params cryptox.KDFParams, verifier []byte, userWrapped *cryptox.WrappedKey) error {
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	wrappedRaw, err := json.Marshal(userWrapped)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		pairs := map[string][]byte{
			metadata.KeyUsername:    []byte(username),
			metadata.KeySalt:        salt,
			metadata.KeyKDFParams:   paramsRaw,
			metadata.KeyVerifier:    verifier,
			metadata.KeyUserWrapped: wrappedRaw,
		}
		for key, value := range pairs {
			if err := repo.Set(ctx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// persistConvenienceSession stores the token and the raw DEK locally. That is
// the convenience tier's explicit tradeoff: anyone with the device and the
// database file can read the vault until the user logs out.
func (a *AuthService) persistConvenienceSession(ctx context.Context, token string, dek []byte) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := metadata.NewSQLiteRepository(tx)
		if err := repo.Set(ctx, metadata.KeySessionTier, []byte(common.TierConvenience)); err != nil {
			return err
		}
		if err := repo.Set(ctx, metadata.KeySessionToken, []byte(token)); err != nil {
			return err
		}
		return repo.Set(ctx, metadata.KeyConvenienceDEK, dek)
	})
}

func (a *AuthService) clearPersistedSession(ctx context.Context) error {
	repo := a.metadataRepo()
	for _, key := range []string{metadata.KeySessionTier, metadata.KeySessionToken, metadata.KeyConvenienceDEK} {
		if err := repo.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
