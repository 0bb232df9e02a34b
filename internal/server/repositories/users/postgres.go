package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/dbx"
	"github.com/carevault/carevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, username, salt, kdf_params, verifier, user_wrapped_dek, admin_wrapped_dek, encrypted_profile, is_admin, created_at`

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	params, err := json.Marshal(user.KDFParams)
	if err != nil {
		return nil, err
	}
	userWrapped, err := json.Marshal(user.UserWrappedDEK)
	if err != nil {
		return nil, err
	}
	adminWrapped, err := json.Marshal(user.AdminWrappedDEK)
	if err != nil {
		return nil, err
	}

	query :=
		`INSERT INTO users (username, salt, kdf_params, verifier, user_wrapped_dek, admin_wrapped_dek, encrypted_profile, is_admin)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id
		 `

	err = r.db.QueryRowContext(ctx, query,
		user.Username, user.Salt, params, user.Verifier,
		userWrapped, adminWrapped, user.EncryptedProfile, user.IsAdmin).Scan(&user.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var params, userWrapped, adminWrapped []byte

	err := row.Scan(&user.ID, &user.Username, &user.Salt, &params, &user.Verifier,
		&userWrapped, &adminWrapped, &user.EncryptedProfile, &user.IsAdmin, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := unmarshalCryptoFields(user, params, userWrapped, adminWrapped); err != nil {
		return nil, err
	}
	return user, nil
}

func unmarshalCryptoFields(user *models.User, params, userWrapped, adminWrapped []byte) error {
	if err := json.Unmarshal(params, &user.KDFParams); err != nil {
		return fmt.Errorf("decoding kdf params: %w", err)
	}
	user.UserWrappedDEK = &cryptox.WrappedKey{}
	if err := json.Unmarshal(userWrapped, user.UserWrappedDEK); err != nil {
		return fmt.Errorf("decoding user wrapped dek: %w", err)
	}
	user.AdminWrappedDEK = &cryptox.WrappedKey{}
	if err := json.Unmarshal(adminWrapped, user.AdminWrappedDEK); err != nil {
		return fmt.Errorf("decoding admin wrapped dek: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, username))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// UpdateCredentials replaces salt, KDF parameters, verifier, and the
// user-wrapped DEK in a single statement. The admin-wrapped DEK is left
// untouched: it still unwraps to the same DEK.
func (r *PostgresRepository) UpdateCredentials(ctx context.Context, userID string, c *Credentials) error {

	params, err := json.Marshal(c.Params)
	if err != nil {
		return err
	}
	userWrapped, err := json.Marshal(c.UserWrapped)
	if err != nil {
		return err
	}

	query :=
		`UPDATE users
		 SET salt = $1, kdf_params = $2, verifier = $3, user_wrapped_dek = $4
		 WHERE id = $5
		 `

	result, err := r.db.ExecContext(ctx, query, c.Salt, params, c.Verifier, userWrapped, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if affected == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListForAdmin(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		user := &models.User{}
		var params, userWrapped, adminWrapped []byte
		err := rows.Scan(&user.ID, &user.Username, &user.Salt, &params, &user.Verifier,
			&userWrapped, &adminWrapped, &user.EncryptedProfile, &user.IsAdmin, &user.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := unmarshalCryptoFields(user, params, userWrapped, adminWrapped); err != nil {
			return nil, err
		}
		result = append(result, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
