package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/dbx"
	"github.com/carevault/carevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, session *models.Session) error {

	query :=
		`INSERT INTO sessions (token, user_id, tier, fragment, created_at, last_active)
         VALUES ($1, $2, $3, $4, $5, $6)
		 `

	_, err := r.db.ExecContext(ctx, query,
		session.Token, session.UserID, string(session.Tier), session.Fragment,
		session.CreatedAt, session.LastActive)

	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.Session, error) {
	query :=
		`SELECT token, user_id, tier, fragment, created_at, last_active FROM sessions
		 WHERE token = $1
		 `

	session := &models.Session{}
	var tier string
	err := r.db.QueryRowContext(ctx, query, token).
		Scan(&session.Token, &session.UserID, &tier, &session.Fragment,
			&session.CreatedAt, &session.LastActive)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	session.Tier = common.Tier(tier)
	return session, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, token string, at time.Time) error {
	query := `UPDATE sessions SET last_active = $1 WHERE token = $2`

	result, err := r.db.ExecContext(ctx, query, at, token)
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

func (r *PostgresRepository) SetFragment(ctx context.Context, token string, fragment []byte) error {
	query := `UPDATE sessions SET fragment = $1 WHERE token = $2`

	result, err := r.db.ExecContext(ctx, query, fragment, token)
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

func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, createdBefore, activeBefore time.Time) error {
	query := `DELETE FROM sessions WHERE tier <> $1 AND (created_at < $2 OR last_active < $3)`
	_, err := r.db.ExecContext(ctx, query, common.TierConvenience, createdBefore, activeBefore)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
