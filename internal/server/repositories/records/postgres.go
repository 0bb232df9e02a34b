package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PostgresRepository) Upsert(ctx context.Context, record *models.PriorityRecord) (*models.PriorityRecord, error) {

	query :=
		`INSERT INTO priority_records (user_id, period, subkey, encrypted_payload)
         VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, period, subkey) DO UPDATE
		 SET encrypted_payload = excluded.encrypted_payload,
		     version = priority_records.version + 1,
		     updated_at = now()
		 RETURNING id, version
		 `

	err := r.db.QueryRowContext(ctx, query,
		record.UserID, record.Period, record.Subkey, record.EncryptedPayload).
		Scan(&record.ID, &record.Version)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

const recordColumns = `id, user_id, period, subkey, encrypted_payload, version, updated_at`

func (r *PostgresRepository) Get(ctx context.Context, userID, period, subkey string) (*models.PriorityRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM priority_records
		 WHERE user_id = $1 AND period = $2 AND subkey = $3`

	record := &models.PriorityRecord{}
	err := r.db.QueryRowContext(ctx, query, userID, period, subkey).
		Scan(&record.ID, &record.UserID, &record.Period, &record.Subkey,
			&record.EncryptedPayload, &record.Version, &record.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return record, nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.PriorityRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.PriorityRecord
	for rows.Next() {
		record := &models.PriorityRecord{}
		err := rows.Scan(&record.ID, &record.UserID, &record.Period, &record.Subkey,
			&record.EncryptedPayload, &record.Version, &record.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*models.PriorityRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM priority_records
		 WHERE user_id = $1 ORDER BY period, subkey`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.PriorityRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM priority_records ORDER BY user_id, period, subkey`
	return r.list(ctx, query)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, period, subkey string) error {
	query := `DELETE FROM priority_records WHERE user_id = $1 AND period = $2 AND subkey = $3`

	result, err := r.db.ExecContext(ctx, query, userID, period, subkey)
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
