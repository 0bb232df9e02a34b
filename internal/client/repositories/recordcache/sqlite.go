package recordcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carevault/carevault/internal/client/models"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX (*sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, rec *models.CachedRecord) error {
	query := `INSERT INTO records (period, subkey, payload, version, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(period, subkey) DO UPDATE SET payload = excluded.payload,
				version = excluded.version,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.Period, rec.Subkey, rec.Payload, rec.Version, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, period, subkey string) (*models.CachedRecord, error) {
	query := `SELECT period, subkey, payload, version, updated_at FROM records
			WHERE period = ? AND subkey = ?`

	rec := &models.CachedRecord{}
	err := r.db.QueryRowContext(ctx, query, period, subkey).
		Scan(&rec.Period, &rec.Subkey, &rec.Payload, &rec.Version, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.CachedRecord, error) {
	query := `SELECT period, subkey, payload, version, updated_at FROM records
			ORDER BY period, subkey`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var result []*models.CachedRecord
	for rows.Next() {
		rec := &models.CachedRecord{}
		if err := rows.Scan(&rec.Period, &rec.Subkey, &rec.Payload, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, period, subkey string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE period = ? AND subkey = ?`, period, subkey)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM records`)
	if err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}
