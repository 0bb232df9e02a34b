package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/server/models"
	"github.com/carevault/carevault/internal/server/repositories/repomanager"
)

// AdminRecordBundle pairs one user's admin-wrapped DEK with their encrypted
// records, which is everything an administrator needs for offline recovery
// with the admin private key.
type AdminRecordBundle struct {
	UserID       string
	Username     string
	AdminWrapped *cryptox.WrappedKey
	Profile      []byte
	Records      []*models.PriorityRecord
}

// RecordService manages encrypted weekly-priority records. Payloads pass
// through opaque; ownership checks happen here, not in handlers.
type RecordService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewRecordService(db *sql.DB, m repomanager.RepositoryManager) *RecordService {
	return &RecordService{db: db, repomanager: m}
}

// Save inserts or replaces the record for (userID, period, subkey), bumping
// its version on replace.
func (s *RecordService) Save(ctx context.Context, userID, period, subkey string, payload []byte) (*models.PriorityRecord, error) {
	if period == "" {
		return nil, fmt.Errorf("period is required")
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("payload is required")
	}

	repo := s.repomanager.Records(s.db)
	rec, err := repo.Upsert(ctx, &models.PriorityRecord{
		UserID:           userID,
		Period:           period,
		Subkey:           subkey,
		EncryptedPayload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("error saving record: %v", err)
	}
	return rec, nil
}

// Get returns one of the caller's records.
func (s *RecordService) Get(ctx context.Context, userID, period, subkey string) (*models.PriorityRecord, error) {
	repo := s.repomanager.Records(s.db)
	rec, err := repo.Get(ctx, userID, period, subkey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	return rec, nil
}

// List returns all of the caller's records.
func (s *RecordService) List(ctx context.Context, userID string) ([]*models.PriorityRecord, error) {
	repo := s.repomanager.Records(s.db)
	recs, err := repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return recs, nil
}

// Delete removes one of the caller's records.
func (s *RecordService) Delete(ctx context.Context, userID, period, subkey string) error {
	repo := s.repomanager.Records(s.db)
	if err := repo.Delete(ctx, userID, period, subkey); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return common.ErrorInternal
	}
	return nil
}

// AdminList returns every user's admin-wrapped DEK alongside their encrypted
// records. The server contributes no decryption: the caller recovers each DEK
// offline with the admin private key.
func (s *RecordService) AdminList(ctx context.Context) ([]*AdminRecordBundle, error) {
	usersRepo := s.repomanager.Users(s.db)
	recordsRepo := s.repomanager.Records(s.db)

	allUsers, err := usersRepo.ListForAdmin(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}
	allRecords, err := recordsRepo.ListAll(ctx)
	if err != nil {
		return nil, common.ErrorInternal
	}

	byUser := make(map[string][]*models.PriorityRecord)
	for _, r := range allRecords {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	bundles := make([]*AdminRecordBundle, 0, len(allUsers))
	for _, u := range allUsers {
		bundles = append(bundles, &AdminRecordBundle{
			UserID:       u.ID,
			Username:     u.Username,
			AdminWrapped: u.AdminWrappedDEK,
			Profile:      u.EncryptedProfile,
			Records:      byUser[u.ID],
		})
	}
	return bundles, nil
}
