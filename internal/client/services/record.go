package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/client/models"
	"github.com/carevault/carevault/internal/client/repositories/recordcache"
	"github.com/carevault/carevault/internal/client/session"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
)

// Entry is one decrypted weekly-priority record handed to the CLI.
type Entry struct {
	Period  string
	Subkey  string
	Payload []byte
	Version int64
}

// RecordService encrypts records before they leave the machine and keeps a
// ciphertext-only local cache so reads keep working while the server is down.
type RecordService struct {
	api     client.Client
	db      *sql.DB
	session *session.Context
}

func NewRecordService(api client.Client, db *sql.DB, sc *session.Context) *RecordService {
	return &RecordService{api: api, db: db, session: sc}
}

func (s *RecordService) cacheRepo() recordcache.Repository {
	return recordcache.NewSQLiteRepository(s.db)
}

// Save encrypts the payload under the session key and uploads it. The cached
// copy is refreshed with the ciphertext the server acknowledged.
func (s *RecordService) Save(ctx context.Context, period, subkey string, plaintext []byte) error {
	key, err := s.session.Key(ctx)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(key)

	sealed, err := cryptox.EncryptField(key, plaintext)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(sealed)
	if err != nil {
		return err
	}

	rec, err := s.api.SaveRecord(ctx, period, subkey, payload)
	if err != nil {
		return err
	}
	return s.cacheRepo().Upsert(ctx, &models.CachedRecord{
		Period:    rec.Period,
		Subkey:    rec.Subkey,
		Payload:   rec.Payload,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	})
}

// Get fetches and decrypts one record. When the server is unreachable the
// local cache answers instead; a cache miss in that case surfaces as
// client.ErrLocalDataNotAvailable.
func (s *RecordService) Get(ctx context.Context, period, subkey string) (*Entry, error) {
	key, err := s.session.Key(ctx)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	rec, err := s.api.GetRecord(ctx, period, subkey)
	switch {
	case err == nil:
		_ = s.cacheRepo().Upsert(ctx, &models.CachedRecord{
			Period:    rec.Period,
			Subkey:    rec.Subkey,
			Payload:   rec.Payload,
			Version:   rec.Version,
			UpdatedAt: rec.UpdatedAt,
		})
		return decryptEntry(key, rec.Period, rec.Subkey, rec.Payload, rec.Version)
	case errors.Is(err, client.ErrUnavailable):
		cached, cacheErr := s.cacheRepo().Get(ctx, period, subkey)
		if cacheErr != nil {
			if errors.Is(cacheErr, common.ErrorNotFound) {
				return nil, client.ErrLocalDataNotAvailable
			}
			return nil, cacheErr
		}
		return decryptEntry(key, cached.Period, cached.Subkey, cached.Payload, cached.Version)
	default:
		return nil, err
	}
}

// List fetches and decrypts every record of the logged-in user, falling back
// to the local cache when the server is unreachable.
func (s *RecordService) List(ctx context.Context) ([]Entry, error) {
	key, err := s.session.Key(ctx)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	recs, err := s.api.ListRecords(ctx)
	switch {
	case err == nil:
		entries := make([]Entry, 0, len(recs))
		for _, rec := range recs {
			_ = s.cacheRepo().Upsert(ctx, &models.CachedRecord{
				Period:    rec.Period,
				Subkey:    rec.Subkey,
				Payload:   rec.Payload,
				Version:   rec.Version,
				UpdatedAt: rec.UpdatedAt,
			})
			entry, err := decryptEntry(key, rec.Period, rec.Subkey, rec.Payload, rec.Version)
			if err != nil {
				return nil, err
			}
			entries = append(entries, *entry)
		}
		return entries, nil
	case errors.Is(err, client.ErrUnavailable):
		cached, cacheErr := s.cacheRepo().List(ctx)
		if cacheErr != nil {
			return nil, cacheErr
		}
		if len(cached) == 0 {
			return nil, client.ErrLocalDataNotAvailable
		}
		entries := make([]Entry, 0, len(cached))
		for _, rec := range cached {
			entry, err := decryptEntry(key, rec.Period, rec.Subkey, rec.Payload, rec.Version)
			if err != nil {
				return nil, err
			}
			entries = append(entries, *entry)
		}
		return entries, nil
	default:
		return nil, err
	}
}

// Delete removes a record on the server and from the cache.
func (s *RecordService) Delete(ctx context.Context, period, subkey string) error {
	if err := s.api.DeleteRecord(ctx, period, subkey); err != nil {
		return err
	}
	return s.cacheRepo().Delete(ctx, period, subkey)
}

func decryptEntry(key []byte, period, subkey string, payload []byte, version int64) (*Entry, error) {
	var sealed cryptox.SealedField
	if err := json.Unmarshal(payload, &sealed); err != nil {
		return nil, fmt.Errorf("corrupt record payload: %w", err)
	}
	plaintext, err := cryptox.DecryptField(key, &sealed)
	if err != nil {
		return nil, err
	}
	return &Entry{Period: period, Subkey: subkey, Payload: plaintext, Version: version}, nil
}
