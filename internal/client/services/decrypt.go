package services

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"

	"github.com/grailbio/base/traverse"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/client/session"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/logging"
)

// KeySource yields the DEK a batch of records was encrypted under. The owner
// path reads it from the active session; the admin path unwraps the
// admin-wrapped copy with the recovery private key.
type KeySource interface {
	Key(ctx context.Context) ([]byte, error)
}

// SessionKeySource is the owner path: the DEK comes from the logged-in
// session context.
type SessionKeySource struct {
	Session *session.Context
}

func (s SessionKeySource) Key(ctx context.Context) ([]byte, error) {
	return s.Session.Key(ctx)
}

// AdminKeySource is the recovery path: the DEK is unwrapped from one user's
// admin-wrapped copy with the administrator's private key.
type AdminKeySource struct {
	Priv    *rsa.PrivateKey
	Wrapped *cryptox.WrappedKey
}

func (s AdminKeySource) Key(ctx context.Context) ([]byte, error) {
	return cryptox.RecoverAsAdmin(s.Priv, s.Wrapped)
}

// SecretProvider produces a high-entropy secret from outside the process,
// e.g. a hardware authenticator ceremony.
type SecretProvider func(ctx context.Context) ([]byte, error)

// AuthenticatorKeySource recovers the DEK from an authenticator-supplied
// secret instead of a typed password. The secret runs through the same key
// derivation against the user's enrollment salt and wrapped copy, so a
// secret from the wrong authenticator surfaces ErrUnwrapFailed like any
// other wrong credential.
type AuthenticatorKeySource struct {
	Provide SecretProvider
	Salt    []byte
	Params  cryptox.KDFParams
	Wrapped *cryptox.WrappedKey
}

func (s AuthenticatorKeySource) Key(ctx context.Context) ([]byte, error) {
	secret, err := s.Provide(ctx)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(secret)
	return cryptox.RecoverAsUser(secret, s.Salt, s.Params, s.Wrapped)
}

// RecordFailure identifies one record that could not be decrypted and why.
type RecordFailure struct {
	Period string
	Subkey string
	Err    error
}

// PartialBatchFailure is returned by batch decryption when some records
// failed. The successes travel alongside it in the BatchResult; callers
// decide whether partial output is acceptable.
type PartialBatchFailure struct {
	Failures []RecordFailure
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("%d record(s) failed to decrypt", len(e.Failures))
}

// BatchResult carries the outcome of a batch decryption: the records that
// decrypted cleanly, in no particular order, plus the per-record failures.
type BatchResult struct {
	Entries  []Entry
	Failures []RecordFailure
}

// UserBatch is one user's decrypted share of an admin recovery run.
// DisplayName comes from the encrypted profile blob and is empty when the
// user registered without one or the blob failed to decrypt.
type UserBatch struct {
	UserID      string
	Username    string
	DisplayName string
	BatchResult
}

// DecryptionService turns ciphertext records back into plaintext entries. It
// serves both the record owner and the administrator doing key recovery.
type DecryptionService struct {
	logger logging.Logger
}

func NewDecryptionService(logger logging.Logger) *DecryptionService {
	return &DecryptionService{logger: logger}
}

// DecryptRecord decrypts a single record with the key the source yields.
func (s *DecryptionService) DecryptRecord(ctx context.Context, source KeySource, rec *client.Record) (*Entry, error) {
	key, err := source.Key(ctx)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	return decryptEntry(key, rec.Period, rec.Subkey, rec.Payload, rec.Version)
}

// DecryptAll decrypts a batch of records sharing one key. Records are
// independent: a record that fails authentication is logged and collected
// without aborting the rest. The work fans out across CPUs and the result
// order is unspecified. When any record failed, the error is a
// *PartialBatchFailure and the result still carries the successes.
func (s *DecryptionService) DecryptAll(ctx context.Context, source KeySource, recs []client.Record) (*BatchResult, error) {
	key, err := source.Key(ctx)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	var (
		mu     sync.Mutex
		result BatchResult
	)
	_ = traverse.Parallel.Each(len(recs), func(i int) error {
		rec := recs[i]
		entry, err := decryptEntry(key, rec.Period, rec.Subkey, rec.Payload, rec.Version)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			s.logger.Error(ctx, "record failed to decrypt",
				"period", rec.Period, "subkey", rec.Subkey, "error", err)
			result.Failures = append(result.Failures, RecordFailure{
				Period: rec.Period, Subkey: rec.Subkey, Err: err,
			})
			return nil
		}
		result.Entries = append(result.Entries, *entry)
		return nil
	})

	if len(result.Failures) > 0 {
		return &result, &PartialBatchFailure{Failures: result.Failures}
	}
	return &result, nil
}

// DecryptBundles runs admin recovery over every user's bundle: unwrap that
// user's DEK with the private key, then batch-decrypt the user's records.
// A user whose DEK cannot be unwrapped contributes one failure covering all
// of their records.
func (s *DecryptionService) DecryptBundles(ctx context.Context, priv *rsa.PrivateKey, bundles []client.AdminBundle) ([]UserBatch, error) {
	batches := make([]UserBatch, 0, len(bundles))
	failed := 0

	for _, bundle := range bundles {
		batch := UserBatch{UserID: bundle.UserID, Username: bundle.Username}
		source := AdminKeySource{Priv: priv, Wrapped: bundle.AdminWrapped}

		result, err := s.DecryptAll(ctx, source, bundle.Records)
		if err != nil && result == nil {
			// key unwrap failed, none of this user's records are readable
			s.logger.Error(ctx, "user key recovery failed",
				"username", bundle.Username, "error", err)
			for _, rec := range bundle.Records {
				batch.Failures = append(batch.Failures, RecordFailure{
					Period: rec.Period, Subkey: rec.Subkey, Err: err,
				})
			}
			failed++
		} else {
			batch.BatchResult = *result
			if len(result.Failures) > 0 {
				failed++
			}
			batch.DisplayName = s.decryptProfile(ctx, source, bundle)
		}
		batches = append(batches, batch)
	}

	if failed > 0 {
		var all []RecordFailure
		for _, b := range batches {
			all = append(all, b.Failures...)
		}
		return batches, &PartialBatchFailure{Failures: all}
	}
	return batches, nil
}

// decryptProfile opens the user's encrypted profile blob, yielding the
// display name. An unreadable profile is logged and does not fail the batch.
func (s *DecryptionService) decryptProfile(ctx context.Context, source KeySource, bundle client.AdminBundle) string {
	if len(bundle.Profile) == 0 {
		return ""
	}
	key, err := source.Key(ctx)
	if err != nil {
		return ""
	}
	defer common.WipeByteArray(key)

	name, err := openProfile(key, bundle.Profile)
	if err != nil {
		s.logger.Error(ctx, "profile failed to decrypt",
			"username", bundle.Username, "error", err)
		return ""
	}
	return name
}
