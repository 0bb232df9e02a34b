package services

import (
	"bytes"
	"context"
	"crypto/rsa"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
CREATE TABLE records (
  period     TEXT NOT NULL,
  subkey     TEXT NOT NULL DEFAULT '',
  payload    BLOB NOT NULL,
  version    INTEGER NOT NULL,
  updated_at TIMESTAMP NOT NULL,
  PRIMARY KEY (period, subkey)
);
`)
	require.NoError(t, err)
	return db
}

// fakeClient simulates the server end-to-end: it stores enrollments and
// ciphertext records and honors the same token and error semantics as the
// real API. The unavailable flag simulates a network outage.
type fakeClient struct {
	adminPriv *rsa.PrivateKey

	users     map[string]*cryptox.Enrollment
	profiles  map[string][]byte // username -> encrypted profile blob
	tokens    map[string]string // token -> username
	fragments map[string][]byte // token -> server fragment
	records   map[string]map[string]client.Record

	token       string
	tokenSeq    int
	unavailable bool
}

func newFakeClient(t *testing.T) *fakeClient {
	t.Helper()
	priv, err := cryptox.GenerateAdminKeyPair()
	require.NoError(t, err)
	return &fakeClient{
		adminPriv: priv,
		users:     make(map[string]*cryptox.Enrollment),
		profiles:  make(map[string][]byte),
		tokens:    make(map[string]string),
		fragments: make(map[string][]byte),
		records:   make(map[string]map[string]client.Record),
	}
}

func (f *fakeClient) Close() error          { return nil }
func (f *fakeClient) SetToken(token string) { f.token = token }

func (f *fakeClient) online() error {
	if f.unavailable {
		return client.ErrUnavailable
	}
	return nil
}

func (f *fakeClient) currentUser() (string, error) {
	username, ok := f.tokens[f.token]
	if !ok {
		return "", common.ErrSessionExpired
	}
	return username, nil
}

func (f *fakeClient) AdminKey(ctx context.Context) (*rsa.PublicKey, error) {
	if err := f.online(); err != nil {
		return nil, err
	}
	return &f.adminPriv.PublicKey, nil
}

func (f *fakeClient) Register(ctx context.Context, username string, enrollment *cryptox.Enrollment, profile []byte) error {
	if err := f.online(); err != nil {
		return err
	}
	if _, ok := f.users[username]; ok {
		return common.ErrorConflict
	}
	f.users[username] = enrollment
	f.profiles[username] = profile
	return nil
}

func (f *fakeClient) GetSaltParams(ctx context.Context, username string) ([]byte, cryptox.KDFParams, error) {
	if err := f.online(); err != nil {
		return nil, cryptox.KDFParams{}, err
	}
	if e, ok := f.users[username]; ok {
		return e.Salt, e.Params, nil
	}
	return common.GenerateRandByteArray(32), cryptox.DefaultKDFParams(), nil
}

func (f *fakeClient) Login(ctx context.Context, username string, verifier []byte, tier common.Tier) (*client.LoginResult, error) {
	if err := f.online(); err != nil {
		return nil, err
	}
	e, ok := f.users[username]
	if !ok || !bytes.Equal(e.Verifier, verifier) {
		return nil, common.ErrorUnauthorized
	}
	f.tokenSeq++
	token := fmt.Sprintf("token-%d", f.tokenSeq)
	f.tokens[token] = username
	f.token = token
	return &client.LoginResult{Token: token, UserWrapped: e.UserWrapped, Tier: tier}, nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	if err := f.online(); err != nil {
		return err
	}
	delete(f.fragments, f.token)
	delete(f.tokens, f.token)
	return nil
}

func (f *fakeClient) ChangePassword(ctx context.Context, oldVerifier []byte, rewrapped *cryptox.Rewrapped) error {
	if err := f.online(); err != nil {
		return err
	}
	username, err := f.currentUser()
	if err != nil {
		return err
	}
	e := f.users[username]
	if !bytes.Equal(e.Verifier, oldVerifier) {
		return common.ErrorUnauthorized
	}
	e.Salt = rewrapped.Salt
	e.Params = rewrapped.Params
	e.Verifier = rewrapped.Verifier
	e.UserWrapped = rewrapped.UserWrapped
	f.tokens = make(map[string]string)
	f.fragments = make(map[string][]byte)
	return nil
}

func (f *fakeClient) PutFragment(ctx context.Context, fragment []byte) error {
	if err := f.online(); err != nil {
		return err
	}
	if _, err := f.currentUser(); err != nil {
		return err
	}
	f.fragments[f.token] = append([]byte(nil), fragment...)
	return nil
}

func (f *fakeClient) GetFragment(ctx context.Context) ([]byte, error) {
	if err := f.online(); err != nil {
		return nil, err
	}
	if _, err := f.currentUser(); err != nil {
		return nil, err
	}
	return append([]byte(nil), f.fragments[f.token]...), nil
}

func (f *fakeClient) recordKey(period, subkey string) string { return period + "|" + subkey }

func (f *fakeClient) SaveRecord(ctx context.Context, period, subkey string, payload []byte) (*client.Record, error) {
	if err := f.online(); err != nil {
		return nil, err
	}
	username, err := f.currentUser()
	if err != nil {
		return nil, err
	}
	if f.records[username] == nil {
		f.records[username] = make(map[string]client.Record)
	}
	rec := client.Record{
		Period: period, Subkey: subkey, Payload: payload,
		Version:   f.records[username][f.recordKey(period, subkey)].Version + 1,
		UpdatedAt: time.Now().UTC(),
	}
	f.records[username][f.recordKey(period, subkey)] = rec
	return &rec, nil
}

func (f *fakeClient) GetRecord(ctx context.Context, period, subkey string) (*client.Record, error) {
	if err := f.online(); err != nil {
		return nil, err
	}
	username, err := f.currentUser()
	if err != nil {
		return nil, err
	}
	rec, ok := f.records[username][f.recordKey(period, subkey)]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rec, nil
}

func (f *fakeClient) ListRecords(ctx context.Context) ([]client.Record, error) {
	if err := f.online(); err != nil {
		return nil, err
	}
	username, err := f.currentUser()
	if err != nil {
		return nil, err
	}
	var recs []client.Record
	for _, rec := range f.records[username] {
		recs = append(recs, rec)
	}
	return recs, nil
}

func (f *fakeClient) DeleteRecord(ctx context.Context, period, subkey string) error {
	if err := f.online(); err != nil {
		return err
	}
	username, err := f.currentUser()
	if err != nil {
		return err
	}
	if _, ok := f.records[username][f.recordKey(period, subkey)]; !ok {
		return common.ErrorNotFound
	}
	delete(f.records[username], f.recordKey(period, subkey))
	return nil
}

func (f *fakeClient) AdminListRecords(ctx context.Context) ([]client.AdminBundle, error) {
	if err := f.online(); err != nil {
		return nil, err
	}
	var bundles []client.AdminBundle
	for username, e := range f.users {
		bundle := client.AdminBundle{
			UserID: username, Username: username,
			AdminWrapped: e.AdminWrapped, Profile: f.profiles[username],
		}
		for _, rec := range f.records[username] {
			bundle.Records = append(bundle.Records, rec)
		}
		bundles = append(bundles, bundle)
	}
	return bundles, nil
}
