package users

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/carevault/carevault/internal/common"
	"github.com/carevault/carevault/internal/cryptox"
	"github.com/carevault/carevault/internal/server/models"
)

func newMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func sampleUser(t *testing.T) *models.User {
	t.Helper()
	return &models.User{
		Username:        "alice",
		Salt:            []byte("salt"),
		KDFParams:       cryptox.DefaultKDFParams(),
		Verifier:        []byte("verifier"),
		UserWrappedDEK:  &cryptox.WrappedKey{Kind: cryptox.WrapSymmetric, Nonce: []byte("n"), Ciphertext: []byte("c1")},
		AdminWrappedDEK: &cryptox.WrappedKey{Kind: cryptox.WrapAsymmetric, Ciphertext: []byte("c2")},
	}
}

func userRow(t *testing.T, u *models.User) *sqlmock.Rows {
	t.Helper()
	params, _ := json.Marshal(u.KDFParams)
	uw, _ := json.Marshal(u.UserWrappedDEK)
	aw, _ := json.Marshal(u.AdminWrappedDEK)
	return sqlmock.NewRows([]string{
		"id", "username", "salt", "kdf_params", "verifier",
		"user_wrapped_dek", "admin_wrapped_dek", "encrypted_profile", "is_admin", "created_at",
	}).AddRow("u1", u.Username, u.Salt, params, u.Verifier, uw, aw, u.EncryptedProfile, u.IsAdmin, time.Now())
}

func TestCreate_ReturnsID(t *testing.T) {
	repo, mock := newMock(t)
	u := sampleUser(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))

	got, err := repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "u1" {
		t.Fatalf("expected id u1, got %q", got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByUsername_DecodesWrappedKeys(t *testing.T) {
	repo, mock := newMock(t)
	u := sampleUser(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("alice").
		WillReturnRows(userRow(t, u))

	got, err := repo.GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername error: %v", err)
	}
	if got.UserWrappedDEK.Kind != cryptox.WrapSymmetric {
		t.Fatalf("user wrapped kind mismatch: %q", got.UserWrappedDEK.Kind)
	}
	if got.AdminWrappedDEK.Kind != cryptox.WrapAsymmetric {
		t.Fatalf("admin wrapped kind mismatch: %q", got.AdminWrappedDEK.Kind)
	}
	if got.KDFParams != cryptox.DefaultKDFParams() {
		t.Fatalf("kdf params mismatch: %+v", got.KDFParams)
	}
}

func TestGetByUsername_NotFound(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByUsername(context.Background(), "nobody")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected common.ErrorNotFound, got %v", err)
	}
}

func TestUpdateCredentials_SingleStatement(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCredentials(context.Background(), "u1", &Credentials{
		Salt:        []byte("new-salt"),
		Params:      cryptox.DefaultKDFParams(),
		Verifier:    []byte("new-verifier"),
		UserWrapped: &cryptox.WrappedKey{Kind: cryptox.WrapSymmetric, Nonce: []byte("n"), Ciphertext: []byte("c")},
	})
	if err != nil {
		t.Fatalf("UpdateCredentials error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateCredentials_UnknownUser(t *testing.T) {
	repo, mock := newMock(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateCredentials(context.Background(), "missing", &Credentials{
		Salt:        []byte("s"),
		Params:      cryptox.DefaultKDFParams(),
		Verifier:    []byte("v"),
		UserWrapped: &cryptox.WrappedKey{Kind: cryptox.WrapSymmetric},
	})
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected common.ErrorNotFound, got %v", err)
	}
}

func TestListForAdmin_ReturnsAll(t *testing.T) {
	repo, mock := newMock(t)
	u := sampleUser(t)

	rows := userRow(t, u)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).WillReturnRows(rows)

	got, err := repo.ListForAdmin(context.Background())
	if err != nil {
		t.Fatalf("ListForAdmin error: %v", err)
	}
	if len(got) != 1 || got[0].Username != "alice" {
		t.Fatalf("unexpected result: %+v", got)
	}
}
