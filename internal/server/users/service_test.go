package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ericthayer/devlog/internal/common"
	"github.com/ericthayer/devlog/internal/models"
	"github.com/ericthayer/devlog/internal/server/auth"
	"github.com/ericthayer/devlog/internal/server/config"
	"github.com/ericthayer/devlog/internal/store/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newServiceWithMock(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{SecretKey: "test-secret", AccessTokenValidityDuration: time.Minute}
	return NewService(db, repomanager.NewPostgresRepositoryManager(), cfg), mock
}

func TestRegister_FirstUserBecomesSuperAdmin(t *testing.T) {
	s, mock := newServiceWithMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`INSERT INTO users .* RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-1"))

	user, err := s.Register(context.Background(), "owner@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperAdmin, user.Role)
	assert.NotEqual(t, "pw", user.PasswordHash)
}

func TestRegister_LaterUsersAreReaders(t *testing.T) {
	s, mock := newServiceWithMock(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`INSERT INTO users .* RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u-3"))

	user, err := s.Register(context.Background(), "third@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, models.RoleReader, user.Role)
}

func TestLogin_Success(t *testing.T) {
	s, mock := newServiceWithMock(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, email, password_hash, role FROM users WHERE email = \$1`).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}).
			AddRow("u-1", "a@example.com", string(hash), "publisher"))

	token, user, err := s.Login(context.Background(), "a@example.com", "correct")
	require.NoError(t, err)
	assert.Equal(t, models.RolePublisher, user.Role)

	claims, err := auth.ParseToken(token, []byte("test-secret"))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RolePublisher, claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	s, mock := newServiceWithMock(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT id, email, password_hash, role FROM users WHERE email = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role"}).
			AddRow("u-1", "a@example.com", string(hash), "reader"))

	_, _, err = s.Login(context.Background(), "a@example.com", "wrong")
	assert.True(t, errors.Is(err, common.ErrorUnauthorized))
}

func TestLogin_UnknownUser(t *testing.T) {
	s, mock := newServiceWithMock(t)

	mock.ExpectQuery(`SELECT id, email, password_hash, role FROM users WHERE email = \$1`).
		WillReturnError(sql.ErrNoRows)

	_, _, err := s.Login(context.Background(), "nobody@example.com", "pw")
	assert.True(t, errors.Is(err, common.ErrorUnauthorized))
}

func TestSetRole_Permissions(t *testing.T) {
	s, mock := newServiceWithMock(t)

	publisher := &auth.Claims{UserID: "u-1", Role: models.RolePublisher}
	err := s.SetRole(context.Background(), publisher, "u-2", models.RolePublisher)
	assert.True(t, errors.Is(err, common.ErrorForbidden), "non-admin cannot change roles")

	admin := &auth.Claims{UserID: "u-1", Role: models.RoleSuperAdmin}
	err = s.SetRole(context.Background(), admin, "u-1", models.RoleReader)
	assert.True(t, errors.Is(err, common.ErrorForbidden), "cannot change own role")

	err = s.SetRole(context.Background(), admin, "u-2", models.Role("owner"))
	assert.Error(t, err, "unknown roles are rejected")

	mock.ExpectExec(`UPDATE users SET role = \$2 WHERE id = \$1`).
		WithArgs("u-2", models.RolePublisher).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetRole(context.Background(), admin, "u-2", models.RolePublisher))
}

func TestDelete_Permissions(t *testing.T) {
	s, mock := newServiceWithMock(t)

	publisher := &auth.Claims{UserID: "u-1", Role: models.RolePublisher}
	err := s.Delete(context.Background(), publisher, "u-2")
	assert.True(t, errors.Is(err, common.ErrorForbidden), "non-admin cannot delete accounts")

	admin := &auth.Claims{UserID: "u-1", Role: models.RoleSuperAdmin}
	err = s.Delete(context.Background(), admin, "u-1")
	assert.True(t, errors.Is(err, common.ErrorForbidden), "cannot delete own account")

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs("u-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Delete(context.Background(), admin, "u-2"))
}
