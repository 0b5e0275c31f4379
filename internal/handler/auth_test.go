package handler

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidromero/mercadillo/internal/config"
	"github.com/davidromero/mercadillo/internal/repository"
	"github.com/davidromero/mercadillo/internal/utils"
)

var userCols = []string{"id", "ref", "name", "email", "password_hash", "phone", "location",
	"average_rating", "rating_count", "is_active", "created_at", "updated_at"}

func testConfig() config.Config {
	return config.Config{JWTSecret: "handler-test-secret", TokenTTLHrs: 24, BcryptCost: 4}
}

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewAuthHandler(repository.NewUserRepo(db), testConfig())
	return h, mock, func() { db.Close() }
}

func TestRegisterIssuesToken(t *testing.T) {
	h, mock, done := newAuthHandler(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs(sqlmock.AnyArg(), "Ana", "ana@example.com", sqlmock.AnyArg(), "600111222", "Madrid").
		WillReturnResult(sqlmock.NewResult(5, 1))

	body := `{"name":"Ana","email":"Ana@Example.com","password":"secret-pass","phone":"600111222","location":"Madrid"}`
	c, rec := asUser(0, http.MethodPost, "/api/auth/register", body)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
	assert.Contains(t, rec.Body.String(), `"ref":"USR-`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterValidation(t *testing.T) {
	h, _, done := newAuthHandler(t)
	defer done()

	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"email":"a@b.com","password":"secret-pass"}`},
		{"missing email", `{"name":"Ana","password":"secret-pass"}`},
		{"bad email", `{"name":"Ana","email":"nope","password":"secret-pass"}`},
		{"short password", `{"name":"Ana","email":"a@b.com","password":"short"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := asUser(0, http.MethodPost, "/api/auth/register", tc.body)
			require.NoError(t, h.Register(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, mock, done := newAuthHandler(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errDuplicateKey)

	body := `{"name":"Ana","email":"ana@example.com","password":"secret-pass"}`
	c, rec := asUser(0, http.MethodPost, "/api/auth/register", body)
	require.NoError(t, h.Register(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "email already registered")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginSuccess(t *testing.T) {
	h, mock, done := newAuthHandler(t)
	defer done()

	hash, err := utils.HashPassword("secret-pass", 4)
	require.NoError(t, err)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(5, "USR-ABCD1234", "Ana", "ana@example.com", hash, "", "", 0.0, 0, true, now, now))

	body := `{"email":"ana@example.com","password":"secret-pass"}`
	c, rec := asUser(0, http.MethodPost, "/api/auth/login", body)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	h, mock, done := newAuthHandler(t)
	defer done()

	hash, err := utils.HashPassword("secret-pass", 4)
	require.NoError(t, err)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("ana@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(5, "USR-ABCD1234", "Ana", "ana@example.com", hash, "", "", 0.0, 0, true, now, now))

	body := `{"email":"ana@example.com","password":"not-it"}`
	c, rec := asUser(0, http.MethodPost, "/api/auth/login", body)
	require.NoError(t, h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}

func TestLoginUnknownEmail(t *testing.T) {
	h, mock, done := newAuthHandler(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE email=?")).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	body := `{"email":"nobody@example.com","password":"whatever1"}`
	c, rec := asUser(0, http.MethodPost, "/api/auth/login", body)
	require.NoError(t, h.Login(c))

	// Same message as a wrong password: the endpoint does not reveal
	// which accounts exist.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid credentials")
}
