package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidromero/mercadillo/internal/config"
	"github.com/davidromero/mercadillo/internal/repository"
	"github.com/davidromero/mercadillo/internal/utils"
)

const gateSecret = "gate-test-secret"

func gateConfig() config.Config {
	return config.Config{JWTSecret: gateSecret, TokenTTLHrs: 24}
}

var userCols = []string{"id", "ref", "name", "email", "password_hash", "phone", "location",
	"average_rating", "rating_count", "is_active", "created_at", "updated_at"}

func userRow(id uint64, email string, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(userCols).
		AddRow(id, "USR-ABCD1234", "Ana", email, "$2a$10$hash", "", "", 0.0, 0, active, now, now)
}

// echoNext is the handler behind the gate; it reports what the gate put
// in the context.
func echoNext(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"uid":       c.Get(CtxUserID),
		"new_token": c.Get(CtxNewToken),
	})
}

func runGate(t *testing.T, users *repository.UserRepo, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	err := Authenticate(gateConfig(), users)(echoNext)(c)
	require.NoError(t, err)
	return rec
}

func TestAuthenticateMissingToken(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := runGate(t, repository.NewUserRepo(db), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")
}

func TestAuthenticateExpiredToken(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	tok, err := utils.IssueToken(gateSecret, 5, "ana@example.com", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := runGate(t, repository.NewUserRepo(db), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}

func TestAuthenticateMalformedToken(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rec := runGate(t, repository.NewUserRepo(db), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestAuthenticateResolvesAndRotates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(5)).
		WillReturnRows(userRow(5, "ana@example.com", true))

	tok, err := utils.IssueToken(gateSecret, 5, "ana@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := runGate(t, repository.NewUserRepo(db), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":5`)
	assert.Contains(t, rec.Body.String(), "new_token")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthenticateDeletedAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(userCols)) // no row

	tok, err := utils.IssueToken(gateSecret, 9, "gone@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := runGate(t, repository.NewUserRepo(db), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "account not found")
}

func TestAuthenticateDeactivatedAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(5)).
		WillReturnRows(userRow(5, "ana@example.com", false))

	tok, err := utils.IssueToken(gateSecret, 5, "ana@example.com", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := runGate(t, repository.NewUserRepo(db), req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "account deactivated")
}

func TestAuthenticateBodyTokenFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).
		WithArgs(uint64(5)).
		WillReturnRows(userRow(5, "ana@example.com", true))

	tok, err := utils.IssueToken(gateSecret, 5, "ana@example.com", time.Hour)
	require.NoError(t, err)

	body := `{"token":"` + tok.Token + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := runGate(t, repository.NewUserRepo(db), req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"uid":5`)
}
