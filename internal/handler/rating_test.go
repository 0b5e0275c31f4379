package handler

import (
	"errors"
	"net/http"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/repository"
)

// errDuplicateKey mimics the driver error for a violated unique key.
var errDuplicateKey = errors.New("Error 1062 (23000): Duplicate entry '7-seller' for key 'ratings.uq_purchase_direction'")

func newRatingHandler(t *testing.T) (*RatingHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewRatingHandler(repository.NewRatingRepo(db), repository.NewPurchaseRepo(db), repository.NewUserRepo(db))
	return h, mock, func() { db.Close() }
}

func TestRatingCreateBuyerRatesSeller(t *testing.T) {
	h, mock, done := newRatingHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseConfirmed))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ratings")).
		WithArgs(sqlmock.AnyArg(), uint64(7), uint64(1), uint64(2), model.DirectionSeller, uint8(5), "todo perfecto").
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET seller_rating_id=?")).
		WithArgs(uint64(11), uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).
		WithArgs(uint64(2), uint64(2), uint64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	body := `{"purchase_id":7,"rated_user_id":2,"direction":"seller","score":5,"comment":"todo perfecto"}`
	c, rec := asUser(1, http.MethodPost, "/api/ratings", body)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"purchase_display_state":"rated_by_buyer"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingCreateRequiresConfirmedPurchase(t *testing.T) {
	h, mock, done := newRatingHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseProcessing))
	mock.ExpectRollback()

	body := `{"purchase_id":7,"rated_user_id":2,"direction":"seller","score":4}`
	c, rec := asUser(1, http.MethodPost, "/api/ratings", body)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingCreateDuplicateDirection(t *testing.T) {
	h, mock, done := newRatingHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseConfirmed))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ratings")).
		WillReturnError(errDuplicateKey)
	mock.ExpectRollback()

	body := `{"purchase_id":7,"rated_user_id":2,"direction":"seller","score":3}`
	c, rec := asUser(1, http.MethodPost, "/api/ratings", body)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already rated")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingCreateOutsiderForbidden(t *testing.T) {
	h, mock, done := newRatingHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseConfirmed))
	mock.ExpectRollback()

	body := `{"purchase_id":7,"rated_user_id":2,"direction":"seller","score":5}`
	c, rec := asUser(3, http.MethodPost, "/api/ratings", body)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingCreateDirectionMismatch(t *testing.T) {
	h, mock, done := newRatingHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseConfirmed))
	mock.ExpectRollback()

	// The buyer claims the "buyer" direction, i.e. tries to rate
	// themselves as if they were the seller.
	body := `{"purchase_id":7,"rated_user_id":1,"direction":"buyer","score":5}`
	c, rec := asUser(1, http.MethodPost, "/api/ratings", body)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRatingCreateValidation(t *testing.T) {
	h, _, done := newRatingHandler(t)
	defer done()

	cases := []struct {
		name string
		body string
	}{
		{"score too high", `{"purchase_id":7,"rated_user_id":2,"direction":"seller","score":6}`},
		{"score zero", `{"purchase_id":7,"rated_user_id":2,"direction":"seller","score":0}`},
		{"bad direction", `{"purchase_id":7,"rated_user_id":2,"direction":"owner","score":3}`},
		{"self rating", `{"purchase_id":7,"rated_user_id":1,"direction":"seller","score":3}`},
		{"missing purchase", `{"rated_user_id":2,"direction":"seller","score":3}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := asUser(1, http.MethodPost, "/api/ratings", tc.body)
			require.NoError(t, h.Create(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
