package handler

import (
	"context"
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

	"github.com/davidromero/mercadillo/internal/middleware"
	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/queue"
	"github.com/davidromero/mercadillo/internal/repository"
)

var productCols = []string{"id", "ref", "owner_id", "category_id", "name", "description",
	"price_cents", "item_condition", "age_months", "location", "sale_state", "created_at", "updated_at"}

var purchaseCols = []string{"id", "ref", "buyer_id", "seller_id", "product_id", "amount_cents",
	"state", "buyer_rating_id", "seller_rating_id", "created_at", "updated_at"}

func productRow(id, ownerID uint64, priceCents uint32, saleState string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(productCols).
		AddRow(id, "PRD-AAAA1111", ownerID, 1, "Bicicleta", "una bici", priceCents,
			model.ConditionSecondHand, 12, "Madrid", saleState, now, now)
}

func purchaseRow(id, buyerID, sellerID, productID uint64, state string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(purchaseCols).
		AddRow(id, "CMP-BBBB2222", buyerID, sellerID, productID, 1500, state, nil, nil, now, now)
}

// asUser builds an authenticated echo context the way the identity gate
// would leave it.
func asUser(userID uint64, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(middleware.CtxUserID, userID)
	return c, rec
}

func newPurchaseHandler(t *testing.T) (*PurchaseHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	h := NewPurchaseHandler(repository.NewPurchaseRepo(db), repository.NewProductRepo(db), nil)
	return h, mock, func() { db.Close() }
}

func TestPurchaseCreateSnapshotsSellerAndAmount(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id=?")).
		WithArgs(uint64(42)).
		WillReturnRows(productRow(42, 2, 1500, model.SaleAvailable))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
		WithArgs(sqlmock.AnyArg(), uint64(1), uint64(2), uint64(42), uint32(1500)).
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectCommit()

	c, rec := asUser(1, http.MethodPost, "/api/purchases", `{"product_id":42}`)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"pending"`)
	assert.Contains(t, rec.Body.String(), `"seller_id":2`)
	assert.Contains(t, rec.Body.String(), `"amount_cents":1500`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseCreateOwnProduct(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id=?")).
		WithArgs(uint64(42)).
		WillReturnRows(productRow(42, 1, 1500, model.SaleAvailable))
	mock.ExpectRollback()

	c, rec := asUser(1, http.MethodPost, "/api/purchases", `{"product_id":42}`)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseCreateUnavailableProduct(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id=?")).
		WithArgs(uint64(42)).
		WillReturnRows(productRow(42, 2, 1500, model.SaleSold))
	mock.ExpectRollback()

	c, rec := asUser(1, http.MethodPost, "/api/purchases", `{"product_id":42}`)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseCreateUnknownProduct(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id=?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(productCols))
	mock.ExpectRollback()

	c, rec := asUser(1, http.MethodPost, "/api/purchases", `{"product_id":42}`)
	require.NoError(t, h.Create(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseConfirmSellerOnly(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchasePending))
	mock.ExpectRollback()

	// The buyer tries to confirm their own purchase.
	c, rec := asUser(1, http.MethodPost, "/api/purchases/7/confirm", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Confirm(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseConfirmTerminalState(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseConfirmed))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET state=?")).
		WithArgs(model.PurchaseConfirmed, uint64(7), model.PurchasePending, model.PurchaseProcessing).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	c, rec := asUser(2, http.MethodPost, "/api/purchases/7/confirm", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Confirm(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseConfirmPublishesEvent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	published := make(chan queue.PurchaseConfirmedEvent, 1)
	h := NewPurchaseHandler(repository.NewPurchaseRepo(db), repository.NewProductRepo(db),
		func(ctx context.Context, ev queue.PurchaseConfirmedEvent) error {
			published <- ev
			return nil
		})

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseProcessing))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET state=?")).
		WithArgs(model.PurchaseConfirmed, uint64(7), model.PurchasePending, model.PurchaseProcessing).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE products SET sale_state=?")).
		WithArgs(model.SaleSold, uint64(42), model.SaleAvailable, model.SaleReserved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("FROM products WHERE id=?")).
		WithArgs(uint64(42)).
		WillReturnRows(productRow(42, 2, 1500, model.SaleSold))
	mock.ExpectCommit()

	c, rec := asUser(2, http.MethodPost, "/api/purchases/7/confirm", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Confirm(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"confirmed"`)

	select {
	case ev := <-published:
		assert.Equal(t, uint64(7), ev.PurchaseID)
		assert.Equal(t, uint64(1), ev.BuyerID)
		assert.Equal(t, uint64(2), ev.SellerID)
		assert.Equal(t, "Bicicleta", ev.ProductName)
		assert.NotEmpty(t, ev.EventID)
	case <-time.After(2 * time.Second):
		t.Fatal("confirmed event was not published")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseCancelBuyerFromPending(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchasePending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET state=?")).
		WithArgs(model.PurchaseCancelled, uint64(7), model.PurchasePending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := asUser(1, http.MethodPost, "/api/purchases/7/cancel", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Cancel(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"cancelled"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two buyers open purchases on the same product and the seller processes
// the other one, reserving the product. When this buyer cancels their
// still-pending purchase the product row must stay untouched: the
// reservation belongs to the other sale. The mock's ordered expectations
// hold no product UPDATE, so issuing one fails the test.
func TestPurchaseCancelKeepsConcurrentReservation(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(8)).
		WillReturnRows(purchaseRow(8, 3, 2, 42, model.PurchasePending))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE purchases SET state=?")).
		WithArgs(model.PurchaseCancelled, uint64(8), model.PurchasePending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := asUser(3, http.MethodPost, "/api/purchases/8/cancel", "")
	c.SetParamNames("id")
	c.SetParamValues("8")
	require.NoError(t, h.Cancel(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"cancelled"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseCancelSellerForbidden(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchasePending))
	mock.ExpectRollback()

	c, rec := asUser(2, http.MethodPost, "/api/purchases/7/cancel", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Cancel(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseGetPartiesOnly(t *testing.T) {
	h, mock, done := newPurchaseHandler(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases WHERE id=?")).
		WithArgs(uint64(7)).
		WillReturnRows(purchaseRow(7, 1, 2, 42, model.PurchaseConfirmed))

	c, rec := asUser(3, http.MethodGet, "/api/purchases/7", "")
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Get(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseListRejectsUnknownRole(t *testing.T) {
	h, _, done := newPurchaseHandler(t)
	defer done()

	c, rec := asUser(1, http.MethodGet, "/api/purchases?role=stolen", "")
	require.NoError(t, h.List(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
