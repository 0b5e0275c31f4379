package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/queue"
	"github.com/davidromero/mercadillo/internal/repository"
)

// PurchaseHandler drives the purchase lifecycle:
//
//	pending → processing → confirmed
//	pending → cancelled
//
// Confirmed and cancelled are terminal. Each transition runs inside a
// transaction that also moves the product's sale state when the step calls
// for one, with compare-and-swap guards on both rows so concurrent
// requests on the same purchase or product resolve to exactly one winner;
// losers get 409.
//
// Publish is called after a successful confirm commit to emit the
// purchase.confirmed event. It may be nil (events disabled) and its error
// is logged, never surfaced: the purchase is confirmed the moment the
// transaction commits, broker or not.
type PurchaseHandler struct {
	Purchases *repository.PurchaseRepo
	Products  *repository.ProductRepo
	Publish   func(ctx context.Context, ev queue.PurchaseConfirmedEvent) error
}

// NewPurchaseHandler constructs a PurchaseHandler. Repositories must be
// non-nil; publish may be nil.
func NewPurchaseHandler(purchases *repository.PurchaseRepo, products *repository.ProductRepo,
	publish func(ctx context.Context, ev queue.PurchaseConfirmedEvent) error) *PurchaseHandler {
	if purchases == nil || products == nil {
		panic("nil repository passed to NewPurchaseHandler")
	}
	return &PurchaseHandler{Purchases: purchases, Products: products, Publish: publish}
}

// Create handles POST /api/purchases. The buyer opens a purchase on an
// available product they do not own. The seller and the amount are
// snapshotted from the product at this instant; a later price edit does
// not change the purchase. The product itself is untouched until the
// seller starts processing.
func (h *PurchaseHandler) Create(c echo.Context) error {
	buyerID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		ProductID uint64 `json:"product_id"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ProductID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_id is required"})
	}

	ctx := c.Request().Context()
	tx, err := h.Purchases.DB().BeginTx(ctx, nil)
	if err != nil {
		c.Logger().Errorf("purchase: begin tx: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	p, err := h.Products.GetByIDTx(ctx, tx, body.ProductID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		c.Logger().Errorf("purchase: product lookup %d: %v", body.ProductID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if p.OwnerID == buyerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "cannot buy your own product"})
	}
	if p.SaleState != model.SaleAvailable {
		return c.JSON(http.StatusConflict, echo.Map{"error": "product is not available"})
	}

	pur := model.Purchase{
		BuyerID:     buyerID,
		SellerID:    p.OwnerID,
		ProductID:   p.ID,
		AmountCents: p.PriceCents,
	}
	if err := h.Purchases.CreateTx(ctx, tx, &pur); err != nil {
		c.Logger().Errorf("purchase: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := tx.Commit(); err != nil {
		c.Logger().Errorf("purchase: commit: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed = true

	return respond(c, http.StatusCreated, echo.Map{
		"id":           pur.ID,
		"ref":          pur.Ref,
		"product_id":   pur.ProductID,
		"seller_id":    pur.SellerID,
		"amount_cents": pur.AmountCents,
		"state":        pur.State,
	})
}

// Process handles POST /api/purchases/:id/process. The seller accepts the
// purchase: it moves pending → processing and the product is reserved.
func (h *PurchaseHandler) Process(c echo.Context) error {
	return h.transition(c, transition{
		actor:        actorSeller,
		purchaseFrom: []string{model.PurchasePending},
		purchaseTo:   model.PurchaseProcessing,
		productFrom:  []string{model.SaleAvailable},
		productTo:    model.SaleReserved,
	})
}

// Confirm handles POST /api/purchases/:id/confirm. Seller only. The sale
// closes: purchase → confirmed, product → sold, and the
// purchase.confirmed event goes out inviting both parties to rate each
// other. Confirming works from pending directly as well as from
// processing; confirming an already-terminal purchase is a 409.
func (h *PurchaseHandler) Confirm(c echo.Context) error {
	return h.transition(c, transition{
		actor:        actorSeller,
		purchaseFrom: []string{model.PurchasePending, model.PurchaseProcessing},
		purchaseTo:   model.PurchaseConfirmed,
		productFrom:  []string{model.SaleAvailable, model.SaleReserved},
		productTo:    model.SaleSold,
		confirmed:    true,
	})
}

// Cancel handles POST /api/purchases/:id/cancel. Buyer only, and only
// while the purchase is still pending; once the seller is processing it
// the product is reserved for this sale and the buyer is committed. A
// pending purchase holds no reservation, so the product row is left
// alone: any reserved state on it belongs to a different purchase.
func (h *PurchaseHandler) Cancel(c echo.Context) error {
	return h.transition(c, transition{
		actor:        actorBuyer,
		purchaseFrom: []string{model.PurchasePending},
		purchaseTo:   model.PurchaseCancelled,
	})
}

const (
	actorBuyer  = "buyer"
	actorSeller = "seller"
)

// transition describes one lifecycle move: who may perform it, the CAS
// guard on the purchase, and the matching product sale-state change. A
// move with an empty productTo leaves the product row untouched.
type transition struct {
	actor        string
	purchaseFrom []string
	purchaseTo   string
	productFrom  []string
	productTo    string
	confirmed    bool
}

func (h *PurchaseHandler) transition(c echo.Context, t transition) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid purchase id"})
	}

	ctx := c.Request().Context()
	tx, err := h.Purchases.DB().BeginTx(ctx, nil)
	if err != nil {
		c.Logger().Errorf("purchase: begin tx: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	pur, err := h.Purchases.GetByIDTx(ctx, tx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
		}
		c.Logger().Errorf("purchase: lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	switch t.actor {
	case actorSeller:
		if pur.SellerID != userID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only the seller may do this"})
		}
	case actorBuyer:
		if pur.BuyerID != userID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "only the buyer may do this"})
		}
	}

	if err := h.Purchases.CASStateTx(ctx, tx, id, t.purchaseFrom, t.purchaseTo); err != nil {
		if err == repository.ErrInvalidState {
			return c.JSON(http.StatusConflict, echo.Map{"error": "purchase is not in a valid state for this action"})
		}
		c.Logger().Errorf("purchase: transition %d to %s: %v", id, t.purchaseTo, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if t.productTo != "" {
		if err := h.Products.CASSaleStateTx(ctx, tx, pur.ProductID, t.productFrom, t.productTo); err != nil {
			if err == repository.ErrInvalidState {
				return c.JSON(http.StatusConflict, echo.Map{"error": "product is not in a valid state for this action"})
			}
			c.Logger().Errorf("purchase: product transition %d to %s: %v", pur.ProductID, t.productTo, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}

	var productName string
	if t.confirmed {
		if p, err := h.Products.GetByIDTx(ctx, tx, pur.ProductID); err == nil {
			productName = p.Name
		}
	}

	if err := tx.Commit(); err != nil {
		c.Logger().Errorf("purchase: commit: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed = true
	pur.State = t.purchaseTo

	if t.confirmed && h.Publish != nil {
		// Fire-and-forget: the publisher logs its own failures and the
		// sale is already committed.
		ev := queue.NewPurchaseConfirmedEvent(&pur, productName)
		go func() {
			pctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = h.Publish(pctx, ev)
		}()
	}

	return respond(c, http.StatusOK, echo.Map{
		"id":            pur.ID,
		"ref":           pur.Ref,
		"state":         pur.State,
		"display_state": pur.DisplayState(),
	})
}

// Get handles GET /api/purchases/:id. Only the two parties may see a
// purchase.
func (h *PurchaseHandler) Get(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid purchase id"})
	}
	pur, err := h.Purchases.GetByID(c.Request().Context(), id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
		}
		c.Logger().Errorf("purchase: get %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !pur.IsParty(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your purchase"})
	}
	return respond(c, http.StatusOK, purchaseJSON(&pur))
}

// List handles GET /api/purchases. The caller's purchases; ?role=bought
// or ?role=sold narrows to one side.
func (h *PurchaseHandler) List(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role := c.QueryParam("role")
	switch role {
	case "", "bought", "sold":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "role must be bought or sold"})
	}
	purchases, err := h.Purchases.ListByUser(c.Request().Context(), userID, role)
	if err != nil {
		c.Logger().Errorf("purchase: list for %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]echo.Map, 0, len(purchases))
	for i := range purchases {
		out = append(out, purchaseJSON(&purchases[i]))
	}
	return respond(c, http.StatusOK, echo.Map{"purchases": out, "count": len(out)})
}

func purchaseJSON(p *model.Purchase) echo.Map {
	return echo.Map{
		"id":            p.ID,
		"ref":           p.Ref,
		"buyer_id":      p.BuyerID,
		"seller_id":     p.SellerID,
		"product_id":    p.ProductID,
		"amount_cents":  p.AmountCents,
		"state":         p.State,
		"display_state": p.DisplayState(),
		"created_at":    p.CreatedAt,
	}
}
