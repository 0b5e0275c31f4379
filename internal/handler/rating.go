package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/repository"
)

// RatingHandler serves rating submission. A rating is one signed score
// tied to a confirmed purchase and a direction (which party is being
// rated). Insertion, the back-fill of the purchase's rating reference and
// the recomputation of the rated user's aggregate all happen in one
// transaction, so the three can never disagree.
type RatingHandler struct {
	Ratings   *repository.RatingRepo
	Purchases *repository.PurchaseRepo
	Users     *repository.UserRepo
}

// NewRatingHandler constructs a RatingHandler. All repositories must be
// non-nil.
func NewRatingHandler(ratings *repository.RatingRepo, purchases *repository.PurchaseRepo, users *repository.UserRepo) *RatingHandler {
	if ratings == nil || purchases == nil || users == nil {
		panic("nil repository passed to NewRatingHandler")
	}
	return &RatingHandler{Ratings: ratings, Purchases: purchases, Users: users}
}

// Create handles POST /api/ratings.
//
// Validation order: shape of the body first (400), then purchase
// existence (404), then entitlement and state (403/409). The direction
// must match the rater's side of the purchase: a buyer rates the seller
// (direction "seller"), a seller rates the buyer (direction "buyer").
// A second rating for the same (purchase, direction) is a 409, enforced
// twice — by the IS NULL guard on the purchase's reference column and by
// the unique key on the ratings table.
func (h *RatingHandler) Create(c echo.Context) error {
	raterID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		PurchaseID  uint64 `json:"purchase_id"`
		RatedUserID uint64 `json:"rated_user_id"`
		Direction   string `json:"direction"`
		Score       uint8  `json:"score"`
		Comment     string `json:"comment"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.PurchaseID == 0 || body.RatedUserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "purchase_id and rated_user_id are required"})
	}
	if !model.ValidScore(body.Score) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "score must be between 1 and 5"})
	}
	if !model.ValidDirection(body.Direction) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "direction must be buyer or seller"})
	}
	if body.RatedUserID == raterID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot rate yourself"})
	}

	ctx := c.Request().Context()
	tx, err := h.Ratings.DB().BeginTx(ctx, nil)
	if err != nil {
		c.Logger().Errorf("rating: begin tx: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	pur, err := h.Purchases.GetByIDTx(ctx, tx, body.PurchaseID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "purchase not found"})
		}
		c.Logger().Errorf("rating: purchase lookup %d: %v", body.PurchaseID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !pur.IsParty(raterID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your purchase"})
	}

	// The direction fixes who must be rating whom on this purchase.
	var wantRater, wantRated uint64
	switch body.Direction {
	case model.DirectionSeller:
		wantRater, wantRated = pur.BuyerID, pur.SellerID
	case model.DirectionBuyer:
		wantRater, wantRated = pur.SellerID, pur.BuyerID
	}
	if raterID != wantRater || body.RatedUserID != wantRated {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "direction does not match your side of the purchase"})
	}
	if pur.State != model.PurchaseConfirmed {
		return c.JSON(http.StatusConflict, echo.Map{"error": "purchase is not confirmed yet"})
	}

	rating := model.Rating{
		PurchaseID: pur.ID,
		RaterID:    raterID,
		RatedID:    body.RatedUserID,
		Direction:  body.Direction,
		Score:      body.Score,
		Comment:    body.Comment,
	}
	if err := h.Ratings.CreateTx(ctx, tx, &rating); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "purchase already rated in this direction"})
		}
		c.Logger().Errorf("rating: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Purchases.SetRatingRefTx(ctx, tx, pur.ID, rating.ID, body.Direction); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "purchase already rated in this direction"})
		}
		c.Logger().Errorf("rating: back-fill purchase %d: %v", pur.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Users.RecomputeRatingStatsTx(ctx, tx, body.RatedUserID); err != nil {
		c.Logger().Errorf("rating: recompute stats %d: %v", body.RatedUserID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := tx.Commit(); err != nil {
		c.Logger().Errorf("rating: commit: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	committed = true

	// Reflect the reference locally for the display label.
	switch body.Direction {
	case model.DirectionSeller:
		pur.SellerRatingID = &rating.ID
	case model.DirectionBuyer:
		pur.BuyerRatingID = &rating.ID
	}
	return respond(c, http.StatusCreated, echo.Map{
		"id":                     rating.ID,
		"ref":                    rating.Ref,
		"purchase_id":            pur.ID,
		"direction":              rating.Direction,
		"score":                  rating.Score,
		"purchase_display_state": pur.DisplayState(),
	})
}
