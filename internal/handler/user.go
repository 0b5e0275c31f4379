package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/repository"
)

// UserHandler serves the caller's own profile and the public view of any
// account, including the derived reputation fields maintained by the
// rating flow.
type UserHandler struct {
	Users   *repository.UserRepo
	Ratings *repository.RatingRepo
}

// NewUserHandler constructs a UserHandler. Both repositories must be
// non-nil.
func NewUserHandler(users *repository.UserRepo, ratings *repository.RatingRepo) *UserHandler {
	if users == nil || ratings == nil {
		panic("nil repository passed to NewUserHandler")
	}
	return &UserHandler{Users: users, Ratings: ratings}
}

// Profile handles GET /api/profile. Private view: includes email and phone.
func (h *UserHandler) Profile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	u, err := h.Users.GetByID(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("user: profile %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusOK, echo.Map{
		"id":             u.ID,
		"ref":            u.Ref,
		"name":           u.Name,
		"email":          u.Email,
		"phone":          u.Phone,
		"location":       u.Location,
		"average_rating": u.AverageRating,
		"rating_count":   u.RatingCount,
		"created_at":     u.CreatedAt,
	})
}

// UpdateProfile handles PUT /api/profile. Only the fields present in the
// body are written; absent fields keep their value. Password changes are
// not part of the profile surface.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Name     *string `json:"name"`
		Email    *string `json:"email"`
		Phone    *string `json:"phone"`
		Location *string `json:"location"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name != nil && strings.TrimSpace(*body.Name) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name cannot be empty"})
	}
	if body.Email != nil && !strings.Contains(*body.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
	}

	ctx := c.Request().Context()
	if err := h.Users.UpdateProfile(ctx, userID, body.Name, body.Email, body.Phone, body.Location); err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		c.Logger().Errorf("user: update profile %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		c.Logger().Errorf("user: reload profile %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusOK, echo.Map{
		"id":       u.ID,
		"name":     u.Name,
		"email":    u.Email,
		"phone":    u.Phone,
		"location": u.Location,
	})
}

// PublicProfile handles GET /api/users/:id. Public view of any account:
// reputation, activity counters and seniority, but no contact details.
func (h *UserHandler) PublicProfile(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx := c.Request().Context()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		c.Logger().Errorf("user: public profile %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	stats, err := h.Users.Stats(ctx, id)
	if err != nil {
		c.Logger().Errorf("user: stats %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":                u.ID,
		"ref":               u.Ref,
		"name":              u.Name,
		"location":          u.Location,
		"average_rating":    u.AverageRating,
		"rating_count":      u.RatingCount,
		"products_for_sale": stats.ProductsForSale,
		"products_sold":     stats.ProductsSold,
		"products_bought":   stats.ProductsBought,
		"member_for_days":   u.AgeDays(time.Now().UTC()),
	})
}

// RatingsReceived handles GET /api/users/:id/ratings. Public: the ratings
// a user has received, newest first.
func (h *UserHandler) RatingsReceived(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		c.Logger().Errorf("user: ratings lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	ratings, err := h.Ratings.ListReceived(ctx, id)
	if err != nil {
		c.Logger().Errorf("user: list ratings %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]echo.Map, 0, len(ratings))
	for i := range ratings {
		out = append(out, ratingJSON(&ratings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"ratings": out, "count": len(out)})
}

func ratingJSON(v *model.Rating) echo.Map {
	return echo.Map{
		"id":          v.ID,
		"ref":         v.Ref,
		"purchase_id": v.PurchaseID,
		"rater_id":    v.RaterID,
		"rated_id":    v.RatedID,
		"direction":   v.Direction,
		"score":       v.Score,
		"comment":     v.Comment,
		"created_at":  v.CreatedAt,
	}
}
