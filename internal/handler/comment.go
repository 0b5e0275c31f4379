package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/repository"
)

// CommentHandler serves public notes on product listings.
type CommentHandler struct {
	Comments *repository.CommentRepo
	Products *repository.ProductRepo
}

func NewCommentHandler(comments *repository.CommentRepo, products *repository.ProductRepo) *CommentHandler {
	if comments == nil || products == nil {
		panic("nil repository passed to NewCommentHandler")
	}
	return &CommentHandler{Comments: comments, Products: products}
}

// ListByProduct handles GET /api/products/:id/comments. Public.
func (h *CommentHandler) ListByProduct(c echo.Context) error {
	productID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	comments, err := h.Comments.ListByProduct(c.Request().Context(), productID)
	if err != nil {
		c.Logger().Errorf("comment: list for product %d: %v", productID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]echo.Map, 0, len(comments))
	for i := range comments {
		out = append(out, commentJSON(&comments[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": out, "count": len(out)})
}

// Create handles POST /api/products/:id/comments.
func (h *CommentHandler) Create(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	productID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Body = strings.TrimSpace(body.Body)
	if body.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body is required"})
	}

	ctx := c.Request().Context()
	p, err := h.Products.GetByID(ctx, productID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		c.Logger().Errorf("comment: product lookup %d: %v", productID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if p.SaleState == model.SaleRemoved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	id, err := h.Comments.Create(ctx, productID, userID, body.Body)
	if err != nil {
		c.Logger().Errorf("comment: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusCreated, echo.Map{"id": id, "product_id": productID})
}

// Update handles PUT /api/comments/:id. Authors only; the edited flag is
// set so readers can tell the comment changed after posting.
func (h *CommentHandler) Update(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}
	var body struct {
		Body string `json:"body"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Body = strings.TrimSpace(body.Body)
	if body.Body == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "body is required"})
	}

	ctx := c.Request().Context()
	if _, err := h.Comments.GetByID(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		c.Logger().Errorf("comment: lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Comments.UpdateBody(ctx, id, userID, body.Body); err != nil {
		if err == repository.ErrForbidden {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your comment"})
		}
		c.Logger().Errorf("comment: update %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusOK, echo.Map{"id": id, "edited": true})
}

// Delete handles DELETE /api/comments/:id. Authors only.
func (h *CommentHandler) Delete(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid comment id"})
	}
	ctx := c.Request().Context()
	if _, err := h.Comments.GetByID(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
		}
		c.Logger().Errorf("comment: lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Comments.Delete(ctx, id, userID); err != nil {
		if err == repository.ErrForbidden {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "not your comment"})
		}
		c.Logger().Errorf("comment: delete %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusOK, echo.Map{"id": id, "deleted": true})
}

func commentJSON(m *model.Comment) echo.Map {
	return echo.Map{
		"id":         m.ID,
		"product_id": m.ProductID,
		"user_id":    m.UserID,
		"body":       m.Body,
		"edited":     m.Edited,
		"created_at": m.CreatedAt,
	}
}
