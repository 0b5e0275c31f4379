package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/repository"
)

// CategoryHandler serves the category catalog.
type CategoryHandler struct {
	Categories *repository.CategoryRepo
}

func NewCategoryHandler(categories *repository.CategoryRepo) *CategoryHandler {
	if categories == nil {
		panic("nil repository passed to NewCategoryHandler")
	}
	return &CategoryHandler{Categories: categories}
}

// List handles GET /api/categories. Public.
func (h *CategoryHandler) List(c echo.Context) error {
	cats, err := h.Categories.List(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("category: list: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"categories": cats})
}

// Create handles POST /api/categories. Any authenticated user may add a
// category; names are unique.
func (h *CategoryHandler) Create(c echo.Context) error {
	if _, err := currentUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	id, err := h.Categories.Create(c.Request().Context(), body.Name, body.Description)
	if err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "category already exists"})
		}
		c.Logger().Errorf("category: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusCreated, echo.Map{"id": id, "name": body.Name})
}
