package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/repository"
)

// TagHandler serves free-form listing tags.
type TagHandler struct {
	Tags *repository.TagRepo
}

func NewTagHandler(tags *repository.TagRepo) *TagHandler {
	if tags == nil {
		panic("nil repository passed to NewTagHandler")
	}
	return &TagHandler{Tags: tags}
}

// List handles GET /api/tags. Public.
func (h *TagHandler) List(c echo.Context) error {
	tags, err := h.Tags.List(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("tag: list: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tags": tags})
}

// Create handles POST /api/tags.
func (h *TagHandler) Create(c echo.Context) error {
	if _, err := currentUserID(c); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Name = strings.ToLower(strings.TrimSpace(body.Name))
	if body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	id, err := h.Tags.Create(c.Request().Context(), body.Name)
	if err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "tag already exists"})
		}
		c.Logger().Errorf("tag: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusCreated, echo.Map{"id": id, "name": body.Name})
}
