package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/repository"
)

// ProductHandler serves listing management and the public catalog.
type ProductHandler struct {
	Products   *repository.ProductRepo
	Categories *repository.CategoryRepo
	Tags       *repository.TagRepo
}

// NewProductHandler constructs a ProductHandler. All dependencies must be
// non-nil.
func NewProductHandler(products *repository.ProductRepo, categories *repository.CategoryRepo, tags *repository.TagRepo) *ProductHandler {
	if products == nil || categories == nil || tags == nil {
		panic("nil repository passed to NewProductHandler")
	}
	return &ProductHandler{Products: products, Categories: categories, Tags: tags}
}

type productBody struct {
	CategoryID  uint64   `json:"category_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  uint32   `json:"price_cents"`
	Condition   string   `json:"condition"`
	AgeMonths   uint32   `json:"age_months"`
	Location    string   `json:"location"`
	TagIDs      []uint64 `json:"tag_ids"`
}

func (b *productBody) validate() string {
	b.Name = strings.TrimSpace(b.Name)
	switch {
	case b.Name == "":
		return "name is required"
	case b.CategoryID == 0:
		return "category_id is required"
	case b.PriceCents == 0:
		return "price_cents must be greater than zero"
	case b.Condition != model.ConditionNew && b.Condition != model.ConditionSecondHand:
		return "condition must be new or second_hand"
	case len(b.TagIDs) > model.MaxProductTags:
		return "a product carries at most " + strconv.Itoa(model.MaxProductTags) + " tags"
	}
	return ""
}

// Create handles POST /api/products. The listing starts in the available
// state; price must be strictly positive and the category must exist.
func (h *ProductHandler) Create(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body productBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := body.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx := c.Request().Context()
	if _, err := h.Categories.GetByID(ctx, body.CategoryID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
		}
		c.Logger().Errorf("product: category lookup: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if len(body.TagIDs) > 0 {
		ok, err := h.Tags.Exist(ctx, body.TagIDs)
		if err != nil {
			c.Logger().Errorf("product: tag lookup: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown tag"})
		}
	}

	p := model.Product{
		OwnerID:     userID,
		CategoryID:  body.CategoryID,
		Name:        body.Name,
		Description: body.Description,
		PriceCents:  body.PriceCents,
		Condition:   body.Condition,
		AgeMonths:   body.AgeMonths,
		Location:    body.Location,
	}
	if err := h.Products.Create(ctx, &p); err != nil {
		c.Logger().Errorf("product: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if len(body.TagIDs) > 0 {
		if err := h.Products.SetTags(ctx, p.ID, body.TagIDs); err != nil {
			c.Logger().Errorf("product: set tags %d: %v", p.ID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}
	return respond(c, http.StatusCreated, echo.Map{
		"id":         p.ID,
		"ref":        p.Ref,
		"sale_state": p.SaleState,
	})
}

// Get handles GET /api/products/:id. Public; removed listings are hidden.
func (h *ProductHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx := c.Request().Context()
	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		c.Logger().Errorf("product: get %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if p.SaleState == model.SaleRemoved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	tags, err := h.Products.TagsFor(ctx, id)
	if err != nil {
		c.Logger().Errorf("product: tags %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := productJSON(&p)
	out["tags"] = tags
	return c.JSON(http.StatusOK, out)
}

// List handles GET /api/products. Public catalog of available listings
// with optional filters: category, tag, name substring, price range,
// location, offset/limit pagination.
func (h *ProductHandler) List(c echo.Context) error {
	f := repository.ProductFilter{
		Name:     c.QueryParam("name"),
		Location: c.QueryParam("location"),
	}
	f.CategoryID, _ = strconv.ParseUint(c.QueryParam("category_id"), 10, 64)
	f.TagID, _ = strconv.ParseUint(c.QueryParam("tag_id"), 10, 64)
	if v, err := strconv.ParseUint(c.QueryParam("price_min"), 10, 32); err == nil {
		f.PriceMinCents = uint32(v)
	}
	if v, err := strconv.ParseUint(c.QueryParam("price_max"), 10, 32); err == nil {
		f.PriceMaxCents = uint32(v)
	}
	f.Offset, _ = strconv.Atoi(c.QueryParam("offset"))
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	products, total, err := h.Products.List(c.Request().Context(), f)
	if err != nil {
		c.Logger().Errorf("product: list: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]echo.Map, 0, len(products))
	for i := range products {
		out = append(out, productJSON(&products[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"products": out, "total": total})
}

// Update handles PUT /api/products/:id. Owner only. The sale state is not
// an editable field: it belongs to the purchase workflow and MarkRemoved.
func (h *ProductHandler) Update(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	var body productBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := body.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx := c.Request().Context()
	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		c.Logger().Errorf("product: update lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if p.OwnerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your product"})
	}
	if p.SaleState == model.SaleReserved || p.SaleState == model.SaleSold {
		return c.JSON(http.StatusConflict, echo.Map{"error": "product is part of a purchase"})
	}
	// A pending purchase does not change sale_state, so check the
	// purchase side too before letting the listing change under a buyer.
	open, err := h.Products.HasOpenPurchases(ctx, id)
	if err != nil {
		c.Logger().Errorf("product: open purchase check %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if open {
		return c.JSON(http.StatusConflict, echo.Map{"error": "product is part of a purchase"})
	}
	if _, err := h.Categories.GetByID(ctx, body.CategoryID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown category"})
		}
		c.Logger().Errorf("product: category lookup: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	p.CategoryID = body.CategoryID
	p.Name = body.Name
	p.Description = body.Description
	p.PriceCents = body.PriceCents
	p.Condition = body.Condition
	p.AgeMonths = body.AgeMonths
	p.Location = body.Location
	if err := h.Products.Update(ctx, &p); err != nil {
		c.Logger().Errorf("product: update %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if body.TagIDs != nil {
		ok, err := h.Tags.Exist(ctx, body.TagIDs)
		if err != nil {
			c.Logger().Errorf("product: tag lookup: %v", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		if !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown tag"})
		}
		if err := h.Products.SetTags(ctx, id, body.TagIDs); err != nil {
			c.Logger().Errorf("product: set tags %d: %v", id, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
	}
	return respond(c, http.StatusOK, productJSON(&p))
}

// Delete handles DELETE /api/products/:id. Soft removal: the listing moves
// to the removed state and disappears from the catalog. A reserved or sold
// product belongs to a live purchase and stays.
func (h *ProductHandler) Delete(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}

	ctx := c.Request().Context()
	p, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		c.Logger().Errorf("product: delete lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if p.OwnerID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your product"})
	}
	if err := h.Products.MarkRemoved(ctx, id); err != nil {
		if err == repository.ErrInvalidState {
			return c.JSON(http.StatusConflict, echo.Map{"error": "product is part of a purchase"})
		}
		c.Logger().Errorf("product: remove %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusOK, echo.Map{"id": id, "sale_state": model.SaleRemoved})
}

func productJSON(p *model.Product) echo.Map {
	return echo.Map{
		"id":          p.ID,
		"ref":         p.Ref,
		"owner_id":    p.OwnerID,
		"category_id": p.CategoryID,
		"name":        p.Name,
		"description": p.Description,
		"price_cents": p.PriceCents,
		"condition":   p.Condition,
		"age_months":  p.AgeMonths,
		"location":    p.Location,
		"sale_state":  p.SaleState,
		"created_at":  p.CreatedAt,
	}
}
