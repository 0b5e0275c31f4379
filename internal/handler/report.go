package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/repository"
)

// ReportHandler serves moderation flags against products, users and
// comments. Reports only accumulate here; review happens out of band.
type ReportHandler struct {
	Reports  *repository.ReportRepo
	Products *repository.ProductRepo
	Users    *repository.UserRepo
	Comments *repository.CommentRepo
}

func NewReportHandler(reports *repository.ReportRepo, products *repository.ProductRepo,
	users *repository.UserRepo, comments *repository.CommentRepo) *ReportHandler {
	if reports == nil || products == nil || users == nil || comments == nil {
		panic("nil repository passed to NewReportHandler")
	}
	return &ReportHandler{Reports: reports, Products: products, Users: users, Comments: comments}
}

// Create handles POST /api/reports. kind selects the target; exactly the
// matching target id must be present and must exist.
func (h *ReportHandler) Create(c echo.Context) error {
	reporterID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		Kind      string `json:"kind"`
		ProductID uint64 `json:"product_id"`
		UserID    uint64 `json:"user_id"`
		CommentID uint64 `json:"comment_id"`
		Reason    string `json:"reason"`
		Detail    string `json:"detail"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Reason = strings.TrimSpace(body.Reason)
	if body.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}

	ctx := c.Request().Context()
	rep := model.Report{
		ReporterID: reporterID,
		Kind:       body.Kind,
		Reason:     body.Reason,
		Detail:     body.Detail,
		Status:     model.ReportOpen,
	}
	switch body.Kind {
	case model.ReportProduct:
		if body.ProductID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_id is required"})
		}
		if _, err := h.Products.GetByID(ctx, body.ProductID); err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
			}
			c.Logger().Errorf("report: product lookup %d: %v", body.ProductID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		rep.ProductID = &body.ProductID
	case model.ReportUser:
		if body.UserID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id is required"})
		}
		if body.UserID == reporterID {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot report yourself"})
		}
		if _, err := h.Users.GetByID(ctx, body.UserID); err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
			}
			c.Logger().Errorf("report: user lookup %d: %v", body.UserID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		rep.UserID = &body.UserID
	case model.ReportComment:
		if body.CommentID == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "comment_id is required"})
		}
		if _, err := h.Comments.GetByID(ctx, body.CommentID); err != nil {
			if err == repository.ErrNotFound {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "comment not found"})
			}
			c.Logger().Errorf("report: comment lookup %d: %v", body.CommentID, err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
		}
		rep.CommentID = &body.CommentID
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "kind must be product, user or comment"})
	}

	id, err := h.Reports.Create(ctx, &rep)
	if err != nil {
		c.Logger().Errorf("report: create: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusCreated, echo.Map{"id": id, "status": rep.Status})
}

// ListMine handles GET /api/reports. The reports the caller has filed.
func (h *ReportHandler) ListMine(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reports, err := h.Reports.ListByReporter(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("report: list for %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]echo.Map, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		m := echo.Map{
			"id":         r.ID,
			"kind":       r.Kind,
			"reason":     r.Reason,
			"detail":     r.Detail,
			"status":     r.Status,
			"created_at": r.CreatedAt,
		}
		if r.ProductID != nil {
			m["product_id"] = *r.ProductID
		}
		if r.UserID != nil {
			m["user_id"] = *r.UserID
		}
		if r.CommentID != nil {
			m["comment_id"] = *r.CommentID
		}
		out = append(out, m)
	}
	return respond(c, http.StatusOK, echo.Map{"reports": out, "count": len(out)})
}
