package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/model"
	"github.com/davidromero/mercadillo/internal/repository"
)

// ConversationHandler serves private threads between a product owner and
// an interested user. There is at most one thread per (product, interested)
// pair; starting one a second time returns the existing thread.
type ConversationHandler struct {
	Conversations *repository.ConversationRepo
	Products      *repository.ProductRepo
}

func NewConversationHandler(conversations *repository.ConversationRepo, products *repository.ProductRepo) *ConversationHandler {
	if conversations == nil || products == nil {
		panic("nil repository passed to NewConversationHandler")
	}
	return &ConversationHandler{Conversations: conversations, Products: products}
}

// Start handles POST /api/conversations. The caller is the interested
// party; owners cannot open a thread about their own product.
func (h *ConversationHandler) Start(c echo.Context) error {
	userID, err := currentUserID(c)
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
	p, err := h.Products.GetByID(ctx, body.ProductID)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		c.Logger().Errorf("conversation: product lookup %d: %v", body.ProductID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if p.SaleState == model.SaleRemoved {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
	}
	if p.OwnerID == userID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot start a conversation about your own product"})
	}

	conv, created, err := h.Conversations.GetOrCreate(ctx, p.ID, p.OwnerID, userID)
	if err != nil {
		c.Logger().Errorf("conversation: start: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return respond(c, status, echo.Map{
		"id":            conv.ID,
		"product_id":    conv.ProductID,
		"owner_id":      conv.OwnerID,
		"interested_id": conv.InterestedID,
	})
}

// ListMine handles GET /api/conversations.
func (h *ConversationHandler) ListMine(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	convs, err := h.Conversations.ListByUser(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Errorf("conversation: list for %d: %v", userID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]echo.Map, 0, len(convs))
	for _, conv := range convs {
		out = append(out, echo.Map{
			"id":            conv.ID,
			"product_id":    conv.ProductID,
			"owner_id":      conv.OwnerID,
			"interested_id": conv.InterestedID,
			"created_at":    conv.CreatedAt,
		})
	}
	return respond(c, http.StatusOK, echo.Map{"conversations": out, "count": len(out)})
}

// PostMessage handles POST /api/conversations/:id/messages. Participants
// only.
func (h *ConversationHandler) PostMessage(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conversation id"})
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
	conv, err := h.Conversations.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
		}
		c.Logger().Errorf("conversation: lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !conv.IsParticipant(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your conversation"})
	}
	msgID, err := h.Conversations.AddMessage(ctx, id, userID, body.Body)
	if err != nil {
		c.Logger().Errorf("conversation: add message to %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return respond(c, http.StatusCreated, echo.Map{"id": msgID, "conversation_id": id})
}

// ListMessages handles GET /api/conversations/:id/messages. Participants
// only; reading marks the other party's messages as read.
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid conversation id"})
	}

	ctx := c.Request().Context()
	conv, err := h.Conversations.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "conversation not found"})
		}
		c.Logger().Errorf("conversation: lookup %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !conv.IsParticipant(userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not your conversation"})
	}
	msgs, err := h.Conversations.ListMessages(ctx, id, userID)
	if err != nil {
		c.Logger().Errorf("conversation: list messages %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	out := make([]echo.Map, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, echo.Map{
			"id":         m.ID,
			"sender_id":  m.SenderID,
			"body":       m.Body,
			"read":       m.Read,
			"created_at": m.CreatedAt,
		})
	}
	return respond(c, http.StatusOK, echo.Map{"messages": out, "count": len(out)})
}
