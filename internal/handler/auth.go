package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/config"
	"github.com/davidromero/mercadillo/internal/repository"
	"github.com/davidromero/mercadillo/internal/utils"
)

// AuthHandler serves account registration and token issuance. Tokens are
// self-contained JWTs; nothing about a session is persisted server-side,
// so "logout" is simply the client discarding its token.
type AuthHandler struct {
	Users *repository.UserRepo
	Cfg   config.Config
}

// NewAuthHandler constructs an AuthHandler. Users must be non-nil.
func NewAuthHandler(users *repository.UserRepo, cfg config.Config) *AuthHandler {
	if users == nil {
		panic("nil repository passed to NewAuthHandler")
	}
	return &AuthHandler{Users: users, Cfg: cfg}
}

func (h *AuthHandler) ttl() time.Duration {
	return time.Duration(h.Cfg.TokenTTLHrs) * time.Hour
}

// Register handles POST /api/auth/register. A new account is immediately
// usable: the response carries a bearer token so the client does not need
// a separate login round-trip.
func (h *AuthHandler) Register(c echo.Context) error {
	var body struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
		Location string `json:"location"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.TrimSpace(body.Email)
	if body.Name == "" || body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name, email and password are required"})
	}
	if !strings.Contains(body.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
	}
	if len(body.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx := c.Request().Context()
	id, ref, err := h.Users.Create(ctx, body.Name, body.Email, body.Password, body.Phone, body.Location, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrEmailExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		c.Logger().Errorf("auth: register: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	tok, err := utils.IssueToken(h.Cfg.JWTSecret, id, strings.ToLower(body.Email), h.ttl())
	if err != nil {
		c.Logger().Errorf("auth: issue token: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":         id,
		"ref":        ref,
		"token":      tok.Token,
		"expires_at": tok.Exp,
	})
}

// Login handles POST /api/auth/login. A single generic message covers both
// unknown email and wrong password so the endpoint does not leak which
// accounts exist. Deactivated accounts cannot log in.
func (h *AuthHandler) Login(c echo.Context) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Email == "" || body.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password are required"})
	}

	u, err := h.Users.GetByEmail(c.Request().Context(), body.Email)
	if err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		c.Logger().Errorf("auth: login lookup: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !utils.VerifyPassword(u.PasswordHash, body.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account deactivated"})
	}

	tok, err := utils.IssueToken(h.Cfg.JWTSecret, u.ID, u.Email, h.ttl())
	if err != nil {
		c.Logger().Errorf("auth: issue token: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         u.ID,
		"ref":        u.Ref,
		"name":       u.Name,
		"token":      tok.Token,
		"expires_at": tok.Exp,
	})
}

// Refresh handles POST /api/auth/refresh. The route sits behind the
// identity gate, so by the time this runs the token in the request has
// been verified, the account re-resolved and a rotated token minted; the
// handler only has to hand it back.
func (h *AuthHandler) Refresh(c echo.Context) error {
	userID, err := currentUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	return respond(c, http.StatusOK, echo.Map{"id": userID})
}
