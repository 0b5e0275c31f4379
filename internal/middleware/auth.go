package middleware // middleware provides shared request processing for handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/config"
	"github.com/davidromero/mercadillo/internal/repository"
	"github.com/davidromero/mercadillo/internal/utils"
)

// Context keys set by Authenticate for downstream handlers.
const (
	CtxUserID    = "user_id"
	CtxUserEmail = "user_email"
	CtxNewToken  = "new_token"
)

// Authenticate returns the identity gate wrapped around every protected
// route. For each request it:
//
//  1. extracts the bearer token — Authorization header canonical, a
//     "token" field in a JSON body accepted as fallback;
//  2. verifies it cryptographically (expired and malformed reported with
//     distinct messages, both 401);
//  3. re-resolves the subject against the user store, so deleted or
//     deactivated accounts are rejected immediately even while their
//     token is still cryptographically valid;
//  4. stores the caller's id and email in the request context;
//  5. mints a rotated token with a renewed expiry window and stashes it
//     for the response helper to merge into the operation's result.
//
// Failures short-circuit before the wrapped handler runs and are terminal
// for the request; the client must re-authenticate.
func Authenticate(cfg config.Config, users *repository.UserRepo) echo.MiddlewareFunc {
	ttl := time.Duration(cfg.TokenTTLHrs) * time.Hour
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := extractToken(c)
			if raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}

			claims, err := utils.VerifyToken(cfg.JWTSecret, raw)
			if err != nil {
				msg := "invalid token"
				if err == utils.ErrTokenExpired {
					msg = "token expired"
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg})
			}

			// Live-account check: claims alone are not trusted.
			u, err := users.GetByID(c.Request().Context(), claims.UserID)
			if err != nil {
				if err == repository.ErrNotFound {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account not found"})
				}
				c.Logger().Errorf("auth: resolve user %d: %v", claims.UserID, err)
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			if !u.IsActive {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account deactivated"})
			}

			c.Set(CtxUserID, u.ID)
			c.Set(CtxUserEmail, u.Email)

			if rotated, err := utils.IssueToken(cfg.JWTSecret, u.ID, u.Email, ttl); err == nil {
				c.Set(CtxNewToken, rotated.Token)
			} else {
				c.Logger().Errorf("auth: rotate token for %d: %v", u.ID, err)
			}
			return next(c)
		}
	}
}

// extractToken pulls the credential from the Authorization header, or from
// a top-level "token" field in a JSON body. The body is re-buffered so the
// handler's own Bind still works.
func extractToken(c echo.Context) string {
	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
	req.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	var carrier struct {
		Token string `json:"token"`
	}
	if json.Unmarshal(body, &carrier) != nil {
		return ""
	}
	return strings.TrimSpace(carrier.Token)
}
