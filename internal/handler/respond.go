package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/davidromero/mercadillo/internal/middleware"
)

// respond writes a JSON payload, merging the rotated bearer token minted by
// the identity gate into the body as "new_token". Every successful call on
// a protected route therefore hands the client a token with a renewed
// expiry window; clients replace their stored token on each response.
// Public routes have no rotated token in context and the payload goes out
// untouched.
func respond(c echo.Context, status int, payload echo.Map) error {
	if t, ok := c.Get(middleware.CtxNewToken).(string); ok && t != "" {
		payload["new_token"] = t
	}
	return c.JSON(status, payload)
}

// currentUserID extracts the authenticated caller's ID placed in the
// context by the identity gate. A missing or zero value means the route
// was registered without the gate, which is a wiring bug surfaced as 401.
func currentUserID(c echo.Context) (uint64, error) {
	id, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok || id == 0 {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}

// pathID parses the numeric :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}
