package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func rateKeyContext(t *testing.T) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/purchases", nil)
	req.RemoteAddr = "203.0.113.9:51000"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/purchases")
	return c
}

// The bucket key must carry the resolved account id once the identity
// gate has run, so two users behind one NAT get separate buckets.
func TestRateKeyUsesAuthenticatedUser(t *testing.T) {
	c := rateKeyContext(t)
	c.Set(CtxUserID, uint64(5))

	key := rateKey("rl", c)
	assert.Equal(t, "rl:203.0.113.9:5:POST /api/purchases", key)
}

func TestRateKeyFallsBackToAnon(t *testing.T) {
	c := rateKeyContext(t)

	key := rateKey("rl", c)
	assert.Equal(t, "rl:203.0.113.9:anon:POST /api/purchases", key)
}
