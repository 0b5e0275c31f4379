package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned by VerifyToken when the token's expiry has
// passed. ErrTokenMalformed covers every other failure: bad signature,
// wrong algorithm, truncated or garbage input. Callers that only care about
// validity can treat both the same; the auth endpoints report them with
// distinct messages.
var (
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenMalformed = errors.New("token malformed")
)

// BearerToken is a signed JWT along with its expiry. Tokens are
// self-contained: validity is purely cryptographic plus time-based, nothing
// is persisted server-side and there is no revocation list.
type BearerToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// TokenClaims is the decoded payload of a verified bearer token.
type TokenClaims struct {
	UserID    uint64
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssueToken builds and signs an HS256 JWT for a user. Claims: subject
// (sub, the user's numeric ID), email, expiration (exp) and issued at
// (iat). The validity window is ttl; every successful protected call
// re-issues with a renewed window, so active sessions slide forward.
func IssueToken(secret string, userID uint64, email string, ttl time.Duration) (BearerToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return BearerToken{}, err
	}
	return BearerToken{Token: signed, Exp: exp}, nil
}

// VerifyToken parses and validates a bearer token. It returns the decoded
// claims, ErrTokenExpired when the validity window has passed, or
// ErrTokenMalformed for any structural or signature failure. Verification
// never touches the database; resolving the subject to a live account is
// the identity gate's job.
func VerifyToken(secret, raw string) (TokenClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenMalformed
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenClaims{}, ErrTokenExpired
		}
		return TokenClaims{}, ErrTokenMalformed
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok || !tok.Valid {
		return TokenClaims{}, ErrTokenMalformed
	}

	out := TokenClaims{}
	switch sub := claims["sub"].(type) {
	case float64:
		out.UserID = uint64(sub)
	default:
		return TokenClaims{}, ErrTokenMalformed
	}
	if out.UserID == 0 {
		return TokenClaims{}, ErrTokenMalformed
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if iat, ok := claims["iat"].(float64); ok {
		out.IssuedAt = time.Unix(int64(iat), 0).UTC()
	}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}
	return out, nil
}
