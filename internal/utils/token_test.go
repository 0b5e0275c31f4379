package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-signing-secret"

func TestIssueAndVerifyToken(t *testing.T) {
	tok, err := IssueToken(testSecret, 42, "ana@example.com", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), tok.Exp, 5*time.Second)

	claims, err := VerifyToken(testSecret, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.WithinDuration(t, tok.Exp, claims.ExpiresAt, time.Second)
}

func TestVerifyTokenExpired(t *testing.T) {
	tok, err := IssueToken(testSecret, 7, "old@example.com", -time.Minute)
	require.NoError(t, err)

	_, err = VerifyToken(testSecret, tok.Token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	tok, err := IssueToken(testSecret, 7, "x@example.com", time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken("a-different-secret", tok.Token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyTokenGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := VerifyToken(testSecret, raw)
		assert.ErrorIs(t, err, ErrTokenMalformed, "input %q", raw)
	}
}

func TestVerifyTokenRejectsZeroSubject(t *testing.T) {
	tok, err := IssueToken(testSecret, 0, "zero@example.com", time.Hour)
	require.NoError(t, err)

	_, err = VerifyToken(testSecret, tok.Token)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery", 4)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "correct horse battery"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
}
