package identity

import (
	"context"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUserRoundTrip(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	v := NewJWTValidator("secret", c)

	token, err := v.Issue("user-1", "ada@example.com", time.Hour)
	require.NoError(t, err)

	md, err := v.ValidateUser(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", md.Email)
	assert.Equal(t, "user-1", md.Subject)
}

func TestValidateUserRejectsExpired(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	v := NewJWTValidator("secret", c)
	token, err := v.Issue("user-1", "ada@example.com", time.Minute)
	require.NoError(t, err)

	c.Advance(2 * time.Minute)
	_, err = v.ValidateUser(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateUserRejectsWrongSecret(t *testing.T) {
	c := clock.NewFakeClock(time.Now())
	token, err := NewJWTValidator("one", c).Issue("u", "ada@example.com", time.Hour)
	require.NoError(t, err)

	_, err = NewJWTValidator("two", c).ValidateUser(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateUserRequiresEmail(t *testing.T) {
	c := clock.NewFakeClock(time.Now())
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(c.Now().Add(time.Hour))}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWTValidator("secret", c).ValidateUser(context.Background(), token)
	assert.ErrorIs(t, err, ErrMissingEmail)
}

func TestBearerToken(t *testing.T) {
	token, err := BearerToken("Bearer abc.def")
	require.NoError(t, err)
	assert.Equal(t, "abc.def", token)

	token, err = BearerToken("bearer xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	_, err = BearerToken("Basic abc")
	assert.ErrorIs(t, err, ErrMissingToken)
	_, err = BearerToken("Bearer ")
	assert.ErrorIs(t, err, ErrMissingToken)
}
