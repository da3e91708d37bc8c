package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/railbook/internal/clock"
	"github.com/smallbiznis/railbook/internal/config"
	"go.uber.org/fx"
)

var (
	ErrMissingToken = errors.New("missing_token")
	ErrInvalidToken = errors.New("invalid_token")
	ErrMissingEmail = errors.New("token_missing_email")
)

var Module = fx.Module("identity",
	fx.Provide(NewFromConfig),
)

// Metadata is what a validated token says about the caller.
type Metadata struct {
	Subject string
	Email   string
	Issuer  string
}

type Validator interface {
	ValidateUser(ctx context.Context, token string) (Metadata, error)
}

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTValidator accepts HS256 tokens signed with a shared secret.
type JWTValidator struct {
	secret []byte
	clock  clock.Clock
}

func NewFromConfig(cfg config.Config, c clock.Clock) Validator {
	return NewJWTValidator(cfg.AuthJWTSecret, c)
}

func NewJWTValidator(secret string, c clock.Clock) *JWTValidator {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &JWTValidator{secret: []byte(secret), clock: c}
}

func (v *JWTValidator) ValidateUser(_ context.Context, token string) (Metadata, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Metadata{}, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Metadata{}, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Metadata{}, ErrInvalidToken
	}
	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return Metadata{}, ErrMissingEmail
	}
	return Metadata{Subject: claims.Subject, Email: email, Issuer: claims.Issuer}, nil
}

// Issue signs a token for email that expires after ttl.
func (v *JWTValidator) Issue(subject, email string, ttl time.Duration) (string, error) {
	now := v.clock.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "railbook",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(header[7:])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
