// Package auth gates the ruleset-admin routes (C2) with a bearer JWT. It owns
// nothing about identity beyond what the token claims: no OAuth flow, no
// profile storage, no permission registry. Callers outside the admin surface
// never touch this package.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthenticatedUser is the claim set carried by an admin bearer token.
type AuthenticatedUser struct {
	Subject string   `json:"sub"`
	Roles   []string `json:"roles"`
}

// HasRole reports whether the user carries the given role.
func (u *AuthenticatedUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

var ErrNoToken = errors.New("auth: no bearer token presented")

type contextKey string

const userContextKey = contextKey("auth.user")

// Validator verifies a bearer token and extracts its claims. Signing key
// rotation and issuer checks are its concern, not the caller's.
type Validator struct {
	secret []byte
	issuer string
}

func NewValidator(secret []byte, issuer string) *Validator {
	return &Validator{secret: secret, issuer: issuer}
}

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

func (v *Validator) ValidateToken(token string) (*AuthenticatedUser, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("auth: invalid token claims")
	}

	return &AuthenticatedUser{Subject: c.Subject, Roles: c.Roles}, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
func ExtractBearer(authHeader string) string {
	const prefix = "Bearer "
	if strings.HasPrefix(authHeader, prefix) {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	}
	return ""
}

func WithUser(ctx context.Context, user *AuthenticatedUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func UserFromContext(ctx context.Context) *AuthenticatedUser {
	user, _ := ctx.Value(userContextKey).(*AuthenticatedUser)
	return user
}

// IssueAdminToken mints a short-lived token carrying the given roles. No
// HTTP route or binary in this repository calls it; only the package tests
// do.
func (v *Validator) IssueAdminToken(subject string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(v.secret)
}
