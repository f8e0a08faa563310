// Package session models the resolved identity handed to the stores and the
// bearer tokens the API uses to carry it.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole accepts any casing.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Identity is who is acting. It is always passed explicitly.
type Identity struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (id Identity) IsAdmin() bool { return id.Role == RoleAdmin }

func (id Identity) String() string {
	if id.Email == "" {
		return string(id.Role)
	}
	return id.Email + " (" + string(id.Role) + ")"
}

var ErrInvalidToken = errors.New("invalid token")

// Claims is the JWT payload.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`

	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 tokens with a shared secret.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), now: time.Now}
}

// Issue signs a token for id valid for ttl.
func (t *Tokens) Issue(id Identity, ttl time.Duration) (string, error) {
	if _, err := ParseRole(string(id.Role)); err != nil {
		return "", err
	}
	now := t.now()
	claims := &Claims{
		Email: id.Email,
		Role:  string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and resolves the identity it carries.
func (t *Tokens) Verify(token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{Email: claims.Email, Role: role}, nil
}
