package session

import (
	"errors"
	"strings"

	"github.com/dgrijalva/jwt-go"

	"github.com/trezcool/masomo/portal/core/user"
)

// ErrInvalidToken is returned for tokens whose claims cannot be decoded.
var ErrInvalidToken = errors.New("invalid session token")

// Resolver turns a stored token into the current user without contacting a server.
type Resolver interface {
	Resolve(token string) (user.User, error)
}

// Claims are the identity claims embedded in a session token by the identity service.
type Claims struct {
	jwt.StandardClaims
	Email      string `json:"email,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Role       string `json:"role,omitempty"`
}

// User projects the claims onto a user.User.
func (c Claims) User() user.User {
	role, _ := user.ParseRole(c.Role)
	return user.User{
		ID:         c.Subject,
		Email:      c.Email,
		GivenName:  c.GivenName,
		FamilyName: c.FamilyName,
		Role:       role,
	}
}

// JWTResolver decodes the claims of a JWT session token.
// The signature and expiry are NOT verified: the backend services do that on every call.
type JWTResolver struct {
	parser jwt.Parser
}

var _ Resolver = (*JWTResolver)(nil)

func NewJWTResolver() *JWTResolver {
	return &JWTResolver{parser: jwt.Parser{SkipClaimsValidation: true}}
}

// Resolve returns ErrInvalidToken for any token it cannot decode or that lacks a subject.
func (r *JWTResolver) Resolve(token string) (usr user.User, err error) {
	// never let a hostile token take the page down
	defer func() {
		if rec := recover(); rec != nil {
			usr, err = user.User{}, ErrInvalidToken
		}
	}()

	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return user.User{}, ErrInvalidToken
	}
	claims := new(Claims)
	if _, _, err := r.parser.ParseUnverified(token, claims); err != nil {
		return user.User{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return user.User{}, ErrInvalidToken
	}
	return claims.User(), nil
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(token string) (user.User, error)

func (f ResolverFunc) Resolve(token string) (user.User, error) { return f(token) }
