package session

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/user"
)

// Token types
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64    `json:"oriat,omitempty"`
	TokenType    string   `json:"token_type,omitempty"`
	Name         string   `json:"name,omitempty"`
	Username     string   `json:"username,omitempty"`
	Email        string   `json:"email,omitempty"`
	IsLearner    bool     `json:"is_learner,omitempty"`  // -> LEARNER DASHBOARD
	IsApprover   bool     `json:"is_approver,omitempty"` // -> APPROVER DASHBOARD
	IsAdmin      bool     `json:"is_admin,omitempty"`    // -> ADMIN DASHBOARD
	Roles        []string `json:"roles,omitempty"`
}

// NewClaims returns the claims of a token of the given type issued to usr.
func NewClaims(usr user.User, tokenType, issuer string, ttl time.Duration, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 && origIat[0] != 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    issuer,
			Subject:   usr.ID,
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		TokenType:    tokenType,
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		IsLearner:    usr.IsLearner(),
		IsApprover:   usr.IsApprover(),
		IsAdmin:      usr.IsAdmin(),
		Roles:        usr.Roles,
	}
}

// ParseClaims decodes the claims of token without verifying its signature.
// The server is the only party holding the signing key; the client only reads identity and expiry.
func ParseClaims(token string) (*Claims, error) {
	claims := new(Claims)
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	return claims, nil
}

// User returns the identity carried by the claims.
func (c *Claims) User() user.User {
	return user.User{
		ID:       c.Subject,
		Name:     c.Name,
		Username: c.Username,
		Email:    c.Email,
		IsActive: true,
		Roles:    c.Roles,
	}
}

// ExpiresAtTime returns the expiry of the token, zero if it has none.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.ExpiresAt, 0)
}

// ExpiredAt reports whether the token is expired at t.
func (c *Claims) ExpiredAt(t time.Time) bool {
	exp := c.ExpiresAtTime()
	return !exp.IsZero() && !t.Before(exp)
}
