// Package token issues and verifies signed invitation tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jizusun/OpenBookCorner/internal/model"
)

// ErrInvalidInvite is returned when an invite token fails verification.
var ErrInvalidInvite = errors.New("invalid invite token")

// InviteClaims carries the invitation payload inside a signed JWT. The token
// travels in an email link, so it must be self-contained and tamper-proof.
type InviteClaims struct {
	LibraryID string     `json:"library_id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	jwt.RegisteredClaims
}

// InviteIssuer signs and parses invitation tokens.
type InviteIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewInviteIssuer creates an issuer with the given HMAC secret and token TTL.
func NewInviteIssuer(secret string, ttl time.Duration) *InviteIssuer {
	return &InviteIssuer{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (i *InviteIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue creates a signed invite token for an email address.
func (i *InviteIssuer) Issue(libraryID, email string, role model.Role) (string, error) {
	now := time.Now()

	claims := InviteClaims{
		LibraryID: libraryID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "openbookcorner",
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse verifies a token and returns its claims.
func (i *InviteIssuer) Parse(tokenString string) (*InviteClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &InviteClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return i.secret, nil
		})
	if err != nil {
		return nil, ErrInvalidInvite
	}

	claims, ok := token.Claims.(*InviteClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidInvite
	}

	return claims, nil
}
