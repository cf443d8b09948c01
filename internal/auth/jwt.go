// Package auth issues and verifies HS256 access tokens, hashes passwords and
// carries the authenticated principal through the gin request context.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload. The subject is the user's email.
type Claims struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles"`
	Name   string   `json:"name"`
	jwt.RegisteredClaims
}

// Issuer signs and parses tokens with a shared secret.
type Issuer struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:  []byte(secret),
		issuer:  issuer,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Issue returns a signed token for the user and its expiry.
func (i *Issuer) Issue(email, userID, name string, roles []string) (string, time.Time, error) {
	now := i.nowFunc()
	exp := now.Add(i.ttl)
	claims := Claims{
		UserID: userID,
		Roles:  roles,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies signature, algorithm, issuer and expiry.
func (i *Issuer) Parse(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.nowFunc),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return &claims, nil
}
