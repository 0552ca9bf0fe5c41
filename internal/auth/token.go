// Package auth issues and verifies the bearer tokens used by the API and
// hashes account passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired means the token was well formed but is past its exp claim.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("invalid token")
)

// TokenType tells access and refresh tokens apart. Both kinds may share a
// secret, so verification checks it.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the token payload. ID carries the user ID.
type Claims struct {
	ID   string    `json:"id"`
	Type TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer signs access and refresh tokens with separate secrets.
type Issuer struct {
	Secret        []byte
	Expiry        time.Duration
	RefreshSecret []byte
	RefreshExpiry time.Duration

	now func() time.Time
}

// NewIssuer creates an Issuer. An empty refreshSecret reuses secret.
func NewIssuer(secret string, expiry time.Duration, refreshSecret string, refreshExpiry time.Duration) *Issuer {
	if refreshSecret == "" {
		refreshSecret = secret
	}
	return &Issuer{
		Secret:        []byte(secret),
		Expiry:        expiry,
		RefreshSecret: []byte(refreshSecret),
		RefreshExpiry: refreshExpiry,
		now:           time.Now,
	}
}

// Generate returns a signed access token for userID.
func (i *Issuer) Generate(userID string) (string, error) {
	return i.sign(userID, TokenAccess, i.Secret, i.Expiry)
}

// GenerateRefresh returns a signed refresh token for userID.
func (i *Issuer) GenerateRefresh(userID string) (string, error) {
	return i.sign(userID, TokenRefresh, i.RefreshSecret, i.RefreshExpiry)
}

// Verify checks an access token and returns its claims.
func (i *Issuer) Verify(token string) (*Claims, error) {
	return i.verify(token, TokenAccess, i.Secret)
}

// VerifyRefresh checks a refresh token and returns its claims.
func (i *Issuer) VerifyRefresh(token string) (*Claims, error) {
	return i.verify(token, TokenRefresh, i.RefreshSecret)
}

func (i *Issuer) sign(userID string, typ TokenType, secret []byte, ttl time.Duration) (string, error) {
	now := i.clock()
	claims := Claims{
		ID:   userID,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) verify(token string, want TokenType, secret []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.clock),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.ID == "":
		return nil, fmt.Errorf("%w: missing id claim", ErrTokenInvalid)
	case claims.Type != want:
		return nil, fmt.Errorf("%w: %q token used as %s token", ErrTokenInvalid, claims.Type, want)
	}
	return claims, nil
}

func (i *Issuer) clock() time.Time {
	if i.now == nil {
		return time.Now()
	}
	return i.now()
}
