package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/nfrund/supportchat/internal/domain"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid identity token")

const issuer = "supportchat"

// Claims are the JWT claims carried by identity tokens.
type Claims struct {
	Label string `json:"label"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 identity tokens.
type Tokens struct {
	secret   []byte
	validate *validator.Validate
	now      func() time.Time
}

// NewTokens creates a token service signing with secret.
func NewTokens(secret string) *Tokens {
	return &Tokens{secret: []byte(secret), validate: validator.New(), now: time.Now}
}

// Issue signs a token for id valid for ttl.
func (t *Tokens) Issue(id domain.Identity, ttl time.Duration) (string, error) {
	if err := t.validate.Struct(id); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidIdentity, err)
	}

	now := t.now()
	claims := Claims{
		Label: id.Label,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Key,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign identity token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity it carries.
func (t *Tokens) Verify(tokenString string) (*domain.Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := &domain.Identity{Key: claims.Subject, Label: claims.Label}
	if err := t.validate.Struct(id); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return id, nil
}
