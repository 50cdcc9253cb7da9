// Package auth mints and resolves access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenValidity is the access token lifetime when none is configured.
const DefaultTokenValidity = 60 * time.Minute

var ErrMissingSubject = errors.New("token claims require a subject")

// Claims is the claim set carried by every access token. Subject holds the
// user's email.
type Claims struct {
	jwt.RegisteredClaims
	Role   models.Role `json:"role"`
	UserID int64       `json:"uid,omitempty"`
}

// Issuer signs and verifies HS256 access tokens with a process-wide secret.
// It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

type IssuerOption func(*Issuer)

// WithClock overrides the time source used for both minting and expiry checks.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret []byte, validity time.Duration, opts ...IssuerOption) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: token signing secret is empty", common.ErrConfiguration)
	}
	if validity <= 0 {
		validity = DefaultTokenValidity
	}

	i := &Issuer{
		secret:   append([]byte(nil), secret...),
		validity: validity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Validity reports how long issued tokens stay valid.
func (i *Issuer) Validity() time.Duration { return i.validity }

// Issue stamps expiry, issue time and a token id onto claims and signs them.
func (i *Issuer) Issue(claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", ErrMissingSubject
	}

	now := i.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.validity))
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve verifies the signature and expiry of token and returns its claims.
// Every failure is reported as common.ErrInvalidToken.
func (i *Issuer) Resolve(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" || !claims.Role.Valid() {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
