// Package auth issues and validates the session tokens returned by login.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = time.Hour
	// DefaultIssuer is the iss claim of gateway session tokens.
	DefaultIssuer = "geko-gateway"
	// DefaultAudience is the aud claim of gateway session tokens.
	DefaultAudience = "geko-api"
)

var (
	errMissingSigningSecret = errors.New("auth: signing secret must be provided")
	errMissingSubjectClaim  = errors.New("auth: subject claim must be provided")
)

// TokenIssuerConfig configures the session token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// Subject identifies the authenticated user a token is issued for.
type Subject struct {
	UserID string
	Email  string
}

// IssuedToken is a signed session token and its lifetime in seconds.
type IssuedToken struct {
	Value     string
	ExpiresIn int64
	ExpiresAt time.Time
}

// TokenIssuer signs HS256 session tokens for authenticated users.
type TokenIssuer struct {
	signingSecret []byte
	issuer        string
	audience      string
	ttl           time.Duration
	clock         func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer. The signing secret is required.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = DefaultAudience
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		issuer:        issuer,
		audience:      audience,
		ttl:           ttl,
		clock:         clock,
	}, nil
}

// IssueToken produces a signed session token for the subject.
func (i *TokenIssuer) IssueToken(_ context.Context, subject Subject) (IssuedToken, error) {
	userID := strings.TrimSpace(subject.UserID)
	if userID == "" {
		return IssuedToken{}, errMissingSubjectClaim
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.ttl).UTC()

	claims := SessionClaims{
		UserID:    userID,
		UserEmail: subject.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			Audience:  []string{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.signingSecret)
	if err != nil {
		return IssuedToken{}, err
	}

	return IssuedToken{
		Value:     signed,
		ExpiresIn: int64(expiresAt.Sub(now).Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

// Issuer reports the iss claim stamped on issued tokens.
func (i *TokenIssuer) Issuer() string {
	return i.issuer
}

// Audience reports the aud claim stamped on issued tokens.
func (i *TokenIssuer) Audience() string {
	return i.audience
}
