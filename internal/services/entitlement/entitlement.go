package entitlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Plan names carried in the entitlement token
const (
	PlanFree    = "free"
	PlanPremium = "premium"
)

// DefaultTokenTTL is how long an issued entitlement token stays valid
const DefaultTokenTTL = 30 * 24 * time.Hour

const issuerName = "studygenius"

var (
	// ErrNotPremium is returned when a verified token does not carry the
	// premium plan
	ErrNotPremium = errors.New("token does not grant premium")
	// ErrInvalidToken is returned when a token fails signature or time
	// validation
	ErrInvalidToken = errors.New("invalid entitlement token")
)

// Service issues and verifies signed entitlement tokens. Tokens are
// self-issued HS256 JWTs; there is no external identity provider involved.
type Service struct {
	secret []byte
	ttl    time.Duration
}

// NewService creates an entitlement service signing with the given secret
func NewService(secret []byte, ttl time.Duration) (*Service, error) {
	if len(secret) < 32 {
		return nil, errors.New("entitlement secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{secret: secret, ttl: ttl}, nil
}

// IssuePremium mints a premium entitlement token for a session
func (s *Service) IssuePremium(sessionID string) (string, error) {
	now := time.Now()
	token, err := jwt.NewBuilder().
		Issuer(issuerName).
		Subject(sessionID).
		IssuedAt(now).
		Expiration(now.Add(s.ttl)).
		Claim("plan", PlanPremium).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// VerifyPremium checks a token's signature and expiry and confirms it
// grants the premium plan
func (s *Service) VerifyPremium(tokenString string) error {
	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(issuerName),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	plan, ok := token.Get("plan")
	if !ok {
		return ErrNotPremium
	}
	if planStr, ok := plan.(string); !ok || planStr != PlanPremium {
		return ErrNotPremium
	}
	return nil
}
