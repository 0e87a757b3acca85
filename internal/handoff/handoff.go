// Package handoff signs and verifies the short-lived tokens that carry a
// resolved identity across the redirect from the provider-neutral completion
// endpoint to the tenant-specific subdomain. The token is the only state:
// nothing is stored server-side, and expiry is a wall-clock comparison at
// consume time.
package handoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Distinct purposes keep handoff tokens and email-choice continuation
// tokens non-interchangeable even though they share a signer.
const (
	purposeHandoff     = "subdomain-handoff"
	purposeEmailChoice = "email-choice"
)

var (
	ErrBadSignature      = errors.New("handoff: invalid token signature")
	ErrExpired           = errors.New("handoff: token expired")
	ErrSubdomainMismatch = errors.New("handoff: invalid subdomain for login attempt")
	ErrWrongPurpose      = errors.New("handoff: token issued for a different purpose")
)

// Payload is the identity state carried across the redirect.
type Payload struct {
	Email       string
	FullName    string
	Subdomain   string
	Backend     string
	IsSignup    bool
	Next        string
	MultiuseKey string
	// Mobile flow: the client-supplied one-time pad, carried so the
	// consuming endpoint can encrypt the fresh API key.
	MobileOTP string
}

// ChoicePayload suspends the federated pipeline while the user picks one of
// several verified emails.
type ChoicePayload struct {
	Candidates  []string
	FullName    string
	Subdomain   string
	Backend     string
	IsSignup    bool
	Next        string
	MultiuseKey string
	MobileOTP   string
}

// Signer issues and consumes handoff tokens with a fixed-purpose secret and
// a short TTL.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source; used by tests to drive expiry.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Issue signs a handoff payload.
func (s *Signer) Issue(p Payload) (string, error) {
	claims := jwt.MapClaims{
		"purpose":   purposeHandoff,
		"email":     p.Email,
		"full_name": p.FullName,
		"subdomain": p.Subdomain,
		"backend":   p.Backend,
		"is_signup": p.IsSignup,
		"next":      p.Next,
		"invite":    p.MultiuseKey,
		"otp":       p.MobileOTP,
		"iat":       s.now().Unix(),
		"exp":       s.now().Add(s.ttl).Unix(),
	}
	return s.sign(claims)
}

// Consume verifies signature, expiry and subdomain, returning the payload.
// Each failure mode maps to its own sentinel so callers can log the
// distinct reason while still returning a uniform 400 to the client.
func (s *Signer) Consume(token, subdomain string) (*Payload, error) {
	claims, err := s.verify(token, purposeHandoff)
	if err != nil {
		return nil, err
	}
	p := &Payload{
		Email:       stringClaim(claims, "email"),
		FullName:    stringClaim(claims, "full_name"),
		Subdomain:   stringClaim(claims, "subdomain"),
		Backend:     stringClaim(claims, "backend"),
		IsSignup:    boolClaim(claims, "is_signup"),
		Next:        stringClaim(claims, "next"),
		MultiuseKey: stringClaim(claims, "invite"),
		MobileOTP:   stringClaim(claims, "otp"),
	}
	if p.Subdomain != subdomain {
		return nil, ErrSubdomainMismatch
	}
	return p, nil
}

// IssueEmailChoice signs a continuation token for the multi-email
// "choose an account" step.
func (s *Signer) IssueEmailChoice(c ChoicePayload) (string, error) {
	candidates := make([]any, len(c.Candidates))
	for i, e := range c.Candidates {
		candidates[i] = e
	}
	claims := jwt.MapClaims{
		"purpose":    purposeEmailChoice,
		"candidates": candidates,
		"full_name":  c.FullName,
		"subdomain":  c.Subdomain,
		"backend":    c.Backend,
		"is_signup":  c.IsSignup,
		"next":       c.Next,
		"invite":     c.MultiuseKey,
		"otp":        c.MobileOTP,
		"iat":        s.now().Unix(),
		"exp":        s.now().Add(s.ttl).Unix(),
	}
	return s.sign(claims)
}

// ConsumeEmailChoice verifies a continuation token. The subdomain check is
// skipped: the chooser runs on the provider-neutral root domain.
func (s *Signer) ConsumeEmailChoice(token string) (*ChoicePayload, error) {
	claims, err := s.verify(token, purposeEmailChoice)
	if err != nil {
		return nil, err
	}
	c := &ChoicePayload{
		FullName:    stringClaim(claims, "full_name"),
		Subdomain:   stringClaim(claims, "subdomain"),
		Backend:     stringClaim(claims, "backend"),
		IsSignup:    boolClaim(claims, "is_signup"),
		Next:        stringClaim(claims, "next"),
		MultiuseKey: stringClaim(claims, "invite"),
		MobileOTP:   stringClaim(claims, "otp"),
	}
	if raw, ok := claims["candidates"].([]any); ok {
		for _, e := range raw {
			if s, ok := e.(string); ok {
				c.Candidates = append(c.Candidates, s)
			}
		}
	}
	return c, nil
}

func (s *Signer) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("handoff: signing failed: %w", err)
	}
	return signed, nil
}

func (s *Signer) verify(tokenString, purpose string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrBadSignature
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrBadSignature
	}
	if stringClaim(claims, "purpose") != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func boolClaim(claims jwt.MapClaims, key string) bool {
	if v, ok := claims[key].(bool); ok {
		return v
	}
	return false
}
