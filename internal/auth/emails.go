package auth

import "errors"

// ProviderEmail is one (email, verified, primary) tuple from an identity
// provider's email list.
type ProviderEmail struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
	Primary  bool   `json:"primary"`
}

// ErrNoVerifiedEmail means the provider account has no usable address.
// Surfaced as a descriptive, logged failure and a generic login-failure
// redirect, never a 5xx.
var ErrNoVerifiedEmail = errors.New("no verified email address on provider account")

// untrustedEmailDomains are provider-internal placeholder domains that can
// never receive mail and must not become account identities.
var untrustedEmailDomains = map[string]bool{
	"users.noreply.github.com": true,
	"noreply.github.com":       true,
}

// SelectEmail implements the email selection algorithm: discard unverified
// and untrusted-domain addresses; a single survivor is used directly;
// multiple survivors suspend the pipeline for an explicit user choice
// (never auto-picked, not even the primary); zero survivors fail.
//
// Returns (email, nil, nil) for the single-survivor case and
// ("", candidates, nil) when a choice is required.
func SelectEmail(emails []ProviderEmail) (string, []string, error) {
	var candidates []string
	for _, e := range emails {
		if !e.Verified || e.Email == "" {
			continue
		}
		if untrustedEmailDomains[emailDomainOf(e.Email)] {
			continue
		}
		candidates = append(candidates, e.Email)
	}

	switch len(candidates) {
	case 0:
		return "", nil, ErrNoVerifiedEmail
	case 1:
		return candidates[0], nil, nil
	default:
		return "", candidates, nil
	}
}

func emailDomainOf(email string) string {
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
