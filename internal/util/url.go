package util

import (
	"net/url"
	"strings"
)

// IsRedirectSafe validates that a "next" redirect target is safe to use.
// It only allows:
// 1. Relative paths starting with "/" but not "//"
// 2. Absolute URLs whose host matches realmHost
//
// Third-party-supplied cross-origin targets are rejected; callers downgrade
// them to the realm root rather than erroring.
func IsRedirectSafe(redirectURL, realmHost string) bool {
	// Empty redirect is safe (will use default)
	if redirectURL == "" {
		return true
	}

	// Must not contain newlines or carriage returns (header injection)
	if strings.ContainsAny(redirectURL, "\r\n") {
		return false
	}

	if strings.HasPrefix(redirectURL, "/") {
		// Reject protocol-relative URLs like "//evil.com"
		if strings.HasPrefix(redirectURL, "//") {
			return false
		}
		// Reject backslash variations like "/\evil.com"
		if strings.Contains(redirectURL, "\\") {
			return false
		}
		return true
	}

	parsedRedirect, err := url.Parse(redirectURL)
	if err != nil {
		return false
	}

	// Reject javascript:, data:, and other non-http(s) schemes
	if parsedRedirect.Scheme != "" && parsedRedirect.Scheme != "http" &&
		parsedRedirect.Scheme != "https" {
		return false
	}

	if parsedRedirect.Host != "" && parsedRedirect.Host != realmHost {
		return false
	}

	return true
}

// SafeNext returns next when it passes IsRedirectSafe for realmHost,
// otherwise the realm root.
func SafeNext(next, realmHost string) string {
	if next == "" || !IsRedirectSafe(next, realmHost) {
		return "/"
	}
	return next
}
