package util

import (
	"net"
	"strings"
)

// SubdomainFromHost extracts the realm subdomain from a request Host header
// given the server's external host ("example.com"). Requests arriving on the
// external host itself (or any host that is not a subdomain of it) map to the
// empty subdomain, which callers treat as the provider-neutral root domain.
func SubdomainFromHost(host, externalHost string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if eh, _, err := net.SplitHostPort(externalHost); err == nil {
		externalHost = eh
	}
	host = strings.ToLower(host)
	externalHost = strings.ToLower(externalHost)

	if host == externalHost {
		return ""
	}
	if strings.HasSuffix(host, "."+externalHost) {
		sub := strings.TrimSuffix(host, "."+externalHost)
		// Nested subdomains are not realm subdomains.
		if strings.Contains(sub, ".") {
			return ""
		}
		return sub
	}
	return ""
}

// RealmHost returns the full host for a realm subdomain.
func RealmHost(subdomain, externalHost string) string {
	if subdomain == "" {
		return externalHost
	}
	return subdomain + "." + externalHost
}

// EmailDomain returns the lowercased domain part of an email address, or ""
// when the address has no domain.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}
