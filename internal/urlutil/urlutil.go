// Package urlutil resolves listing hrefs and answers same-site questions.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Resolve joins href against base. Absolute hrefs are returned unchanged
// apart from normalization by net/url.
func Resolve(base *url.URL, href string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("parse href %q: %w", href, err)
	}
	if base == nil || ref.IsAbs() {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// ResolveString is Resolve for string inputs.
func ResolveString(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base %q: %w", base, err)
	}
	u, err := Resolve(b, href)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// RegistrableDomain returns the network location (host[:port]) of rawURL,
// lower-cased. It returns "" when rawURL cannot be parsed.
func RegistrableDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// SameSite reports whether candidate is the source domain, its www. form,
// or a proper subdomain of it.
func SameSite(candidate, source string) bool {
	if candidate == "" || source == "" {
		return false
	}
	candidate = strings.ToLower(candidate)
	source = strings.ToLower(source)
	return candidate == source ||
		candidate == "www."+source ||
		strings.HasSuffix(candidate, "."+source)
}
