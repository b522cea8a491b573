package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned for URLs that cannot identify a profile.
var ErrInvalidURL = errors.New("invalid profile url")

// NormalizeProfileURL reduces a profile link to a stable identity: https
// scheme, lowercase host and path, no query, fragment, or trailing slash.
func NormalizeProfileURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidURL, raw)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	p := strings.TrimRight(strings.ToLower(u.EscapedPath()), "/")
	return "https://" + strings.ToLower(u.Host) + p, nil
}

// resolve makes href absolute against base.
func resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: base: %w", ErrInvalidURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: href: %w", ErrInvalidURL, err)
	}
	return b.ResolveReference(ref).String(), nil
}
