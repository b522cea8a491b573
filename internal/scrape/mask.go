package scrape

import (
	"strings"
)

// MaskIdentifier hides most of an identifier while keeping it recognizable.
// "jane.doe@example.com" becomes "ja******@example.com".
func MaskIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ""
	}
	local, domain, hasDomain := strings.Cut(identifier, "@")
	runes := []rune(local)
	keep := 2
	if len(runes) <= keep {
		keep = 1
	}
	masked := string(runes[:keep]) + strings.Repeat("*", max(len(runes)-keep, 3))
	if hasDomain {
		return masked + "@" + domain
	}
	return masked
}
