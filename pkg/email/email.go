// Package email derives display names from email addresses, for submissions
// that carry a contact address but no name.
package email

import (
	"strings"
	"unicode"
)

// DeriveDisplayName builds a readable name from the local part of an email
// address: "jordan.lee@example.com" becomes "Jordan Lee". Inputs without a
// usable local part fall back to "Member".
func DeriveDisplayName(addr string) string {
	localPart := addr
	if at := strings.IndexByte(addr, '@'); at > 0 {
		localPart = addr[:at]
	}

	parts := strings.FieldsFunc(localPart, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	if len(parts) == 0 {
		return "Member"
	}

	words := make([]string, 0, len(parts))
	for _, p := range parts {
		// Skip pure-digit fragments like the "42" in jordan.42@example.com.
		if strings.IndexFunc(p, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
			continue
		}
		words = append(words, capitalize(p))
	}
	if len(words) == 0 {
		return "Member"
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
