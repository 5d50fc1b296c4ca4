// File: internal/common/identity.go
package common

import (
	"strings"

	"github.com/gosimple/slug"
)

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips formatting from a phone number and returns it in E.164 form.
// The boolean is false when the result is not a plausible E.164 number.
func NormalizePhone(phone string) (string, bool) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return "", false
		}
	}
	out := b.String()
	if !strings.HasPrefix(out, "+") {
		return "", false
	}
	digits := len(out) - 1
	if digits < 8 || digits > 15 || out[1] == '0' {
		return "", false
	}
	return out, true
}

// LooksLikeEmail distinguishes email identifiers from phone identifiers at login.
func LooksLikeEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}

// AreaSlug produces the key used to match schedules to profiles by area.
func AreaSlug(area string) string {
	return slug.Make(strings.TrimSpace(area))
}
