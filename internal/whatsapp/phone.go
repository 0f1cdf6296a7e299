package whatsapp

import "strings"

// NormalizePhone keeps only digits, the form the Graph API expects in "to".
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CanonicalPhone returns the stored "+<digits>" form, or "" if phone has no digits.
func CanonicalPhone(phone string) string {
	digits := NormalizePhone(phone)
	if digits == "" {
		return ""
	}
	return "+" + digits
}
