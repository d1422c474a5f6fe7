package identity

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeContact returns a canonical form of an email address or phone
// number. Emails are lowercased; phone numbers are reduced to "+" and digits,
// with a leading 1 added to 10-digit US numbers. Anything else is returned
// trimmed and NFC-normalized.
func NormalizeContact(contact string) string {
	contact = strings.TrimSpace(norm.NFC.String(contact))
	switch {
	case contact == "":
		return ""
	case strings.Contains(contact, "@"):
		return NormalizeEmail(contact)
	case looksLikePhone(contact):
		return NormalizePhone(contact)
	default:
		return contact
	}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone strips a phone number down to "+" followed by digits.
// A 10-digit number (US without country code) gets a leading 1.
func NormalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}

	result := digits.String()
	if result == "" {
		return ""
	}
	if len(result) == 10 {
		result = "1" + result
	}
	return "+" + result
}

func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || r == ' ':
		default:
			return false
		}
	}
	return digits >= 7
}
