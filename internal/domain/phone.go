package domain

import (
	"errors"
	"strings"
	"unicode"
)

var errBadPhone = errors.New("invalid phone number")

// NormalizePhone canonicalizes a phone number to E.164-ish form: formatting
// characters stripped, UK national numbers (07...) rewritten to +44. Two
// inputs that reach the same subscriber normalize identically, which is what
// the per-team uniqueness checks compare.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
			// formatting, dropped
		default:
			return "", errBadPhone
		}
	}
	n := b.String()
	if strings.HasPrefix(n, "00") {
		n = "+" + n[2:]
	}
	if strings.HasPrefix(n, "07") && len(n) == 11 {
		n = "+44" + n[1:]
	}
	if !strings.HasPrefix(n, "+") {
		return "", errBadPhone
	}
	digits := len(n) - 1
	if digits < 7 || digits > 15 {
		return "", errBadPhone
	}
	return n, nil
}

// IsBadPhone reports whether err came from NormalizePhone.
func IsBadPhone(err error) bool {
	return errors.Is(err, errBadPhone)
}
