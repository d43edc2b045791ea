package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// PlayerIDFor builds a team-scoped player id: two-digit sequence plus the
// player's initials, e.g. seq 1 + "Mark Hughes" -> "01MH".
func PlayerIDFor(seq int, fullName string) string {
	return fmt.Sprintf("%02d%s", seq, Initials(fullName))
}

// MemberIDFor builds a team-scoped member id with an M prefix, e.g. "M01MH".
func MemberIDFor(seq int, fullName string) string {
	return "M" + PlayerIDFor(seq, fullName)
}

// Initials extracts up to two uppercase initials from a full name. A single
// name yields its first two letters; an empty name yields "XX" so generated
// ids keep their fixed shape.
func Initials(fullName string) string {
	words := strings.Fields(fullName)
	letters := make([]rune, 0, 2)
	switch {
	case len(words) == 0:
		return "XX"
	case len(words) == 1:
		for _, r := range words[0] {
			if unicode.IsLetter(r) {
				letters = append(letters, unicode.ToUpper(r))
			}
			if len(letters) == 2 {
				break
			}
		}
	default:
		for _, w := range []string{words[0], words[len(words)-1]} {
			for _, r := range w {
				if unicode.IsLetter(r) {
					letters = append(letters, unicode.ToUpper(r))
					break
				}
			}
		}
	}
	for len(letters) < 2 {
		letters = append(letters, 'X')
	}
	return string(letters)
}
