package sanitizer

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func Trim(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail trims and lowercases an address. Email is the unique user
// key, so every lookup and write goes through this first.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SingleLine drops control characters and collapses all whitespace,
// including line breaks, into single spaces.
func SingleLine(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

// MaxLength truncates s to at most maxLen runes.
func MaxLength(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// ProfileField prepares a free-text profile value (name, company, phone) for
// storage.
func ProfileField(s string) string {
	return MaxLength(SingleLine(s), 200)
}
