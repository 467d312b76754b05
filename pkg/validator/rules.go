package validator

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

func RequiredString(field, value string) Rule {
	return Rule{
		Check: func() bool { return strings.TrimSpace(value) != "" },
		Error: ValidationError{Field: field, Message: "field is required", Key: "validation.required"},
	}
}

func MinLenString(field, value string, min int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) >= min },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at least %d characters long", min),
			Key:     "validation.min_length",
		},
	}
}

func MaxLenString(field, value string, max int) Rule {
	return Rule{
		Check: func() bool { return utf8.RuneCountInString(value) <= max },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be at most %d characters long", max),
			Key:     "validation.max_length",
		},
	}
}

// ValidEmail accepts an address with a non-empty local part, a single "@"
// and a non-empty domain, with no whitespace anywhere.
func ValidEmail(field, value string) Rule {
	return Rule{
		Check: func() bool { return IsEmail(value) },
		Error: ValidationError{Field: field, Message: "must be a valid email address", Key: "validation.email"},
	}
}

func IsEmail(value string) bool {
	local, domain, ok := strings.Cut(value, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return false
	}
	return !strings.ContainsFunc(value, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

func OneOf[T comparable](field string, value T, allowed []T) Rule {
	return Rule{
		Check: func() bool { return slices.Contains(allowed, value) },
		Error: ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be one of %v", allowed),
			Key:     "validation.one_of",
		},
	}
}
