package domain

import (
	"regexp"
	"time"
	"unicode/utf8"
)

const dateLayout = "2006-01-02"

var (
	digitsPattern     = regexp.MustCompile(`^\d+$`)
	decimalPattern    = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	cadastralPattern  = regexp.MustCompile(`^[0-9:]+$`)
	datePattern       = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	restrictedPattern = regexp.MustCompile(`[!@#$%^&*()_+=\[\]{};:"\\|<>?/~]`)
)

// RestrictedChars is the set of symbols rejected in free-text fields.
const RestrictedChars = `!@#$%^&*()_+=[]{};:"\|<>?/~`

// IsEmpty reports whether s has no characters.
func IsEmpty(s string) bool {
	return len(s) == 0
}

// NumericOnly reports whether s is a run of ASCII digits, or a signed decimal
// with one optional fractional part when allowDecimal is set.
func NumericOnly(s string, allowDecimal bool) bool {
	if allowDecimal {
		return decimalPattern.MatchString(s)
	}
	return digitsPattern.MatchString(s)
}

// RestrictedCharset reports whether s is free of RestrictedChars.
func RestrictedCharset(s string) bool {
	return !restrictedPattern.MatchString(s)
}

// LengthOK compares the character count of s with limit.
func LengthOK(s string, limit int, exact bool) bool {
	n := utf8.RuneCountInString(s)
	if exact {
		return n == limit
	}
	return n <= limit
}

// CadastralFormat reports whether s consists only of digits and colons.
func CadastralFormat(s string) bool {
	return cadastralPattern.MatchString(s)
}

// ValidCalendarDate reports whether s is YYYY-MM-DD and names a real day from year 1 on.
func ValidCalendarDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	t, err := time.Parse(dateLayout, s)
	return err == nil && t.Year() >= 1
}
