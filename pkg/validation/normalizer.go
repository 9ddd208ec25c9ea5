package validation

import (
	"strings"
	"unicode"
)

// NormalizeEmail trims and lowercases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCode trims and uppercases a submitted one-time code
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeCategoryName uppercases name and removes every whitespace rune,
// so "backend dev" and " Backend\tDev" both become "BACKENDDEV"
func NormalizeCategoryName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, name)
}

// NormalizeList trims every entry and drops empty ones
func NormalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SplitList splits a comma separated form value into a normalized list
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return NormalizeList(strings.Split(value, ","))
}
