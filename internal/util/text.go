package util

import (
	"regexp"
	"strings"
)

var (
	reQuotes = regexp.MustCompile(`["'` + "`" + `“”‘’]`)
	reSpaces = regexp.MustCompile(`\s+`)
)

// CollapseSpaces trims s and folds every whitespace run into one space.
func CollapseSpaces(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ReplaceAll(s, "\u00A0", " "), " "))
}

// NormalizeName is the key used by the catalog and directory indexes.
func NormalizeName(input string) string {
	s := strings.ToLower(input)
	s = reQuotes.ReplaceAllString(s, "")
	return CollapseSpaces(s)
}

// SplitLines returns the trimmed non-empty lines of text.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = CollapseSpaces(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
