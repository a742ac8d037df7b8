package util

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reAmountToken  = regexp.MustCompile(`-?\d[\d\s.,]*`)
	reDigitRun     = regexp.MustCompile(`\d+`)
	reDotThousands = regexp.MustCompile(`^\d{1,3}(?:\.\d{3}){2,}$`)
	reComThousands = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
)

// ParseAmount reads a money value such as "$2,574.00", "1.234,56" or "1989.4".
func ParseAmount(input string) (decimal.Decimal, bool) {
	line := strings.ReplaceAll(input, "\u00A0", " ")
	line = strings.NewReplacer("$", "", "USD", "", "usd", "").Replace(line)

	token := reAmountToken.FindString(line)
	if token == "" {
		return decimal.Zero, false
	}
	norm := normalizeNumericToken(strings.TrimRight(token, " .,"))
	value, err := decimal.NewFromString(norm)
	if err != nil {
		return decimal.Zero, false
	}
	return value, true
}

// ParseQuantity takes the first run of digits as an integer quantity. Zero is
// rejected so callers fall back to one unit.
func ParseQuantity(input string) (int, bool) {
	token := reDigitRun.FindString(input)
	if token == "" {
		return 0, false
	}
	qty, err := strconv.Atoi(token)
	if err != nil || qty <= 0 {
		return 0, false
	}
	return qty, true
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if reDotThousands.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if reComThousands.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}

	lastDot := strings.LastIndex(compact, ".")
	lastComma := strings.LastIndex(compact, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0 && lastComma > lastDot:
		compact = strings.ReplaceAll(compact, ".", "")
		return strings.Replace(compact, ",", ".", 1)
	case lastDot >= 0 && lastComma >= 0:
		return strings.ReplaceAll(compact, ",", "")
	case lastComma >= 0:
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
