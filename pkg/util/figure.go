package util

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidFigure is returned for text that is not a plain decimal figure.
var ErrInvalidFigure = errors.New("not a decimal figure")

// Only unsigned decimal digits with an optional fraction. ParseFloat on its own
// also takes signs, exponents, hex floats, Inf and NaN.
var decimalFigure = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// StripSeparators removes thousands separators from a numeric figure:
// commas, underscores, apostrophes and any Unicode whitespace.
func StripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ',' || r == '_' || r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// ParseSeparatedFigure parses a figure such as "1,000" or "9 765 623".
func ParseSeparatedFigure(s string) (float64, error) {
	return parseDecimal(StripSeparators(s))
}

// ParsePlainFigure parses a figure that only needs surrounding whitespace trimmed.
func ParsePlainFigure(s string) (float64, error) {
	return parseDecimal(strings.TrimSpace(s))
}

func parseDecimal(s string) (float64, error) {
	if !decimalFigure.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFigure, s)
	}
	return strconv.ParseFloat(s, 64)
}
