package translate

import (
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice strips everything that is not a digit and parses the rest.
// "4.250.000 TL" -> 4250000. Returns nil for strings with no digits.
func ParsePrice(text string) *int64 {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return nil
	}
	n, err := strconv.ParseInt(b.String(), 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// FirstNumber returns the first run of digits in text as a string.
// "120 m²" -> "120", "Bahçe Katı" -> "".
func FirstNumber(text string) string {
	start := -1
	for i, r := range text {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return text[start:i]
		}
	}
	if start >= 0 {
		return text[start:]
	}
	return ""
}

// SplitGrossNet splits a compound "gross / net" area value into its two
// numeric parts. "142 m² / 120 m²" -> ("142", "120"). When there is no
// separator the whole value is treated as gross.
func SplitGrossNet(value string) (gross, net string) {
	parts := strings.SplitN(value, "/", 2)
	gross = FirstNumber(parts[0])
	if len(parts) == 2 {
		net = FirstNumber(parts[1])
	}
	return gross, net
}

// CleanText collapses runs of whitespace (including newlines) into single
// spaces and trims the result.
func CleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
